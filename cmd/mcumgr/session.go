package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/moffa90/go-mcumgr/log"
	"github.com/moffa90/go-mcumgr/mcumgr"
	"github.com/moffa90/go-mcumgr/metrics"
	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transport"
)

// dialFunc opens the connection named by a connection string.
type dialFunc func(ctx context.Context, conn string, opts ...transport.Option) (transport.Conn, error)

func dialTransport(ctx context.Context, conn string, opts ...transport.Option) (transport.Conn, error) {
	return transport.Open(ctx, conn, opts...)
}

// session holds the resolved settings of one CLI invocation.
type session struct {
	dial    dialFunc
	cfg     Config
	logger  *log.ZapLogger
	metrics *metrics.Collector
}

// before resolves the config file and flags and sets up logging.
func (s *session) before(c *cli.Context) error {
	cfg, err := loadDefault(c.String(ConfigFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	applyFlags(c, cfg)
	s.cfg = *cfg

	encoding := log.EncodingConsole
	if cfg.LogJSON {
		encoding = log.EncodingJSON
	}
	s.logger = log.New(log.Options{
		Output:   c.App.ErrWriter,
		Encoding: encoding,
		Verbose:  cfg.Verbose,
	})
	s.metrics = metrics.NewCollector(cfg.Conn, cfg.Format)
	return nil
}

// after logs the session counters.
func (s *session) after(*cli.Context) error {
	if s.logger == nil {
		return nil
	}
	snap := s.metrics.Snapshot()
	if snap.RequestsSent > 0 {
		s.logger.Debug("session finished",
			"requests", snap.RequestsSent,
			"failed", snap.RequestsFailed,
			"bytes_out", snap.BytesOut,
			"bytes_in", snap.BytesIn,
			"chunks", snap.ChunksSent,
			"resent", snap.ChunksResent,
			"resyncs", snap.Resyncs,
		)
	}
	_ = s.logger.Sync()
	return nil
}

// connect opens the configured connection and wraps it in a client.
func (s *session) connect(ctx context.Context, opts ...mcumgr.Option) (*mcumgr.Client, func(), error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, nil, cli.Exit(err.Error(), 2)
	}
	format, _ := protocol.ParseFormat(s.cfg.Format)

	conn, err := s.dial(ctx, s.cfg.Conn,
		transport.WithMTU(s.cfg.MTU),
		transport.WithTimeout(s.cfg.Timeout.Duration),
		transport.WithLogger(s.logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", s.cfg.Conn, err)
	}
	s.logger.Debug("connected", "conn", s.cfg.Conn, "mtu", conn.MTU(), "format", format.String())

	base := []mcumgr.Option{
		mcumgr.WithFormat(format),
		mcumgr.WithVersion(uint8(s.cfg.Version)),
		mcumgr.WithLogger(s.logger),
		mcumgr.WithMetrics(s.metrics),
	}
	client := mcumgr.New(conn, append(base, opts...)...)
	return client, func() { _ = conn.Close() }, nil
}

// withClient wraps an action that needs a connected client.
func (s *session) withClient(action func(c *cli.Context, client *mcumgr.Client) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		client, closeConn, err := s.connect(c.Context)
		if err != nil {
			return err
		}
		defer closeConn()
		return action(c, client)
	}
}

// requireArgs fails with a usage error unless c has exactly n arguments.
func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return cli.Exit(fmt.Sprintf("usage: %s %s", c.Command.FullName(), usage), 2)
	}
	return nil
}
