package dispatch

import (
	"github.com/moffa90/go-mcumgr/log"
	"github.com/moffa90/go-mcumgr/metrics"
	"github.com/moffa90/go-mcumgr/protocol"
)

// Config holds the dispatcher configuration.
type Config struct {
	// Format is the body encoding used for the whole connection
	Format protocol.Format

	// Version is the SMP header version sent in requests
	Version uint8

	// Logger is used for frame-level debug logging (optional)
	Logger log.Logger

	// Metrics receives request counters (optional)
	Metrics *metrics.Collector
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Format:  protocol.FormatCBOR,
		Version: protocol.VersionLegacy,
		Logger:  log.Nop(),
	}
}

// Option is a functional option for configuring the Dispatcher.
type Option func(*Config)

// WithFormat selects the body encoding. Default is CBOR.
//
// Example:
//
//	d := dispatch.New(conn, dispatch.WithFormat(protocol.FormatJSON))
func WithFormat(f protocol.Format) Option {
	return func(c *Config) {
		c.Format = f
	}
}

// WithVersion sets the SMP header version of requests. Devices answer a
// Version2 request with group-scoped errors.
//
// Example:
//
//	d := dispatch.New(conn, dispatch.WithVersion(protocol.Version2))
func WithVersion(v uint8) Option {
	return func(c *Config) {
		if v == protocol.VersionLegacy || v == protocol.Version2 {
			c.Version = v
		}
	}
}

// WithLogger sets a logger for frame-level debug output.
//
// Example:
//
//	d := dispatch.New(conn, dispatch.WithLogger(log.New(log.Options{Verbose: true})))
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics records request counters in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}
