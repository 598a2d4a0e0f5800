package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/moffa90/go-mcumgr/log"
)

// Transport sends one SMP request frame and returns the response frame
// carrying the same sequence number. Implementations must be safe for
// concurrent use.
type Transport interface {
	// Send delivers frame and blocks until the matching response arrives,
	// the transport fails, or ctx is done.
	Send(ctx context.Context, frame []byte) ([]byte, error)

	// MTU is the largest frame, header included, the transport accepts.
	MTU() int
}

// Wait blocks until the response to a started frame arrives, the transport
// fails, or ctx is done.
type Wait func(ctx context.Context) ([]byte, error)

// Pipeliner is a Transport that can write a frame without waiting for its
// response. Frames started one after another from a single goroutine reach
// the device in that order.
type Pipeliner interface {
	Transport

	// Start writes frame and returns a Wait for its response.
	Start(ctx context.Context, frame []byte) (Wait, error)
}

// Conn is a Transport that owns an underlying connection.
type Conn interface {
	Transport
	io.Closer
}

// Default MTUs.
const (
	// DefaultMTU is used by Stream when no MTU is configured
	DefaultMTU = 256

	// DefaultUDPMTU matches the Zephyr UDP transport buffer
	DefaultUDPMTU = 1024

	// DefaultSerialMTU matches the Zephyr console transport buffer
	DefaultSerialMTU = 256
)

var (
	// ErrClosed is returned by Send after Close, or when the underlying
	// connection failed
	ErrClosed = errors.New("transport closed")

	// ErrFrameTooLarge is returned for frames larger than the MTU
	ErrFrameTooLarge = errors.New("frame exceeds transport mtu")

	// ErrTimeout is returned when no response arrives within the
	// configured timeout
	ErrTimeout = errors.New("timed out waiting for response")

	// ErrSequenceInUse is returned when a request reuses the sequence
	// number of one still waiting for its response
	ErrSequenceInUse = errors.New("sequence number already in flight")

	// ErrShortFrame is returned for frames shorter than the SMP header
	ErrShortFrame = errors.New("frame shorter than smp header")
)

// Config holds transport settings.
type Config struct {
	// MTU is the largest frame accepted by Send
	MTU int

	// Timeout bounds the wait for each response (0 = wait for ctx only)
	Timeout time.Duration

	// Logger receives connection-level debug output
	Logger log.Logger
}

// Option configures a transport.
type Option func(*Config)

func defaultConfig(mtu int) Config {
	return Config{
		MTU:     mtu,
		Timeout: 0,
		Logger:  log.Nop(),
	}
}

func applyOptions(mtu int, opts []Option) Config {
	config := defaultConfig(mtu)
	for _, opt := range opts {
		opt(&config)
	}
	config.Logger = log.OrNop(config.Logger)
	return config
}

// WithMTU sets the largest frame the transport accepts.
//
// Example:
//
//	conn, err := transport.DialUDP(ctx, addr, transport.WithMTU(512))
func WithMTU(mtu int) Option {
	return func(c *Config) {
		if mtu > 0 {
			c.MTU = mtu
		}
	}
}

// WithTimeout bounds the wait for each response.
//
// Example:
//
//	conn, err := transport.DialUDP(ctx, addr, transport.WithTimeout(3*time.Second))
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithLogger sets the logger for connection-level events.
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
