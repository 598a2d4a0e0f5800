package transfer

import (
	"github.com/moffa90/go-mcumgr/log"
	"github.com/moffa90/go-mcumgr/metrics"
)

// Config holds the transfer configuration.
type Config struct {
	// ProgressCallback is called after every accepted chunk (optional)
	ProgressCallback ProgressCallback

	// Logger is used for transfer lifecycle logging (optional)
	Logger log.Logger

	// Metrics receives chunk and byte counters (optional)
	Metrics *metrics.Collector

	// ChunkSize caps the data bytes per chunk (0 = as many as fit the MTU)
	ChunkSize int

	// MaxResyncs is how many times in a row the device may send the upload
	// back to the same offset before the upload fails
	MaxResyncs int

	// MaxSize is the largest total length a download accepts (0 = no limit)
	MaxSize uint64
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:     log.Nop(),
		MaxResyncs: 8,
	}
}

// Option is a functional option for configuring a transfer.
type Option func(*Config)

func applyOptions(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Logger = log.OrNop(cfg.Logger)
	return cfg
}

// WithProgress sets a callback function to track transfer progress.
//
// Example:
//
//	data, err := transfer.Download(ctx, d, transfer.CoreSource{}, 4,
//	    transfer.WithProgress(func(p transfer.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgress(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for transfer lifecycle events.
//
// Example:
//
//	err := transfer.Upload(ctx, d, sink, data, 4, transfer.WithLogger(myLogger))
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics records chunk and byte counters in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithChunkSize caps the data bytes per chunk. Chunks are still shrunk to
// fit the MTU.
//
// Example:
//
//	err := transfer.Upload(ctx, d, sink, data, 4, transfer.WithChunkSize(128))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithMaxResyncs sets how many consecutive resyncs to one offset an upload
// tolerates.
func WithMaxResyncs(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxResyncs = n
		}
	}
}

// WithMaxSize rejects downloads whose total length exceeds size.
func WithMaxSize(size uint64) Option {
	return func(c *Config) {
		c.MaxSize = size
	}
}
