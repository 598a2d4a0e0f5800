package mcumgr

import (
	"github.com/moffa90/go-mcumgr/log"
	"github.com/moffa90/go-mcumgr/metrics"
	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transfer"
)

// Config holds the client configuration.
type Config struct {
	// Format is the body encoding of the connection (default CBOR)
	Format protocol.Format

	// Version is the SMP header version sent with requests
	Version uint8

	// Logger receives request and transfer logging (optional)
	Logger log.Logger

	// Metrics receives request and transfer counters (optional)
	Metrics *metrics.Collector

	// ProgressCallback is called during every transfer (optional)
	ProgressCallback transfer.ProgressCallback

	// ChunkSize caps the data bytes per transfer chunk (0 = fit the MTU)
	ChunkSize int
}

func defaultConfig() Config {
	return Config{
		Format:  protocol.FormatCBOR,
		Version: protocol.VersionLegacy,
		Logger:  log.Nop(),
	}
}

// Option is a functional option for configuring a Client.
type Option func(*Config)

// WithFormat selects the body encoding.
//
// Example:
//
//	client := mcumgr.New(conn, mcumgr.WithFormat(protocol.FormatJSON))
func WithFormat(f protocol.Format) Option {
	return func(c *Config) {
		c.Format = f
	}
}

// WithVersion sets the SMP header version.
func WithVersion(v uint8) Option {
	return func(c *Config) {
		c.Version = v
	}
}

// WithLogger sets a logger for requests and transfers.
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics records request and transfer counters in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithProgress sets a callback reporting the progress of every transfer.
func WithProgress(callback transfer.ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithChunkSize caps the data bytes per transfer chunk.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// UploadOption configures one image upload.
type UploadOption func(*imageUpload)

type imageUpload struct {
	sink     transfer.ImageSink
	noSHA    bool
	transfer []transfer.Option
}

// WithImageNumber targets image n on multi-image devices.
func WithImageNumber(n uint32) UploadOption {
	return func(u *imageUpload) {
		u.sink.Image = n
	}
}

// WithUpgrade asks the device to reject images that are not newer than the
// running one.
func WithUpgrade() UploadOption {
	return func(u *imageUpload) {
		u.sink.Upgrade = true
	}
}

// WithoutSHA omits the image hash from the first chunk. Devices then cannot
// resume an interrupted upload.
func WithoutSHA() UploadOption {
	return func(u *imageUpload) {
		u.noSHA = true
	}
}

// WithTransferOptions applies per-call transfer options, after the client
// defaults.
func WithTransferOptions(opts ...transfer.Option) UploadOption {
	return func(u *imageUpload) {
		u.transfer = append(u.transfer, opts...)
	}
}
