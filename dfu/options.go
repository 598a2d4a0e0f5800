package dfu

import (
	"time"

	"github.com/moffa90/go-mcumgr/log"
)

// Mode selects which steps follow the upload.
type Mode int

const (
	// ModeTestAndConfirm tests the image, resets, then confirms it once
	// the device runs it
	ModeTestAndConfirm Mode = iota

	// ModeConfirmOnly confirms the image before the reset, so the device
	// never reverts it
	ModeConfirmOnly

	// ModeTestOnly tests the image and resets. The running application
	// must confirm itself or the device reverts on the next reset.
	ModeTestOnly
)

func (m Mode) String() string {
	switch m {
	case ModeTestAndConfirm:
		return "test-and-confirm"
	case ModeConfirmOnly:
		return "confirm-only"
	case ModeTestOnly:
		return "test-only"
	default:
		return "unknown"
	}
}

// Config holds the upgrader configuration.
type Config struct {
	// ProgressCallback is called during the upgrade to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger log.Logger

	// Mode selects the steps after the upload
	Mode Mode

	// Capacity is the number of upload chunks kept in flight
	Capacity int

	// ResetWait is how long to wait after the reset before polling
	ResetWait time.Duration

	// PollInterval is the delay between image list polls after a reset
	PollInterval time.Duration

	// PollAttempts is how many polls are made before giving up
	PollAttempts int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Mode:         ModeTestAndConfirm,
		Capacity:     4,
		ResetWait:    5 * time.Second,
		PollInterval: 5 * time.Second,
		PollAttempts: 5,
	}
}

// Option is a functional option for configuring the Upgrader.
type Option func(*Config)

// WithProgressCallback sets a callback function to track upgrade progress.
//
// Example:
//
//	up := dfu.New(client, img,
//	    dfu.WithProgressCallback(func(p dfu.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the upgrade operations.
//
// Example:
//
//	up := dfu.New(client, img, dfu.WithLogger(myLogger))
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMode selects the steps after the upload.
//
// Example:
//
//	up := dfu.New(client, img, dfu.WithMode(dfu.ModeConfirmOnly))
func WithMode(mode Mode) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithCapacity sets the number of upload chunks kept in flight.
func WithCapacity(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Capacity = n
		}
	}
}

// WithResetWait sets how long to wait after the reset before polling.
// Devices on slow links may need longer to drop and restore the
// connection.
func WithResetWait(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.ResetWait = d
		}
	}
}

// WithPollInterval sets the delay between polls after a reset.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.PollInterval = d
		}
	}
}

// WithPollAttempts sets how many polls are made after a reset.
func WithPollAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.PollAttempts = n
		}
	}
}
