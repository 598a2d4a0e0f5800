//go:build !linux

package transport

import (
	"fmt"
	"os"
)

// OpenSerial opens a tty and returns a Stream speaking SMP console framing
// over it. Line settings are left as configured by the OS; set them with
// stty before connecting.
func OpenSerial(path string, baud int, opts ...Option) (*Stream, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}

	opts = append([]Option{WithMTU(DefaultSerialMTU)}, opts...)
	s := NewStream(f, ConsoleFramer{}, opts...)
	s.config.Logger.Info("serial line settings not configured on this platform", "path", path, "baud", baud)
	return s, nil
}
