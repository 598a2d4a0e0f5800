//go:build linux

package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var baudRates = map[int]uint32{
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// OpenSerial opens a tty in raw 8N1 mode at baud and returns a Stream
// speaking SMP console framing over it.
//
// Example:
//
//	conn, err := transport.OpenSerial("/dev/ttyACM0", 115200)
func OpenSerial(path string, baud int, opts ...Option) (*Stream, error) {
	rate, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", baud)
	}

	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}

	if err := makeRaw(int(f.Fd()), rate); err != nil {
		f.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}

	opts = append([]Option{WithMTU(DefaultSerialMTU)}, opts...)
	return NewStream(f, ConsoleFramer{}, opts...), nil
}

func makeRaw(fd int, rate uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | rate
	t.Ispeed = rate
	t.Ospeed = rate
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}
