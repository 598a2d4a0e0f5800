package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/moffa90/go-mcumgr/protocol"
)

// Framer delimits SMP frames on a byte stream.
type Framer interface {
	// WriteFrame writes one complete frame.
	WriteFrame(w io.Writer, frame []byte) error

	// ReadFrame returns the next complete frame.
	ReadFrame(r *bufio.Reader) ([]byte, error)
}

// RawFramer sends frames back to back. The body length in each header
// delimits the next frame.
type RawFramer struct{}

// WriteFrame writes frame unchanged.
func (RawFramer) WriteFrame(w io.Writer, frame []byte) error {
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads a header, then the body length it announces.
func (RawFramer) ReadFrame(r *bufio.Reader) ([]byte, error) {
	header := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := int(binary.BigEndian.Uint16(header[2:4]))
	frame := make([]byte, protocol.HeaderSize+length)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[protocol.HeaderSize:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read %d-byte body: %w", length, err)
	}

	return frame, nil
}
