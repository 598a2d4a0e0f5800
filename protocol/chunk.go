package protocol

import (
	"errors"
	"fmt"
)

// ErrMTUTooSmall is returned when not even one data byte fits in a frame.
var ErrMTUTooSmall = errors.New("mtu too small for a single data byte")

// Shape builds the message a chunk of data would travel in. MaxData encodes
// it with placeholder data to measure framing overhead.
type Shape func(data []byte) any

// MaxData returns the largest number of data bytes n such that the frame
// carrying shape(n bytes) is no larger than mtu.
//
// The overhead of the empty message is measured first, then the estimate
// for the format's byte-string expansion is checked by encoding and shrunk
// until it fits.
func MaxData(c Codec, mtu int, shape Shape) (int, error) {
	empty, err := c.Marshal(shape([]byte{}))
	if err != nil {
		return 0, fmt.Errorf("measure chunk overhead: %w", err)
	}

	budget := mtu - HeaderSize - len(empty)
	if budget <= 0 {
		return 0, ErrMTUTooSmall
	}
	if limit := MaxBodySize - len(empty); budget > limit {
		budget = limit
	}

	n := estimate(c.Format(), budget)
	for n > 0 {
		body, err := c.Marshal(shape(make([]byte, n)))
		if err != nil {
			return 0, fmt.Errorf("measure chunk size: %w", err)
		}
		if HeaderSize+len(body) <= mtu {
			return n, nil
		}
		n--
	}

	return 0, ErrMTUTooSmall
}

// estimate returns the number of raw bytes whose encoding grows the empty
// byte string by at most budget bytes.
func estimate(f Format, budget int) int {
	if f == FormatJSON {
		// base64 with padding: 4 output bytes per 3 input bytes
		return budget / 4 * 3
	}

	// An empty CBOR byte string is one header byte; longer ones add
	// length bytes to the header.
	for _, extra := range []int{0, 1, 2, 4} {
		n := budget - extra
		if n <= 0 {
			return 0
		}
		if cborHeaderExtra(n) <= extra {
			return n
		}
	}
	return 0
}

func cborHeaderExtra(n int) int {
	switch {
	case n < 24:
		return 0
	case n <= 0xFF:
		return 1
	case n <= 0xFFFF:
		return 2
	default:
		return 4
	}
}
