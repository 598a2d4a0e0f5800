package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Stream is a Transport over a byte stream. A Framer delimits frames on the
// wire; a reader goroutine routes every incoming frame to the request with
// the same sequence number.
type Stream struct {
	rw     io.ReadWriter
	framer Framer
	config Config
	router *router

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewStream starts a Stream over rw. The Stream owns rw from now on; Close
// closes it when it implements io.Closer.
//
// Panics if rw or framer is nil.
//
// Example:
//
//	conn, _ := net.Dial("tcp", addr)
//	s := transport.NewStream(conn, transport.RawFramer{}, transport.WithMTU(1024))
//	defer s.Close()
func NewStream(rw io.ReadWriter, framer Framer, opts ...Option) *Stream {
	if rw == nil {
		panic("transport: reader/writer cannot be nil")
	}
	if framer == nil {
		panic("transport: framer cannot be nil")
	}

	s := &Stream{
		rw:     rw,
		framer: framer,
		config: applyOptions(DefaultMTU, opts),
		router: newRouter(),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// MTU returns the largest frame Send accepts.
func (s *Stream) MTU() int {
	return s.config.MTU
}

// Send writes frame and waits for the response with the same sequence
// number.
func (s *Stream) Send(ctx context.Context, frame []byte) ([]byte, error) {
	if len(frame) > s.config.MTU {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), s.config.MTU)
	}
	return s.router.roundTrip(ctx, frame, s.config.Timeout, s.write)
}

// Start writes frame and returns without waiting for the response.
func (s *Stream) Start(ctx context.Context, frame []byte) (Wait, error) {
	if len(frame) > s.config.MTU {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), s.config.MTU)
	}
	return s.router.start(ctx, frame, s.config.Timeout, s.write)
}

func (s *Stream) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.framer.WriteFrame(s.rw, frame)
}

// Close fails all waiting requests with ErrClosed and closes the underlying
// connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.router.fail(ErrClosed)
		if c, ok := s.rw.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

// Done is closed when the reader goroutine exits.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) readLoop() {
	defer close(s.done)

	br := bufio.NewReader(s.rw)
	for {
		frame, err := s.framer.ReadFrame(br)
		if err != nil {
			if s.router.closed() == nil {
				s.config.Logger.Error("stream read failed", "error", err)
			}
			s.router.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}

		if !s.router.deliver(frame) {
			s.config.Logger.Debug("dropping unmatched frame", "length", len(frame))
		}
	}
}
