package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transport"
)

// Transport delivers frames to a Server in-process. It fails any frame,
// request or response, that exceeds the MTU.
//
// Transport is safe for concurrent use.
type Transport struct {
	server *Server
	mtu    int

	mu          sync.Mutex
	requests    int
	maxRequest  int
	maxResponse int
	violations  []string
	latency     func(i int) time.Duration
	faults      map[int]error
}

// NewTransport connects to s with the server's MTU.
func NewTransport(s *Server) *Transport {
	return &Transport{
		server: s,
		mtu:    s.MTU(),
		faults: make(map[int]error),
	}
}

// New creates a Server and a Transport connected to it.
func New(format protocol.Format, mtu int) (*Server, *Transport) {
	s := NewServer(format, mtu)
	return s, NewTransport(s)
}

// MTU returns the largest frame accepted in either direction.
func (t *Transport) MTU() int {
	return t.mtu
}

// SetLatency delays request i (0-based, in arrival order) by fn(i). Varying
// delays make responses complete out of order.
func (t *Transport) SetLatency(fn func(i int) time.Duration) {
	t.mu.Lock()
	t.latency = fn
	t.mu.Unlock()
}

// FailRequest makes request i (0-based, in arrival order) fail with err
// without reaching the server.
func (t *Transport) FailRequest(i int, err error) {
	t.mu.Lock()
	t.faults[i] = err
	t.mu.Unlock()
}

// Requests returns how many frames were sent.
func (t *Transport) Requests() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests
}

// MaxRequest returns the largest request frame seen.
func (t *Transport) MaxRequest() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxRequest
}

// MaxResponse returns the largest response frame seen.
func (t *Transport) MaxResponse() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxResponse
}

// Violations lists every frame that exceeded the MTU.
func (t *Transport) Violations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.violations...)
}

// Send passes frame to the server and returns its response.
func (t *Transport) Send(ctx context.Context, frame []byte) ([]byte, error) {
	wait, err := t.Start(ctx, frame)
	if err != nil {
		return nil, err
	}
	return wait(ctx)
}

// Start hands frame to the server. Without latency the server handles it
// before Start returns, so frames started in order are handled in order. A
// delayed frame is handled once its latency has passed.
func (t *Transport) Start(ctx context.Context, frame []byte) (transport.Wait, error) {
	t.mu.Lock()
	i := t.requests
	t.requests++
	if len(frame) > t.maxRequest {
		t.maxRequest = len(frame)
	}
	fault := t.faults[i]
	var delay time.Duration
	if t.latency != nil {
		delay = t.latency(i)
	}
	t.mu.Unlock()

	if len(frame) > t.mtu {
		t.violation("request %d: %d bytes exceeds mtu %d", i, len(frame), t.mtu)
		return nil, fmt.Errorf("%w: request %d bytes", transport.ErrFrameTooLarge, len(frame))
	}
	if fault != nil {
		return nil, fault
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if delay <= 0 {
		rsp, err := t.deliver(i, frame)
		return func(context.Context) ([]byte, error) { return rsp, err }, nil
	}

	type reply struct {
		frame []byte
		err   error
	}
	done := make(chan reply, 1)
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			done <- reply{err: ctx.Err()}
			return
		}
		rsp, err := t.deliver(i, frame)
		done <- reply{rsp, err}
	}()

	return func(ctx context.Context) ([]byte, error) {
		select {
		case r := <-done:
			return r.frame, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, nil
}

// deliver runs request i through the server and checks the response size.
func (t *Transport) deliver(i int, frame []byte) ([]byte, error) {
	rsp, err := t.server.Handle(frame)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if len(rsp) > t.maxResponse {
		t.maxResponse = len(rsp)
	}
	t.mu.Unlock()

	if len(rsp) > t.mtu {
		t.violation("response to request %d: %d bytes exceeds mtu %d", i, len(rsp), t.mtu)
		return nil, fmt.Errorf("%w: response %d bytes", transport.ErrFrameTooLarge, len(rsp))
	}
	return rsp, nil
}

func (t *Transport) violation(format string, args ...any) {
	t.mu.Lock()
	t.violations = append(t.violations, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}
