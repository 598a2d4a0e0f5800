package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-mcumgr/protocol"
)

// sequenceOffset is the position of the sequence number in the SMP header.
const sequenceOffset = 6

type result struct {
	frame []byte
	err   error
}

// router pairs response frames with waiting requests by sequence number.
type router struct {
	mu      sync.Mutex
	waiters map[uint8]chan result
	err     error
}

func newRouter() *router {
	return &router{waiters: make(map[uint8]chan result)}
}

func (r *router) add(seq uint8) (chan result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	if _, ok := r.waiters[seq]; ok {
		return nil, fmt.Errorf("%w: %d", ErrSequenceInUse, seq)
	}

	ch := make(chan result, 1)
	r.waiters[seq] = ch
	return ch, nil
}

func (r *router) remove(seq uint8) {
	r.mu.Lock()
	delete(r.waiters, seq)
	r.mu.Unlock()
}

// deliver hands frame to the request waiting on its sequence number.
// It reports false for frames nobody is waiting for.
func (r *router) deliver(frame []byte) bool {
	if len(frame) < protocol.HeaderSize {
		return false
	}
	seq := frame[sequenceOffset]

	r.mu.Lock()
	ch, ok := r.waiters[seq]
	delete(r.waiters, seq)
	r.mu.Unlock()

	if ok {
		ch <- result{frame: frame}
	}
	return ok
}

// fail completes every waiter with err and rejects later requests. Only
// the first failure is kept.
func (r *router) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err == nil {
		r.err = err
	}
	for seq, ch := range r.waiters {
		ch <- result{err: r.err}
		delete(r.waiters, seq)
	}
}

func (r *router) closed() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// start registers a waiter for the frame's sequence number and writes the
// frame. The timeout counts from the write.
func (r *router) start(ctx context.Context, frame []byte, timeout time.Duration, write func([]byte) error) (Wait, error) {
	if len(frame) < protocol.HeaderSize {
		return nil, ErrShortFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq := frame[sequenceOffset]

	ch, err := r.add(seq)
	if err != nil {
		return nil, err
	}

	if err := write(frame); err != nil {
		r.remove(seq)
		return nil, fmt.Errorf("write frame: %w", err)
	}
	written := time.Now()

	return func(ctx context.Context) ([]byte, error) {
		select {
		case res := <-ch:
			return res.frame, res.err
		default:
		}

		var expired <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout - time.Since(written))
			defer timer.Stop()
			expired = timer.C
		}

		select {
		case res := <-ch:
			return res.frame, res.err
		case <-expired:
			r.remove(seq)
			return nil, ErrTimeout
		case <-ctx.Done():
			r.remove(seq)
			return nil, ctx.Err()
		}
	}, nil
}

// roundTrip writes the frame and waits for the response.
func (r *router) roundTrip(ctx context.Context, frame []byte, timeout time.Duration, write func([]byte) error) ([]byte, error) {
	wait, err := r.start(ctx, frame, timeout, write)
	if err != nil {
		return nil, err
	}
	return wait(ctx)
}
