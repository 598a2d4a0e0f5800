package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/moffa90/go-mcumgr/log"
	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transport"
)

// sequenceSlots is the size of the 8-bit sequence number space.
const sequenceSlots = 256

// Dispatcher sends requests over one transport.
//
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	transport transport.Transport
	codec     protocol.Codec
	config    Config

	// free holds one token per unused sequence number
	free  chan struct{}
	mu    sync.Mutex
	inUse [sequenceSlots]bool
	next  uint8
}

// New creates a Dispatcher over t.
//
// Panics if t is nil.
//
// Example:
//
//	conn, _ := transport.Open(ctx, "udp:192.0.2.1:1337")
//	d := dispatch.New(conn, dispatch.WithLogger(logger))
func New(t transport.Transport, opts ...Option) *Dispatcher {
	if t == nil {
		panic("dispatch: transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Logger = log.OrNop(cfg.Logger)

	d := &Dispatcher{
		transport: t,
		codec:     protocol.NewCodec(cfg.Format),
		config:    cfg,
		free:      make(chan struct{}, sequenceSlots),
	}
	for i := 0; i < sequenceSlots; i++ {
		d.free <- struct{}{}
	}
	return d
}

// Codec returns the connection codec.
func (d *Dispatcher) Codec() protocol.Codec {
	return d.codec
}

// MTU returns the transport MTU.
func (d *Dispatcher) MTU() int {
	return d.transport.MTU()
}

// Send sends req and returns the decoded response. A response with a
// non-zero result code is returned as a KindProtocol error.
func (d *Dispatcher) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	c, err := d.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx)
}

// Call is a request whose response has not been read yet.
type Call struct {
	d    *Dispatcher
	key  protocol.Key
	seq  uint8
	wait transport.Wait
}

// Start sends req without waiting for the response. Wait must be called
// exactly once on the returned Call.
//
// When the transport is a transport.Pipeliner the frame is written before
// Start returns, so requests started one after another from one goroutine
// reach the device in that order. Other transports write the frame in Wait.
func (d *Dispatcher) Start(ctx context.Context, req protocol.Request) (*Call, error) {
	key := req.Key()
	op := protocol.Name(key)

	seq, err := d.acquire(ctx)
	if err != nil {
		return nil, d.fail(protocol.NewTransportError(op, err))
	}

	frame, perr := d.encode(key, seq, req)
	if perr != nil {
		d.release(seq)
		return nil, d.fail(perr)
	}

	d.config.Logger.Debug("smp request",
		"op", key.Op, "group", key.Group, "command", key.Command, "seq", seq, "length", len(frame))
	d.config.Metrics.IncRequestSent(len(frame))

	c := &Call{d: d, key: key, seq: seq}
	if p, ok := d.transport.(transport.Pipeliner); ok {
		c.wait, err = p.Start(ctx, frame)
		if err != nil {
			d.release(seq)
			return nil, d.fail(protocol.NewTransportError(op, err))
		}
	} else {
		c.wait = func(ctx context.Context) ([]byte, error) {
			return d.transport.Send(ctx, frame)
		}
	}
	return c, nil
}

// Wait returns the decoded response to the call.
func (c *Call) Wait(ctx context.Context) (protocol.Response, error) {
	d := c.d
	defer d.release(c.seq)

	frame, err := c.wait(ctx)
	if err != nil {
		return nil, d.fail(protocol.NewTransportError(protocol.Name(c.key), err))
	}

	rsp, perr := d.decode(c.key, c.seq, frame)
	if perr != nil {
		return nil, d.fail(perr)
	}

	d.config.Metrics.IncResponseReceived(len(frame))
	return rsp, nil
}

// encode builds the request frame and checks it against the MTU.
func (d *Dispatcher) encode(key protocol.Key, seq uint8, req protocol.Request) ([]byte, *protocol.Error) {
	op := protocol.Name(key)

	frame, err := protocol.EncodeMessage(d.codec, protocol.Header{
		Version:  d.config.Version,
		Op:       key.Op,
		Group:    key.Group,
		Sequence: seq,
		Command:  key.Command,
	}, req)
	if err != nil {
		return nil, protocol.NewDecodeError(op, err)
	}

	if mtu := d.transport.MTU(); len(frame) > mtu {
		return nil, protocol.NewTransportError(op,
			fmt.Errorf("%w: %d > %d", transport.ErrFrameTooLarge, len(frame), mtu))
	}
	return frame, nil
}

// decode validates a response frame against the request it answers.
func (d *Dispatcher) decode(key protocol.Key, seq uint8, frame []byte) (protocol.Response, *protocol.Error) {
	op := protocol.Name(key)

	h, body, err := protocol.DecodeFrame(frame)
	if err != nil {
		return nil, protocol.NewDecodeError(op, err)
	}

	d.config.Logger.Debug("smp response",
		"op", h.Op, "group", h.Group, "command", h.Command, "seq", h.Sequence, "length", len(frame))

	if h.Op != key.Op.Response() || h.Group != key.Group || h.Command != key.Command || h.Sequence != seq {
		return nil, protocol.NewDecodeError(op, fmt.Errorf(
			"response %s seq %d does not match request %s seq %d", h.Key(), h.Sequence, key, seq))
	}

	rsp, err := protocol.NewResponse(key)
	if err != nil {
		return nil, protocol.NewDecodeError(op, err)
	}
	if err := d.codec.Unmarshal(body, rsp); err != nil {
		return nil, protocol.NewDecodeError(op, fmt.Errorf("decode %s body: %w", d.codec.Format(), err))
	}

	if rc, group := rsp.Result(); rc != protocol.RCOK {
		return nil, &protocol.Error{Kind: protocol.KindProtocol, Operation: op, Code: rc, Group: group}
	}

	if rf, ok := rsp.(protocol.RequiredFielder); ok {
		if err := d.codec.Required(body, rf.RequiredFields()); err != nil {
			return nil, protocol.NewDecodeError(op, err)
		}
	}

	return rsp, nil
}

func (d *Dispatcher) fail(err *protocol.Error) error {
	d.config.Metrics.IncRequestFailed(err.Kind.String())
	if err.Kind != protocol.KindProtocol {
		d.config.Logger.Debug("smp request failed", "operation", err.Operation, "error", err)
	}
	return err
}

// acquire blocks until a sequence number is free.
func (d *Dispatcher) acquire(ctx context.Context) (uint8, error) {
	select {
	case <-d.free:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for d.inUse[d.next] {
		d.next++
	}
	seq := d.next
	d.inUse[seq] = true
	d.next++
	return seq, nil
}

func (d *Dispatcher) release(seq uint8) {
	d.mu.Lock()
	d.inUse[seq] = false
	d.mu.Unlock()
	d.free <- struct{}{}
}

// Do sends req and asserts the response type.
//
// Example:
//
//	rsp, err := dispatch.Do[*protocol.ParamsResponse](ctx, d, &protocol.ParamsRequest{})
func Do[T protocol.Response](ctx context.Context, d *Dispatcher, req protocol.Request) (T, error) {
	var zero T

	rsp, err := d.Send(ctx, req)
	if err != nil {
		return zero, err
	}

	typed, ok := rsp.(T)
	if !ok {
		return zero, protocol.NewDecodeError(protocol.Name(req.Key()),
			fmt.Errorf("unexpected response type %T", rsp))
	}
	return typed, nil
}
