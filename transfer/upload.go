package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moffa90/go-mcumgr/protocol"
)

// Upload writes data to sink with at most capacity chunk requests in flight.
// A capacity below 1 is treated as 1.
//
// Chunks are cut and sent in offset order. The first chunk is sent alone
// and announces len(data). When the device answers with the offset it
// expects next, that offset overrides the sender's own bookkeeping, in
// either direction. Upload returns once the device has acknowledged every
// byte. An empty data slice sends a single zero-length chunk.
func Upload(ctx context.Context, s Sender, sink Sink, data []byte, capacity int, opts ...Option) error {
	cfg := applyOptions(opts)
	if capacity < 1 {
		capacity = 1
	}

	u := &upload{
		sender:   s,
		sink:     sink,
		cfg:      cfg,
		op:       sink.Name(),
		capacity: capacity,
		data:     data,
		total:    uint64(len(data)),
		reported: -1,
		inFlight: make(map[int]span),
		acked:    make(map[uint64]uint64),
		sent:     make(map[uint64]bool),
		start:    time.Now(),
	}

	id := uuid.NewString()
	logger := cfg.Logger
	logger.Info("transfer started", "transfer_id", id, "operation", u.op,
		"capacity", capacity, "total", u.total)
	cfg.Metrics.IncTransferStarted()

	if err := u.run(ctx); err != nil {
		cfg.Metrics.IncTransferFailed()
		logger.Error("transfer failed", "transfer_id", id, "operation", u.op,
			"confirmed", u.confirmed, "total", u.total, "error", err)
		return err
	}

	cfg.Metrics.IncTransferCompleted()
	logger.Info("transfer complete", "transfer_id", id, "operation", u.op,
		"bytes", u.total, "resyncs", u.resyncs, "elapsed", time.Since(u.start))
	return nil
}

// upload is the state of one running upload, owned by the goroutine that
// called Upload.
type upload struct {
	sender   Sender
	sink     Sink
	cfg      Config
	op       string
	capacity int
	start    time.Time

	data  []byte
	total uint64

	// cursor is the offset of the next chunk to send
	cursor uint64

	// confirmed is the offset the device expects next, as far as known
	confirmed uint64

	// progress is the highest offset ever confirmed
	progress uint64

	// issued counts the chunks sent so far; a chunk's issue number is the
	// count at the time it was sent
	issued int

	// reported is the issue number of the chunk whose offset was applied
	// last. Answers to earlier chunks carry older device state.
	reported int

	inFlight map[int]span

	// acked holds chunks accepted without an offset that are not yet
	// contiguous with confirmed, by start offset
	acked map[uint64]uint64

	sent map[uint64]bool

	resyncs  int
	stallOff uint64
	stalls   int
}

// ack is the answer to one chunk.
type ack struct {
	issue int
	span  span
	rsp   protocol.Response
	err   error
}

func (u *upload) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to capacity so chunk goroutines never block after an abort.
	acks := make(chan ack, u.capacity)

	if err := u.send(ctx, acks); err != nil {
		return err
	}
	if err := u.receive(ctx, acks); err != nil {
		return err
	}

	for u.confirmed < u.total {
		for len(u.inFlight) < u.capacity && u.cursor < u.total {
			if err := u.send(ctx, acks); err != nil {
				return err
			}
		}

		if len(u.inFlight) == 0 {
			return protocol.NewConsistencyError(u.op,
				"device acknowledged %d of %d bytes", u.confirmed, u.total)
		}

		if err := u.receive(ctx, acks); err != nil {
			return err
		}
	}

	return nil
}

// send writes the chunk at the cursor. A Sender that can start requests
// writes it before send returns, so chunks leave in the order they were
// cut; otherwise the chunk goroutine sends it.
func (u *upload) send(ctx context.Context, acks chan<- ack) error {
	c, err := u.next()
	if err != nil {
		return err
	}

	if st, ok := u.sender.(starter); ok {
		call, err := st.Start(ctx, c.req)
		if err != nil {
			return err
		}
		go func() {
			rsp, err := call.Wait(ctx)
			acks <- ack{issue: c.issue, span: c.span, rsp: rsp, err: err}
		}()
		return nil
	}

	go func() {
		rsp, err := u.sender.Send(ctx, c.req)
		acks <- ack{issue: c.issue, span: c.span, rsp: rsp, err: err}
	}()
	return nil
}

func (u *upload) receive(ctx context.Context, acks <-chan ack) error {
	select {
	case a := <-acks:
		return u.accept(a)
	case <-ctx.Done():
		return protocol.NewTransportError(u.op, ctx.Err())
	}
}

type chunk struct {
	issue int
	span  span
	req   protocol.Request
}

// next builds the chunk at the cursor, marks it in flight and advances the
// cursor past it.
func (u *upload) next() (chunk, error) {
	off := u.cursor
	remaining := u.total - off

	n, err := protocol.MaxData(u.sender.Codec(), u.sender.MTU(), func(data []byte) any {
		return u.sink.Request(off, data, u.total)
	})
	if err != nil {
		return chunk{}, protocol.NewTransportError(u.op, fmt.Errorf("size chunk at offset %d: %w", off, err))
	}
	if u.cfg.ChunkSize > 0 && n > u.cfg.ChunkSize {
		n = u.cfg.ChunkSize
	}

	size := uint64(n)
	if size > remaining {
		size = remaining
	}

	sp := span{off, off + size}
	issue := u.issued
	u.issued++
	u.inFlight[issue] = sp
	u.cursor = sp.end

	u.cfg.Metrics.IncChunkSent(u.sent[off])
	u.sent[off] = true

	return chunk{issue: issue, span: sp, req: u.sink.Request(off, u.data[sp.off:sp.end], u.total)}, nil
}

// accept applies the answer to one chunk.
func (u *upload) accept(a ack) error {
	if a.err != nil {
		return a.err
	}
	delete(u.inFlight, a.issue)

	wc, ok := a.rsp.(protocol.WriteChunk)
	if !ok {
		return protocol.NewDecodeError(u.op, fmt.Errorf("unexpected response type %T", a.rsp))
	}

	next, ok := wc.NextOffset()
	if !ok {
		u.acknowledge(a.span)
		return nil
	}
	if next > u.total {
		return protocol.NewConsistencyError(u.op,
			"device expects offset %d beyond length %d", next, u.total)
	}

	if a.issue < u.reported {
		// A later chunk already reported newer device state.
		return nil
	}
	u.reported = a.issue
	u.confirm(next)

	if next == u.total || u.expects(a.issue, next) {
		return nil
	}
	return u.resync(next)
}

// acknowledge records a chunk the device accepted without naming the
// offset it expects next. Only a contiguous run from confirmed counts.
func (u *upload) acknowledge(sp span) {
	if sp.end > sp.off {
		u.acked[sp.off] = sp.end
	}

	next := u.confirmed
	for {
		end, ok := u.acked[next]
		if !ok {
			break
		}
		delete(u.acked, next)
		next = end
	}
	u.confirm(next)
}

// confirm moves confirmed to the offset the device expects, which may lie
// below it when the device dropped data.
func (u *upload) confirm(next uint64) {
	if next < u.confirmed {
		u.cfg.Logger.Debug("device moved back", "operation", u.op, "from", u.confirmed, "to", next)
	}
	u.confirmed = next

	for off := range u.acked {
		if off < next {
			delete(u.acked, off)
		}
	}

	if next > u.progress {
		u.cfg.Metrics.AddBytesUploaded(int(next - u.progress))
		u.progress = next
		u.report()
	}
}

// expects reports whether the device will get data at off without a
// resync: a chunk sent after the given one starts there, or the cursor is
// there already.
func (u *upload) expects(issue int, off uint64) bool {
	if off == u.cursor {
		return true
	}
	for i, sp := range u.inFlight {
		if i > issue && sp.off == off {
			return true
		}
	}
	return false
}

// resync moves the send cursor to the offset the device expects.
func (u *upload) resync(off uint64) error {
	if off == u.stallOff {
		u.stalls++
	} else {
		u.stallOff = off
		u.stalls = 1
	}
	if u.stalls > u.cfg.MaxResyncs {
		return protocol.NewConsistencyError(u.op,
			"device not advancing past offset %d", off)
	}

	u.cfg.Logger.Debug("resync", "operation", u.op, "from", u.cursor, "to", off)
	u.cfg.Metrics.IncResync()
	u.resyncs++
	u.cursor = off
	return nil
}

func (u *upload) report() {
	if u.cfg.ProgressCallback != nil {
		u.cfg.ProgressCallback(newProgress(u.progress, u.total, u.start))
	}
}
