package transfer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/moffa90/go-mcumgr/protocol"
)

// span is the half-open byte range [off, end).
type span struct {
	off, end uint64
}

func (s span) len() uint64 { return s.end - s.off }

type result struct {
	span span
	rsp  protocol.Response
	err  error
}

// Download reads the whole of src with at most capacity chunk requests in
// flight. A capacity below 1 is treated as 1.
//
// The returned slice holds exactly the number of bytes the device reported
// as the total length. On failure partial data is discarded.
func Download(ctx context.Context, s Sender, src Source, capacity int, opts ...Option) ([]byte, error) {
	cfg := applyOptions(opts)
	if capacity < 1 {
		capacity = 1
	}

	d := &download{
		sender:   s,
		src:      src,
		cfg:      cfg,
		op:       src.Name(),
		capacity: capacity,
		inFlight: make(map[uint64]span),
		start:    time.Now(),
	}

	id := uuid.NewString()
	logger := cfg.Logger
	logger.Info("transfer started", "transfer_id", id, "operation", d.op, "capacity", capacity)
	cfg.Metrics.IncTransferStarted()

	data, err := d.run(ctx)
	if err != nil {
		cfg.Metrics.IncTransferFailed()
		logger.Error("transfer failed", "transfer_id", id, "operation", d.op,
			"received", d.received, "total", d.total, "error", err)
		return nil, err
	}

	cfg.Metrics.IncTransferCompleted()
	logger.Info("transfer complete", "transfer_id", id, "operation", d.op,
		"bytes", len(data), "elapsed", time.Since(d.start))
	return data, nil
}

// download is the state of one running download. It is owned by the
// goroutine that called Download; chunk goroutines only send and report.
type download struct {
	sender   Sender
	src      Source
	cfg      Config
	op       string
	capacity int
	start    time.Time

	total    uint64
	buf      []byte
	received uint64

	// pending holds the unclaimed ranges, sorted and disjoint
	pending []span

	// inFlight maps the offset of every outstanding request to its claim
	inFlight map[uint64]span

	// returned marks offsets whose range was handed back by a short chunk
	returned map[uint64]bool
}

func (d *download) run(ctx context.Context) ([]byte, error) {
	if err := d.first(ctx); err != nil {
		return nil, err
	}
	// A zero total is an empty resource, not a missing one; devices
	// report the latter with an error code.
	if d.received == d.total {
		return d.buf, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to capacity so chunk goroutines never block after an abort.
	results := make(chan result, d.capacity)

	for d.received < d.total {
		for len(d.inFlight) < d.capacity && len(d.pending) > 0 {
			sp, err := d.claim()
			if err != nil {
				return nil, err
			}
			go func(sp span) {
				rsp, err := d.sender.Send(ctx, d.src.Request(sp.off))
				results <- result{span: sp, rsp: rsp, err: err}
			}(sp)
		}

		select {
		case r := <-results:
			if err := d.accept(r); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, protocol.NewTransportError(d.op, ctx.Err())
		}
	}

	return d.buf, nil
}

// first requests offset 0 alone; its response fixes the total length.
func (d *download) first(ctx context.Context) error {
	rsp, err := d.sender.Send(ctx, d.src.Request(0))
	if err != nil {
		return err
	}
	d.cfg.Metrics.IncChunkSent(false)

	chunk, err := d.chunk(rsp)
	if err != nil {
		return err
	}
	if off := chunk.ChunkOffset(); off != 0 {
		return protocol.NewConsistencyError(d.op, "response offset %d was not requested", off)
	}

	total, ok := chunk.TotalLength()
	if !ok {
		return protocol.NewConsistencyError(d.op, "first chunk carries no total length")
	}
	if total > math.MaxInt32 || (d.cfg.MaxSize > 0 && total > d.cfg.MaxSize) {
		return protocol.NewConsistencyError(d.op, "total length %d exceeds limit", total)
	}

	data := chunk.ChunkData()
	if uint64(len(data)) > total {
		return protocol.NewConsistencyError(d.op,
			"chunk of %d bytes exceeds total length %d", len(data), total)
	}
	if len(data) == 0 && total > 0 {
		return protocol.NewConsistencyError(d.op, "empty chunk at offset 0")
	}

	d.total = total
	d.buf = make([]byte, total)
	copy(d.buf, data)
	d.received = uint64(len(data))
	if d.received < total {
		d.pending = []span{{d.received, total}}
	}

	d.cfg.Metrics.AddBytesDownloaded(len(data))
	d.report()
	return nil
}

// claim moves the next chunk of the first pending range in flight.
func (d *download) claim() (span, error) {
	p := d.pending[0]

	n, err := d.size(p.off)
	if err != nil {
		return span{}, err
	}

	sp := span{p.off, p.off + n}
	if sp.end >= p.end {
		sp.end = p.end
		d.pending = d.pending[1:]
	} else {
		d.pending[0].off = sp.end
	}

	d.inFlight[sp.off] = sp
	d.cfg.Metrics.IncChunkSent(d.returned[sp.off])
	return sp, nil
}

// size estimates how many data bytes the response for off can carry.
func (d *download) size(off uint64) (uint64, error) {
	n, err := protocol.MaxData(d.sender.Codec(), d.sender.MTU(), func(data []byte) any {
		return d.src.Response(off, data)
	})
	if err != nil {
		return 0, protocol.NewTransportError(d.op, fmt.Errorf("size chunk at offset %d: %w", off, err))
	}
	if d.cfg.ChunkSize > 0 && n > d.cfg.ChunkSize {
		n = d.cfg.ChunkSize
	}
	return uint64(n), nil
}

// accept places a chunk response into the buffer.
func (d *download) accept(r result) error {
	if r.err != nil {
		return r.err
	}

	chunk, err := d.chunk(r.rsp)
	if err != nil {
		return err
	}

	off := chunk.ChunkOffset()
	claim, ok := d.inFlight[off]
	if !ok || off != r.span.off {
		return protocol.NewConsistencyError(d.op, "response offset %d was not requested", off)
	}
	if total, ok := chunk.TotalLength(); ok && total != d.total {
		return protocol.NewConsistencyError(d.op,
			"total length changed from %d to %d", d.total, total)
	}

	data := chunk.ChunkData()
	if len(data) == 0 {
		return protocol.NewConsistencyError(d.op, "empty chunk at offset %d", off)
	}

	delete(d.inFlight, off)

	n := uint64(len(data))
	if n > claim.len() {
		n = claim.len()
	}
	copy(d.buf[off:], data[:n])
	d.received += n

	if off+n < claim.end {
		d.release(span{off + n, claim.end})
	}

	d.cfg.Metrics.AddBytesDownloaded(int(n))
	d.report()
	return nil
}

// release returns an unfilled range to the pending set.
func (d *download) release(sp span) {
	if d.returned == nil {
		d.returned = make(map[uint64]bool)
	}
	d.returned[sp.off] = true

	i := sort.Search(len(d.pending), func(i int) bool {
		return d.pending[i].off > sp.off
	})
	d.pending = append(d.pending, span{})
	copy(d.pending[i+1:], d.pending[i:])
	d.pending[i] = sp
}

func (d *download) chunk(rsp protocol.Response) (protocol.ReadChunk, error) {
	chunk, ok := rsp.(protocol.ReadChunk)
	if !ok {
		return nil, protocol.NewDecodeError(d.op, fmt.Errorf("unexpected response type %T", rsp))
	}
	return chunk, nil
}

func (d *download) report() {
	if d.cfg.ProgressCallback != nil {
		d.cfg.ProgressCallback(newProgress(d.received, d.total, d.start))
	}
}
