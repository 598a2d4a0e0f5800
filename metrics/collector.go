// Package metrics provides per-client counters for requests and transfers.
//
// The Collector is a leaf package with no internal dependencies. The
// dispatcher records request outcomes and the transfer engine records chunk
// and byte counts. Callers read a consistent view with Snapshot.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	// Requests
	RequestsSent      int64
	ResponsesReceived int64
	RequestsFailed    int64
	FailuresByKind    map[string]int64
	BytesOut          int64
	BytesIn           int64

	// Transfers
	TransfersStarted   int64
	TransfersCompleted int64
	TransfersFailed    int64
	ChunksSent         int64
	ChunksResent       int64
	Resyncs            int64
	BytesDownloaded    int64
	BytesUploaded      int64

	// Dimensions (informational, set at construction)
	Connection string
	Format     string
}

// Collector accumulates metrics over the lifetime of a client.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	requestsSent      int64
	responsesReceived int64
	requestsFailed    int64
	failuresByKind    map[string]int64
	bytesOut          int64
	bytesIn           int64

	transfersStarted   int64
	transfersCompleted int64
	transfersFailed    int64
	chunksSent         int64
	chunksResent       int64
	resyncs            int64
	bytesDownloaded    int64
	bytesUploaded      int64

	connection string
	format     string
}

// NewCollector creates a Collector labelled with the connection string and
// body format.
func NewCollector(connection, format string) *Collector {
	return &Collector{
		failuresByKind: make(map[string]int64),
		connection:     connection,
		format:         format,
	}
}

// --- Requests ---

// IncRequestSent records a frame handed to the transport.
func (c *Collector) IncRequestSent(frameSize int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.requestsSent++
	c.bytesOut += int64(frameSize)
	c.mu.Unlock()
}

// IncResponseReceived records a decoded response frame.
func (c *Collector) IncResponseReceived(frameSize int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.responsesReceived++
	c.bytesIn += int64(frameSize)
	c.mu.Unlock()
}

// IncRequestFailed records a failed request by error kind.
func (c *Collector) IncRequestFailed(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.requestsFailed++
	c.failuresByKind[kind]++
	c.mu.Unlock()
}

// --- Transfers ---

// IncTransferStarted records the start of a download or upload.
func (c *Collector) IncTransferStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transfersStarted++
	c.mu.Unlock()
}

// IncTransferCompleted records a finished transfer.
func (c *Collector) IncTransferCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transfersCompleted++
	c.mu.Unlock()
}

// IncTransferFailed records an aborted transfer.
func (c *Collector) IncTransferFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transfersFailed++
	c.mu.Unlock()
}

// IncChunkSent records a chunk request. resent is true when the range was
// requested before (short download response or upload resync).
func (c *Collector) IncChunkSent(resent bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksSent++
	if resent {
		c.chunksResent++
	}
	c.mu.Unlock()
}

// IncResync records an upload cursor move requested by the device.
func (c *Collector) IncResync() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.resyncs++
	c.mu.Unlock()
}

// AddBytesDownloaded records payload bytes received.
func (c *Collector) AddBytesDownloaded(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesDownloaded += int64(n)
	c.mu.Unlock()
}

// AddBytesUploaded records payload bytes acknowledged by the device.
func (c *Collector) AddBytesUploaded(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesUploaded += int64(n)
	c.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics.
// Nil-receiver safe: returns zero Snapshot.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{FailuresByKind: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.failuresByKind))
	for k, v := range c.failuresByKind {
		byKind[k] = v
	}

	return Snapshot{
		RequestsSent:       c.requestsSent,
		ResponsesReceived:  c.responsesReceived,
		RequestsFailed:     c.requestsFailed,
		FailuresByKind:     byKind,
		BytesOut:           c.bytesOut,
		BytesIn:            c.bytesIn,
		TransfersStarted:   c.transfersStarted,
		TransfersCompleted: c.transfersCompleted,
		TransfersFailed:    c.transfersFailed,
		ChunksSent:         c.chunksSent,
		ChunksResent:       c.chunksResent,
		Resyncs:            c.resyncs,
		BytesDownloaded:    c.bytesDownloaded,
		BytesUploaded:      c.bytesUploaded,
		Connection:         c.connection,
		Format:             c.format,
	}
}
