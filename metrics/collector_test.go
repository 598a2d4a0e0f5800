package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("udp:192.0.2.1:1337", "cbor")

	c.IncRequestSent(100)
	c.IncRequestSent(28)
	c.IncResponseReceived(64)
	c.IncRequestFailed("transport")
	c.IncRequestFailed("protocol")
	c.IncRequestFailed("protocol")
	c.IncTransferStarted()
	c.IncTransferStarted()
	c.IncTransferCompleted()
	c.IncTransferFailed()
	c.IncChunkSent(false)
	c.IncChunkSent(true)
	c.IncResync()
	c.AddBytesDownloaded(350)
	c.AddBytesUploaded(10)

	s := c.Snapshot()

	if s.RequestsSent != 2 {
		t.Errorf("RequestsSent = %d, want 2", s.RequestsSent)
	}
	if s.BytesOut != 128 {
		t.Errorf("BytesOut = %d, want 128", s.BytesOut)
	}
	if s.ResponsesReceived != 1 || s.BytesIn != 64 {
		t.Errorf("ResponsesReceived = %d, BytesIn = %d, want 1, 64", s.ResponsesReceived, s.BytesIn)
	}
	if s.RequestsFailed != 3 {
		t.Errorf("RequestsFailed = %d, want 3", s.RequestsFailed)
	}
	if s.FailuresByKind["protocol"] != 2 {
		t.Errorf("FailuresByKind[protocol] = %d, want 2", s.FailuresByKind["protocol"])
	}
	if s.TransfersStarted != 2 || s.TransfersCompleted != 1 || s.TransfersFailed != 1 {
		t.Errorf("transfers = %d/%d/%d, want 2/1/1", s.TransfersStarted, s.TransfersCompleted, s.TransfersFailed)
	}
	if s.ChunksSent != 2 || s.ChunksResent != 1 {
		t.Errorf("ChunksSent = %d, ChunksResent = %d, want 2, 1", s.ChunksSent, s.ChunksResent)
	}
	if s.Resyncs != 1 {
		t.Errorf("Resyncs = %d, want 1", s.Resyncs)
	}
	if s.BytesDownloaded != 350 || s.BytesUploaded != 10 {
		t.Errorf("bytes = %d/%d, want 350/10", s.BytesDownloaded, s.BytesUploaded)
	}
	if s.Connection != "udp:192.0.2.1:1337" || s.Format != "cbor" {
		t.Errorf("dimensions = %q/%q", s.Connection, s.Format)
	}
}

func TestCollector_NilReceiver(t *testing.T) {
	var c *Collector

	c.IncRequestSent(1)
	c.IncResponseReceived(1)
	c.IncRequestFailed("decode")
	c.IncTransferStarted()
	c.IncTransferCompleted()
	c.IncTransferFailed()
	c.IncChunkSent(true)
	c.IncResync()
	c.AddBytesDownloaded(1)
	c.AddBytesUploaded(1)

	s := c.Snapshot()
	if s.RequestsSent != 0 || s.FailuresByKind == nil {
		t.Errorf("nil Snapshot = %+v", s)
	}
}

func TestCollector_SnapshotIsCopy(t *testing.T) {
	c := NewCollector("", "json")
	c.IncRequestFailed("decode")

	s := c.Snapshot()
	s.FailuresByKind["decode"] = 99

	if got := c.Snapshot().FailuresByKind["decode"]; got != 1 {
		t.Errorf("collector mutated through snapshot: %d", got)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("", "cbor")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncChunkSent(false)
				c.AddBytesDownloaded(2)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.ChunksSent != 5000 || s.BytesDownloaded != 10000 {
		t.Errorf("ChunksSent = %d, BytesDownloaded = %d, want 5000, 10000", s.ChunksSent, s.BytesDownloaded)
	}
}
