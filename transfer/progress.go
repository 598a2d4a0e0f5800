package transfer

import "time"

// Progress contains information about a running transfer.
// Passed to ProgressCallback after every accepted chunk.
type Progress struct {
	// Bytes is the number of bytes received (download) or acknowledged by
	// the device (upload)
	Bytes uint64

	// Total is the transfer size in bytes
	Total uint64

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the transfer started
	ElapsedTime time.Duration
}

// ProgressCallback is called from the transfer goroutine to report
// progress. Implementations should return quickly to avoid stalling the
// transfer.
//
// Example:
//
//	transfer.WithProgress(func(p transfer.Progress) {
//	    fmt.Printf("%d/%d bytes (%.1f%%)\n", p.Bytes, p.Total, p.Percentage)
//	})
type ProgressCallback func(Progress)

func newProgress(bytes, total uint64, start time.Time) Progress {
	pct := 100.0
	if total > 0 {
		pct = float64(bytes) / float64(total) * 100
	}
	return Progress{
		Bytes:       bytes,
		Total:       total,
		Percentage:  pct,
		ElapsedTime: time.Since(start),
	}
}
