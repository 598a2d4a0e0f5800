package dfu

import "time"

// Upgrade phases reported in Progress.Phase and PhaseError.Phase.
const (
	PhaseUploading  = "uploading"
	PhaseTesting    = "testing"
	PhaseResetting  = "resetting"
	PhaseConfirming = "confirming"
	PhaseComplete   = "complete"
)

// Progress contains information about the upgrade progress.
// Passed to ProgressCallback during Run.
type Progress struct {
	// Phase describes the current operation phase:
	//   "uploading"  - Writing the image to the secondary slot
	//   "testing"    - Marking the image for a test boot
	//   "resetting"  - Rebooting and waiting for the device to answer
	//   "confirming" - Making the new image permanent
	//   "complete"   - Upgrade completed successfully
	Phase string

	// Percentage is the overall completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesSent is the number of image bytes acknowledged by the device
	BytesSent uint64

	// TotalBytes is the image size
	TotalBytes uint64

	// ElapsedTime is the time elapsed since the upgrade started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically during the upgrade to report
// progress. Implementations should return quickly to avoid stalling the
// upload.
//
// Example:
//
//	up := dfu.New(client, img,
//	    dfu.WithProgressCallback(func(p dfu.Progress) {
//	        fmt.Printf("[%s] %.1f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
type ProgressCallback func(Progress)
