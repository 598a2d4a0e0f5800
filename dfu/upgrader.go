package dfu

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-mcumgr/image"
	"github.com/moffa90/go-mcumgr/log"
	"github.com/moffa90/go-mcumgr/mcumgr"
	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transfer"
)

// Client is the part of mcumgr.Client an upgrade uses.
type Client interface {
	UploadImage(ctx context.Context, data []byte, capacity int, opts ...mcumgr.UploadOption) error
	TestImage(ctx context.Context, hash []byte) ([]protocol.ImageSlot, error)
	ConfirmImage(ctx context.Context, hash []byte) ([]protocol.ImageSlot, error)
	Reset(ctx context.Context, force bool) error
	ImageState(ctx context.Context) ([]protocol.ImageSlot, error)
}

// Upgrader runs the firmware upgrade sequence for one image.
type Upgrader struct {
	client Client
	data   []byte
	hash   []byte
	config Config
}

// New creates an Upgrader that installs data through client.
//
// Example:
//
//	img, _ := os.ReadFile("zephyr.signed.bin")
//	up := dfu.New(mcumgr.New(conn), img,
//	    dfu.WithProgressCallback(progressFunc),
//	    dfu.WithMode(dfu.ModeTestAndConfirm),
//	)
func New(client Client, data []byte, opts ...Option) *Upgrader {
	if client == nil {
		panic("client cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Logger = log.OrNop(cfg.Logger)

	return &Upgrader{
		client: client,
		data:   data,
		hash:   image.Hash(data),
		config: cfg,
	}
}

// Hash returns the image hash used to test and confirm the image.
func (u *Upgrader) Hash() []byte {
	return u.hash
}

// Run performs the upgrade sequence:
//  1. Upload the image to the secondary slot
//  2. Mark it for test (or confirm it, in ModeConfirmOnly)
//  3. Reset the device and poll until it answers again
//  4. Confirm the running image (ModeTestAndConfirm only)
//
// Failures are returned as *PhaseError. The operation can be cancelled via
// context.
func (u *Upgrader) Run(ctx context.Context) error {
	start := time.Now()
	total := uint64(len(u.data))

	u.config.Logger.Info("firmware upgrade started",
		"mode", u.config.Mode.String(), "bytes", total, "hash", fmt.Sprintf("%x", u.hash))

	// Phase 1: Upload
	u.reportProgress(Progress{Phase: PhaseUploading, TotalBytes: total})
	err := u.client.UploadImage(ctx, u.data, u.config.Capacity,
		mcumgr.WithTransferOptions(transfer.WithProgress(func(p transfer.Progress) {
			u.reportProgress(Progress{
				Phase:       PhaseUploading,
				Percentage:  p.Percentage * 0.9,
				BytesSent:   p.Bytes,
				TotalBytes:  total,
				ElapsedTime: time.Since(start),
			})
		})),
	)
	if err != nil {
		return u.fail(PhaseUploading, err)
	}

	// Phase 2: Test or confirm
	if u.config.Mode == ModeConfirmOnly {
		u.reportProgress(u.progress(PhaseConfirming, 92, start))
		slots, err := u.client.ConfirmImage(ctx, u.hash)
		if err != nil {
			return u.fail(PhaseConfirming, err)
		}
		if err := u.checkPending(slots); err != nil {
			return u.fail(PhaseConfirming, err)
		}
	} else {
		u.reportProgress(u.progress(PhaseTesting, 92, start))
		slots, err := u.client.TestImage(ctx, u.hash)
		if err != nil {
			return u.fail(PhaseTesting, err)
		}
		if err := u.checkPending(slots); err != nil {
			return u.fail(PhaseTesting, err)
		}
	}

	// Phase 3: Reset
	u.reportProgress(u.progress(PhaseResetting, 94, start))
	slots, err := u.reset(ctx)
	if err != nil {
		return u.fail(PhaseResetting, err)
	}
	if err := u.checkActive(slots); err != nil {
		return u.fail(PhaseResetting, err)
	}

	// Phase 4: Confirm
	if u.config.Mode == ModeTestAndConfirm {
		u.reportProgress(u.progress(PhaseConfirming, 97, start))
		slots, err := u.client.ConfirmImage(ctx, u.hash)
		if err != nil {
			return u.fail(PhaseConfirming, err)
		}
		if len(slots) == 0 || !slots[0].Confirmed {
			return u.fail(PhaseConfirming, &StateError{Message: "image is not confirmed"})
		}
	}

	p := u.progress(PhaseComplete, 100, start)
	p.BytesSent = total
	u.reportProgress(p)

	u.config.Logger.Info("firmware upgrade complete",
		"mode", u.config.Mode.String(),
		"bytes", total,
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// reset reboots the device and polls the image list until it answers.
func (u *Upgrader) reset(ctx context.Context) ([]protocol.ImageSlot, error) {
	// The device may reboot before its response is sent.
	if err := u.client.Reset(ctx, false); err != nil {
		if !protocol.IsKind(err, protocol.KindTransport) || ctx.Err() != nil {
			return nil, err
		}
		u.config.Logger.Debug("reset response lost", "error", err)
	}

	if err := sleep(ctx, u.config.ResetWait); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= u.config.PollAttempts; attempt++ {
		slots, err := u.client.ImageState(ctx)
		if err == nil {
			u.config.Logger.Debug("device answered after reset", "attempt", attempt)
			return slots, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		u.config.Logger.Debug("device not answering", "attempt", attempt, "error", err)

		if attempt < u.config.PollAttempts {
			if err := sleep(ctx, u.config.PollInterval); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("device did not answer after %d attempts: %w", u.config.PollAttempts, lastErr)
}

// checkPending verifies the uploaded image will be booted on the next
// reset.
func (u *Upgrader) checkPending(slots []protocol.ImageSlot) error {
	s := u.find(slots)
	if s == nil {
		return &StateError{Message: "uploaded image not listed"}
	}
	if !s.Pending {
		return &StateError{Message: fmt.Sprintf("image in slot %d is not pending", s.Slot)}
	}
	return nil
}

// checkActive verifies the device runs the new image after the reset.
func (u *Upgrader) checkActive(slots []protocol.ImageSlot) error {
	s := u.find(slots)
	if s == nil || !s.Active {
		return &StateError{Message: "device did not boot the new image"}
	}
	if u.config.Mode == ModeConfirmOnly && !s.Confirmed {
		return &StateError{Message: "new image is running but not confirmed"}
	}
	return nil
}

func (u *Upgrader) find(slots []protocol.ImageSlot) *protocol.ImageSlot {
	for i := range slots {
		if bytes.Equal(slots[i].Hash, u.hash) {
			return &slots[i]
		}
	}
	return nil
}

func (u *Upgrader) fail(phase string, err error) error {
	u.config.Logger.Error("firmware upgrade failed", "phase", phase, "error", err)
	return &PhaseError{Phase: phase, Err: err}
}

func (u *Upgrader) progress(phase string, pct float64, start time.Time) Progress {
	return Progress{
		Phase:       phase,
		Percentage:  pct,
		BytesSent:   uint64(len(u.data)),
		TotalBytes:  uint64(len(u.data)),
		ElapsedTime: time.Since(start),
	}
}

// reportProgress calls the progress callback if configured.
func (u *Upgrader) reportProgress(p Progress) {
	if u.config.ProgressCallback != nil {
		u.config.ProgressCallback(p)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
