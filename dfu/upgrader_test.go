package dfu

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moffa90/go-mcumgr/image"
	"github.com/moffa90/go-mcumgr/mcumgr"
	"github.com/moffa90/go-mcumgr/mock"
	"github.com/moffa90/go-mcumgr/protocol"
)

var (
	imageWriteKey = (&protocol.ImageWriteRequest{}).Key()
	imageStateKey = (&protocol.ImageStateWriteRequest{}).Key()
	resetKey      = (&protocol.ResetRequest{}).Key()
)

// Mock logger for testing
type MockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...any) {
	l.mu.Lock()
	l.debugMsgs = append(l.debugMsgs, msg)
	l.mu.Unlock()
}

func (l *MockLogger) Info(msg string, kv ...any) {
	l.mu.Lock()
	l.infoMsgs = append(l.infoMsgs, msg)
	l.mu.Unlock()
}

func (l *MockLogger) Error(msg string, kv ...any) {
	l.mu.Lock()
	l.errorMsgs = append(l.errorMsgs, msg)
	l.mu.Unlock()
}

func testImage(t *testing.T) []byte {
	t.Helper()
	payload := make([]byte, 24000)
	rand.New(rand.NewSource(1)).Read(payload)
	return image.Build(payload, image.BuildOptions{Version: image.Version{Major: 1, Minor: 4, Revision: 2}})
}

func newDevice() (*mock.Server, *mcumgr.Client) {
	s, tr := mock.New(protocol.FormatCBOR, 512)
	return s, mcumgr.New(tr)
}

// fast keeps reset polling short in tests.
var fast = []Option{
	WithResetWait(0),
	WithPollInterval(time.Millisecond),
}

func TestNew(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("New(nil) did not panic")
		}
	}()
	New(nil, nil)
}

func TestHash(t *testing.T) {
	img := testImage(t)
	_, c := newDevice()

	up := New(c, img)
	if !bytes.Equal(up.Hash(), image.Hash(img)) {
		t.Errorf("Hash() = %x, want %x", up.Hash(), image.Hash(img))
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name          string
		mode          Mode
		wantConfirmed bool
		wantPhases    []string
	}{
		{
			name:          "test and confirm",
			mode:          ModeTestAndConfirm,
			wantConfirmed: true,
			wantPhases:    []string{PhaseUploading, PhaseTesting, PhaseResetting, PhaseConfirming, PhaseComplete},
		},
		{
			name:          "confirm only",
			mode:          ModeConfirmOnly,
			wantConfirmed: true,
			wantPhases:    []string{PhaseUploading, PhaseConfirming, PhaseResetting, PhaseComplete},
		},
		{
			name:          "test only",
			mode:          ModeTestOnly,
			wantConfirmed: false,
			wantPhases:    []string{PhaseUploading, PhaseTesting, PhaseResetting, PhaseComplete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage(t)
			s, c := newDevice()

			var phases []string
			var last Progress
			up := New(c, img, append(fast,
				WithMode(tt.mode),
				WithProgressCallback(func(p Progress) {
					if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
						phases = append(phases, p.Phase)
					}
					if p.Percentage < last.Percentage {
						t.Errorf("percentage went backwards: %.1f after %.1f", p.Percentage, last.Percentage)
					}
					last = p
				}),
			)...)

			if err := up.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if strings.Join(phases, ",") != strings.Join(tt.wantPhases, ",") {
				t.Errorf("phases = %v, want %v", phases, tt.wantPhases)
			}
			if last.Percentage != 100 || last.BytesSent != uint64(len(img)) {
				t.Errorf("final progress = %+v, want 100%% of %d bytes", last, len(img))
			}

			primary := s.Images().Slot(0)
			if !bytes.Equal(primary.Hash, image.Hash(img)) || !primary.Active {
				t.Fatalf("slot 0 = %+v, want new image active", primary)
			}
			if primary.Version != "1.4.2" {
				t.Errorf("slot 0 version = %q, want 1.4.2", primary.Version)
			}
			if primary.Confirmed != tt.wantConfirmed {
				t.Errorf("slot 0 confirmed = %v, want %v", primary.Confirmed, tt.wantConfirmed)
			}
			if s.OS().Resets() != 1 {
				t.Errorf("Resets() = %d, want 1", s.OS().Resets())
			}
		})
	}
}

func TestRunWaitsForReboot(t *testing.T) {
	img := testImage(t)
	s, c := newDevice()
	s.OS().SetRebootDelay(3)
	logger := &MockLogger{}

	up := New(c, img, append(fast, WithPollAttempts(5), WithLogger(logger))...)
	if err := up.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	notAnswering := 0
	for _, msg := range logger.debugMsgs {
		if msg == "device not answering" {
			notAnswering++
		}
	}
	if notAnswering != 3 {
		t.Errorf("logged %d failed polls, want 3", notAnswering)
	}
	if len(logger.infoMsgs) != 2 {
		t.Errorf("info messages = %v, want start and completion", logger.infoMsgs)
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(s *mock.Server)
		opts      []Option
		wantPhase string
		check     func(t *testing.T, err error)
	}{
		{
			name: "upload rejected",
			setup: func(s *mock.Server) {
				s.InjectFault(imageWriteKey, 3, protocol.RCNoMemory)
			},
			wantPhase: PhaseUploading,
			check: func(t *testing.T, err error) {
				if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCNoMemory {
					t.Errorf("error = %v, want out of memory", err)
				}
			},
		},
		{
			name: "image not pending after test",
			setup: func(s *mock.Server) {
				s.Intercept(imageStateKey, func(_ protocol.Request, rsp any) any {
					if r, ok := rsp.(*protocol.ImageStateResponse); ok {
						for i := range r.Images {
							r.Images[i].Pending = false
						}
					}
					return rsp
				})
			},
			wantPhase: PhaseTesting,
			check: func(t *testing.T, err error) {
				var se *StateError
				if !errors.As(err, &se) || !strings.Contains(se.Message, "not pending") {
					t.Errorf("error = %v, want not pending state error", err)
				}
			},
		},
		{
			name: "reset refused",
			setup: func(s *mock.Server) {
				s.InjectFault(resetKey, 0, protocol.RCBusy)
			},
			wantPhase: PhaseResetting,
			check: func(t *testing.T, err error) {
				if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCBusy {
					t.Errorf("error = %v, want busy", err)
				}
			},
		},
		{
			name: "device never answers",
			setup: func(s *mock.Server) {
				s.OS().SetRebootDelay(100)
			},
			opts:      []Option{WithPollAttempts(3)},
			wantPhase: PhaseResetting,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, mock.ErrUnavailable) {
					t.Errorf("error = %v, want it to wrap %v", err, mock.ErrUnavailable)
				}
				if !strings.Contains(err.Error(), "after 3 attempts") {
					t.Errorf("error = %q, want attempt count", err)
				}
			},
		},
		{
			name: "device reverted",
			setup: func(s *mock.Server) {
				s.OS().OnReset(func() {
					// Swap back as if the new image failed to boot.
					primary, secondary := s.Images().Slot(0), s.Images().Slot(1)
					primary.Active, secondary.Active = false, true
					s.Images().SetSlot(0, secondary)
					s.Images().SetSlot(1, primary)
				})
			},
			wantPhase: PhaseResetting,
			check: func(t *testing.T, err error) {
				var se *StateError
				if !errors.As(err, &se) {
					t.Errorf("error = %v, want state error", err)
				}
			},
		},
		{
			name: "confirm rejected",
			setup: func(s *mock.Server) {
				s.InjectFault(imageStateKey, 1, protocol.RCBadState)
			},
			wantPhase: PhaseConfirming,
			check: func(t *testing.T, err error) {
				if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCBadState {
					t.Errorf("error = %v, want bad state", err)
				}
			},
		},
		{
			name: "image not confirmed",
			setup: func(s *mock.Server) {
				calls := 0
				s.Intercept(imageStateKey, func(_ protocol.Request, rsp any) any {
					calls++
					if r, ok := rsp.(*protocol.ImageStateResponse); ok && calls > 1 {
						r.Images[0].Confirmed = false
					}
					return rsp
				})
			},
			wantPhase: PhaseConfirming,
			check: func(t *testing.T, err error) {
				var se *StateError
				if !errors.As(err, &se) || !strings.Contains(se.Message, "not confirmed") {
					t.Errorf("error = %v, want not confirmed state error", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage(t)
			s, c := newDevice()
			tt.setup(s)
			logger := &MockLogger{}

			opts := append(append([]Option{WithLogger(logger)}, fast...), tt.opts...)
			err := New(c, img, opts...).Run(context.Background())

			var pe *PhaseError
			if !errors.As(err, &pe) {
				t.Fatalf("Run() error = %v, want *PhaseError", err)
			}
			if pe.Phase != tt.wantPhase {
				t.Errorf("phase = %q, want %q", pe.Phase, tt.wantPhase)
			}
			tt.check(t, err)

			if len(logger.errorMsgs) != 1 {
				t.Errorf("error messages = %v, want exactly one", logger.errorMsgs)
			}
		})
	}
}

func TestRunCancel(t *testing.T) {
	img := testImage(t)
	_, c := newDevice()

	ctx, cancel := context.WithCancel(context.Background())
	up := New(c, img, WithResetWait(time.Hour), WithProgressCallback(func(p Progress) {
		if p.Phase == PhaseResetting {
			cancel()
		}
	}))

	err := up.Run(ctx)
	var pe *PhaseError
	if !errors.As(err, &pe) || pe.Phase != PhaseResetting {
		t.Fatalf("Run() error = %v, want resetting phase error", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestPhaseError(t *testing.T) {
	cause := &protocol.Error{Kind: protocol.KindProtocol, Operation: "image upload", Code: protocol.RCNoMemory}
	err := &PhaseError{Phase: PhaseUploading, Err: cause}

	want := "firmware upgrade failed while uploading: image upload failed: out of memory (0x02)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("PhaseError does not unwrap to its cause")
	}
}

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeTestAndConfirm, "test-and-confirm"},
		{ModeConfirmOnly, "confirm-only"},
		{ModeTestOnly, "test-only"},
		{Mode(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", int(tt.mode), got, tt.want)
		}
	}
}
