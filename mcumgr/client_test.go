package mcumgr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"math/rand"
	"testing"

	"github.com/moffa90/go-mcumgr/image"
	"github.com/moffa90/go-mcumgr/metrics"
	"github.com/moffa90/go-mcumgr/mock"
	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transfer"
)

var formats = []protocol.Format{protocol.FormatCBOR, protocol.FormatJSON}

func newTestClient(format protocol.Format, opts ...Option) (*mock.Server, *Client) {
	s, tr := mock.New(format, 256)
	return s, New(tr, append([]Option{WithFormat(format)}, opts...)...)
}

func randomData(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	return data
}

func TestNew(t *testing.T) {
	t.Run("nil transport panics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("New(nil) did not panic")
			}
		}()
		New(nil)
	})

	t.Run("mtu from transport", func(t *testing.T) {
		_, tr := mock.New(protocol.FormatCBOR, 300)
		if got := New(tr).MTU(); got != 300 {
			t.Errorf("MTU() = %d, want 300", got)
		}
	})
}

func TestEcho(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			_, c := newTestClient(format)

			got, err := c.Echo(context.Background(), "hello device")
			if err != nil {
				t.Fatalf("Echo() error = %v", err)
			}
			if got != "hello device" {
				t.Errorf("Echo() = %q, want %q", got, "hello device")
			}
		})
	}
}

func TestTaskStats(t *testing.T) {
	// Three tasks need more than a 256-byte frame.
	s, tr := mock.New(protocol.FormatCBOR, 512)
	c := New(tr)
	s.OS().SetTasks(map[string]protocol.TaskStat{
		"sysworkq": {Priority: 1, StackSize: 1024},
		"idle":     {Priority: 15, StackSize: 320},
		"main":     {Priority: 0, StackSize: 2048, ContextSwitches: 7},
	})

	tasks, err := c.TaskStats(context.Background())
	if err != nil {
		t.Fatalf("TaskStats() error = %v", err)
	}

	names := []string{"idle", "main", "sysworkq"}
	if len(tasks) != len(names) {
		t.Fatalf("TaskStats() returned %d tasks, want %d", len(tasks), len(names))
	}
	for i, name := range names {
		if tasks[i].Name != name {
			t.Errorf("tasks[%d].Name = %q, want %q", i, tasks[i].Name, name)
		}
	}
	if tasks[1].ContextSwitches != 7 || tasks[1].StackSize != 2048 {
		t.Errorf("main task = %+v, want stats preserved", tasks[1])
	}
}

func TestParams(t *testing.T) {
	_, c := newTestClient(protocol.FormatJSON)

	p, err := c.Params(context.Background())
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if p.BufSize != 256 || p.BufCount != mock.DefaultBufCount {
		t.Errorf("Params() = %+v, want {256 %d}", p, mock.DefaultBufCount)
	}
}

func TestCore(t *testing.T) {
	s, c := newTestClient(protocol.FormatCBOR)
	ctx := context.Background()

	present, err := c.CoreList(ctx)
	if err != nil || present {
		t.Fatalf("CoreList() = %v, %v; want false, nil", present, err)
	}
	_, err = c.DownloadCore(ctx, 4)
	if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCNoEntry {
		t.Fatalf("DownloadCore() error = %v, want no such entry", err)
	}

	want := randomData(40000)
	s.Core().SetData(want)

	present, err = c.CoreList(ctx)
	if err != nil || !present {
		t.Fatalf("CoreList() = %v, %v; want true, nil", present, err)
	}
	got, err := c.DownloadCore(ctx, 4)
	if err != nil {
		t.Fatalf("DownloadCore() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("DownloadCore() data differs")
	}

	if err := c.EraseCore(ctx); err != nil {
		t.Fatalf("EraseCore() error = %v", err)
	}
	if s.Core().Data() != nil {
		t.Error("core dump still present after EraseCore()")
	}
}

func TestFiles(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			s, c := newTestClient(format)
			ctx := context.Background()
			want := randomData(12345)

			if err := c.UploadFile(ctx, "/lfs/settings.bin", want, 4); err != nil {
				t.Fatalf("UploadFile() error = %v", err)
			}
			if stored, _ := s.Files().Get("/lfs/settings.bin"); !bytes.Equal(stored, want) {
				t.Fatal("stored file differs")
			}

			got, err := c.DownloadFile(ctx, "/lfs/settings.bin", 4)
			if err != nil {
				t.Fatalf("DownloadFile() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Fatal("DownloadFile() data differs")
			}

			_, err = c.DownloadFile(ctx, "/lfs/missing", 4)
			if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCNoEntry {
				t.Errorf("DownloadFile(missing) error = %v, want no such entry", err)
			}
		})
	}
}

func TestUploadImage(t *testing.T) {
	tests := []struct {
		name    string
		opts    []UploadOption
		wantSHA bool
	}{
		{"with sha", nil, true},
		{"without sha", []UploadOption{WithoutSHA()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newTestClient(protocol.FormatCBOR)
			data := image.Build(randomData(20000), image.BuildOptions{Version: image.Version{Major: 1, Minor: 2}})

			var sha []byte
			s.Intercept((&protocol.ImageWriteRequest{}).Key(), func(req protocol.Request, rsp any) any {
				if r := req.(*protocol.ImageWriteRequest); r.Off == 0 {
					sha = r.SHA
				}
				return rsp
			})

			if err := c.UploadImage(context.Background(), data, 4, tt.opts...); err != nil {
				t.Fatalf("UploadImage() error = %v", err)
			}

			sum := sha256.Sum256(data)
			if tt.wantSHA && !bytes.Equal(sha, sum[:]) {
				t.Errorf("first chunk sha = %x, want %x", sha, sum)
			}
			if !tt.wantSHA && len(sha) != 0 {
				t.Errorf("first chunk sha = %x, want none", sha)
			}

			slot := s.Images().Slot(1)
			if slot == nil || !bytes.Equal(slot.Data, data) || slot.Version != "1.2.0" {
				t.Errorf("secondary slot = %+v, want uploaded image 1.2.0", slot)
			}
		})
	}
}

func TestImageLifecycle(t *testing.T) {
	s, c := newTestClient(protocol.FormatCBOR)
	ctx := context.Background()

	data := image.Build(randomData(8000), image.BuildOptions{Version: image.Version{Major: 2}})
	hash := image.Hash(data)

	if err := c.UploadImage(ctx, data, 4); err != nil {
		t.Fatalf("UploadImage() error = %v", err)
	}

	slots, err := c.TestImage(ctx, hash)
	if err != nil {
		t.Fatalf("TestImage() error = %v", err)
	}
	if len(slots) != 2 || !slots[1].Pending {
		t.Fatalf("TestImage() slots = %+v, want slot 1 pending", slots)
	}

	if err := c.Reset(ctx, false); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if s.OS().Resets() != 1 {
		t.Errorf("Resets() = %d, want 1", s.OS().Resets())
	}

	slots, err = c.ImageState(ctx)
	if err != nil {
		t.Fatalf("ImageState() error = %v", err)
	}
	if !bytes.Equal(slots[0].Hash, hash) || !slots[0].Active || slots[0].Confirmed {
		t.Fatalf("after reset slot 0 = %+v, want new image active and unconfirmed", slots[0])
	}

	slots, err = c.ConfirmImage(ctx, nil)
	if err != nil {
		t.Fatalf("ConfirmImage() error = %v", err)
	}
	if !slots[0].Confirmed || slots[0].Version != "2.0.0" {
		t.Errorf("after confirm slot 0 = %+v, want 2.0.0 confirmed", slots[0])
	}

	if err := c.EraseImage(ctx, 1); err != nil {
		t.Fatalf("EraseImage(1) error = %v", err)
	}
	if s.Images().Slot(1) != nil {
		t.Error("slot 1 not erased")
	}
	err = c.EraseImage(ctx, 0)
	if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCBadState {
		t.Errorf("EraseImage(0) error = %v, want bad state", err)
	}
}

func TestTestImageUnknownHash(t *testing.T) {
	_, c := newTestClient(protocol.FormatCBOR)

	_, err := c.TestImage(context.Background(), bytes.Repeat([]byte{0xAB}, 32))
	if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCNoEntry {
		t.Errorf("TestImage() error = %v, want no such entry", err)
	}
	var perr *protocol.Error
	if !errors.As(err, &perr) || perr.Operation != "image state" {
		t.Errorf("error operation = %v, want image state", err)
	}
}

func TestClientOptions(t *testing.T) {
	m := metrics.NewCollector("mock", "cbor")
	var reports []transfer.Progress
	s, c := newTestClient(protocol.FormatCBOR,
		WithMetrics(m),
		WithChunkSize(64),
		WithProgress(func(p transfer.Progress) { reports = append(reports, p) }),
	)
	want := randomData(640)

	if err := c.UploadFile(context.Background(), "/lfs/f", want, 2); err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}

	if n := s.Requests((&protocol.FileWriteRequest{}).Key()); n != 10 {
		t.Errorf("sent %d chunks, want 10 with 64-byte chunks", n)
	}
	if len(reports) == 0 || reports[len(reports)-1].Bytes != 640 {
		t.Errorf("progress reports = %+v, want the last one at 640 bytes", reports)
	}

	snap := m.Snapshot()
	if snap.RequestsSent != 10 || snap.TransfersCompleted != 1 || snap.BytesUploaded != 640 {
		t.Errorf("snapshot = %+v, want 10 requests, 1 transfer, 640 bytes", snap)
	}
	if c.Metrics() != m {
		t.Error("Metrics() does not return the configured collector")
	}
}

func TestVersion2Errors(t *testing.T) {
	s, tr := mock.New(protocol.FormatCBOR, 256)
	c := New(tr, WithVersion(protocol.Version2))
	s.InjectFault((&protocol.EchoRequest{}).Key(), 0, protocol.RCBusy)

	_, err := c.Echo(context.Background(), "x")
	var perr *protocol.Error
	if !errors.As(err, &perr) {
		t.Fatalf("Echo() error = %v, want *protocol.Error", err)
	}
	if perr.Code != protocol.RCBusy || perr.Group != protocol.GroupOS {
		t.Errorf("error = code %v group %v, want busy from os group", perr.Code, perr.Group)
	}
}
