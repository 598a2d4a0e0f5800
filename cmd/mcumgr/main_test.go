package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/moffa90/go-mcumgr/image"
	"github.com/moffa90/go-mcumgr/mock"
	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transport"
)

type mockConn struct {
	*mock.Transport
}

func (mockConn) Close() error { return nil }

// device runs CLI invocations against a simulated device.
type device struct {
	server    *mock.Server
	transport *mock.Transport
	dialed    []string
}

func newDevice(t *testing.T) *device {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	s, tr := mock.New(protocol.FormatCBOR, 256)
	return &device{server: s, transport: tr}
}

func (d *device) run(args ...string) (string, error) {
	sess := &session{
		dial: func(_ context.Context, conn string, _ ...transport.Option) (transport.Conn, error) {
			d.dialed = append(d.dialed, conn)
			return mockConn{d.transport}, nil
		},
	}
	app := newApp(sess)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"mcumgr"}, args...))
	return out.String(), err
}

func (d *device) runConn(args ...string) (string, error) {
	return d.run(append([]string{"--conn", "udp:192.0.2.1:1337"}, args...)...)
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestEchoCommand(t *testing.T) {
	d := newDevice(t)

	out, err := d.runConn("echo", "hello device")
	if err != nil {
		t.Fatalf("echo failed: %v", err)
	}
	if out != "hello device\n" {
		t.Errorf("output = %q, want the echoed text", out)
	}
	if len(d.dialed) != 1 || d.dialed[0] != "udp:192.0.2.1:1337" {
		t.Errorf("dialed %v, want the --conn value", d.dialed)
	}
}

func TestVersionAndVerboseFlags(t *testing.T) {
	d := newDevice(t)

	for _, arg := range []string{"--version", "-v"} {
		out, err := d.run(arg)
		if err != nil {
			t.Fatalf("%s failed: %v", arg, err)
		}
		if !strings.Contains(out, "mcumgr version "+version) {
			t.Errorf("%s output = %q, want the version", arg, out)
		}
	}

	out, err := d.runConn("--verbose", "echo", "loud")
	if err != nil {
		t.Fatalf("echo with --verbose failed: %v", err)
	}
	if out != "loud\n" {
		t.Errorf("output = %q, want the echoed text", out)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing argument", []string{"--conn", "udp:192.0.2.1:1337", "echo"}},
		{"no connection", []string{"params"}},
		{"bad format", []string{"--conn", "udp:192.0.2.1:1337", "--format", "xml", "params"}},
		{"bad mode", []string{"--conn", "udp:192.0.2.1:1337", "upgrade", "--mode", "yolo", "fw.bin"}},
		{"bad config", []string{"--config", "/nonexistent/mcumgr.yaml", "params"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDevice(t)
			t.Setenv("MCUMGR_CONN", "")

			_, err := d.run(tt.args...)
			if code := exitCode(err); code != 2 {
				t.Errorf("error = %v (exit code %d), want exit code 2", err, code)
			}
		})
	}
}

func TestDeviceError(t *testing.T) {
	d := newDevice(t)
	d.server.InjectFault((&protocol.EchoRequest{}).Key(), 0, protocol.RCBusy)

	_, err := d.runConn("echo", "x")
	if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCBusy {
		t.Errorf("error = %v, want device busy", err)
	}
}

func TestConfigFileAndFlags(t *testing.T) {
	d := newDevice(t)
	path := filepath.Join(t.TempDir(), "mcumgr.yaml")
	if err := os.WriteFile(path, []byte("conn: udp:192.0.2.7:1337\ncapacity: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := d.run("--config", path, "params"); err != nil {
		t.Fatalf("params failed: %v", err)
	}
	if _, err := d.run("--config", path, "--conn", "tcp:localhost:1337", "params"); err != nil {
		t.Fatalf("params failed: %v", err)
	}

	want := []string{"udp:192.0.2.7:1337", "tcp:localhost:1337"}
	if strings.Join(d.dialed, ",") != strings.Join(want, ",") {
		t.Errorf("dialed %v, want %v", d.dialed, want)
	}
}

func TestTaskStatAndParams(t *testing.T) {
	d := newDevice(t)
	d.server.OS().SetTasks(map[string]protocol.TaskStat{
		"main": {Priority: 2, StackSize: 2048},
		"idle": {Priority: 15, StackSize: 320},
	})

	out, err := d.runConn("taskstat")
	if err != nil {
		t.Fatalf("taskstat failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "idle") || !strings.HasPrefix(lines[2], "main") {
		t.Errorf("taskstat output = %q, want header then idle and main", out)
	}

	out, err = d.runConn("params")
	if err != nil {
		t.Fatalf("params failed: %v", err)
	}
	if !strings.Contains(out, "buf_size=256") {
		t.Errorf("params output = %q, want buf_size=256", out)
	}
}

func TestFSCommands(t *testing.T) {
	d := newDevice(t)
	dir := t.TempDir()
	want := make([]byte, 5000)
	rand.New(rand.NewSource(5)).Read(want)

	local := filepath.Join(dir, "settings.bin")
	if err := os.WriteFile(local, want, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := d.runConn("--capacity", "3", "fs", "upload", local, "/lfs/settings.bin"); err != nil {
		t.Fatalf("fs upload failed: %v", err)
	}
	if stored, _ := d.server.Files().Get("/lfs/settings.bin"); !bytes.Equal(stored, want) {
		t.Fatal("stored file differs")
	}

	copyPath := filepath.Join(dir, "copy.bin")
	out, err := d.runConn("fs", "download", "/lfs/settings.bin", copyPath)
	if err != nil {
		t.Fatalf("fs download failed: %v", err)
	}
	if got, _ := os.ReadFile(copyPath); !bytes.Equal(got, want) {
		t.Error("downloaded file differs")
	}
	if !strings.Contains(out, "downloaded 5000 bytes") {
		t.Errorf("output = %q", out)
	}

	_, err = d.runConn("fs", "download", "/lfs/missing", copyPath)
	if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCNoEntry {
		t.Errorf("download of missing file error = %v, want no such entry", err)
	}
}

func TestCoreCommands(t *testing.T) {
	d := newDevice(t)

	out, err := d.runConn("core", "list")
	if err != nil || !strings.Contains(out, "no core dump") {
		t.Fatalf("core list = %q, %v; want no core dump", out, err)
	}

	dump := bytes.Repeat([]byte{0xC0, 0xDE}, 3000)
	d.server.Core().SetData(dump)

	path := filepath.Join(t.TempDir(), "core.bin")
	if _, err := d.runConn("core", "download", path); err != nil {
		t.Fatalf("core download failed: %v", err)
	}
	if got, _ := os.ReadFile(path); !bytes.Equal(got, dump) {
		t.Error("downloaded core dump differs")
	}

	if _, err := d.runConn("core", "erase"); err != nil {
		t.Fatalf("core erase failed: %v", err)
	}
	if d.server.Core().Data() != nil {
		t.Error("core dump still present")
	}
}

func writeImage(t *testing.T, v image.Version) (string, []byte) {
	t.Helper()
	payload := make([]byte, 6000)
	rand.New(rand.NewSource(9)).Read(payload)
	data := image.Build(payload, image.BuildOptions{Version: v})
	path := filepath.Join(t.TempDir(), "zephyr.signed.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func TestImageCommands(t *testing.T) {
	d := newDevice(t)
	path, data := writeImage(t, image.Version{Major: 1, Minor: 1})

	out, err := d.run("image", "info", path)
	if err != nil {
		t.Fatalf("image info failed: %v", err)
	}
	if !strings.Contains(out, "version:   1.1.0") {
		t.Errorf("image info output = %q", out)
	}

	if _, err := d.runConn("image", "upload", path); err != nil {
		t.Fatalf("image upload failed: %v", err)
	}
	if slot := d.server.Images().Slot(1); slot == nil || !bytes.Equal(slot.Data, data) {
		t.Fatal("secondary slot does not hold the uploaded image")
	}

	if _, err := d.runConn("image", "erase"); err != nil {
		t.Fatalf("image erase failed: %v", err)
	}
	if d.server.Images().Slot(1) != nil {
		t.Fatal("slot 1 not erased")
	}
	if _, err := d.runConn("image", "upload", path); err != nil {
		t.Fatalf("second image upload failed: %v", err)
	}

	hash := image.Hash(data)
	out, err = d.runConn("image", "test", strings.ToUpper(fmt.Sprintf("%x", hash)))
	if err != nil {
		t.Fatalf("image test failed: %v", err)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("image test output = %q, want a pending slot", out)
	}

	out, err = d.runConn("image", "list")
	if err != nil {
		t.Fatalf("image list failed: %v", err)
	}
	for _, want := range []string{"slot=0", "slot=1", "version: 1.0.0", "version: 1.1.0", fmt.Sprintf("%x", hash)} {
		if !strings.Contains(out, want) {
			t.Errorf("image list output missing %q:\n%s", want, out)
		}
	}

	if _, err := d.runConn("image", "test", "abcd"); err == nil {
		t.Error("image test with a short hash succeeded")
	}

	_, err = d.runConn("image", "erase")
	if rc, ok := protocol.CodeOf(err); !ok || rc != protocol.RCBadState {
		t.Errorf("erase of a pending image error = %v, want bad state", err)
	}
}

func TestUpgradeCommand(t *testing.T) {
	d := newDevice(t)
	path, data := writeImage(t, image.Version{Major: 2})

	out, err := d.runConn("upgrade", "--reset-wait", "0s", path)
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	if !strings.Contains(out, "upgrade complete") {
		t.Errorf("output = %q", out)
	}

	primary := d.server.Images().Slot(0)
	if !bytes.Equal(primary.Hash, image.Hash(data)) || !primary.Confirmed || primary.Version != "2.0.0" {
		t.Errorf("slot 0 = %+v, want 2.0.0 confirmed", primary)
	}
}
