package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestHeaderMarshal(t *testing.T) {
	h := Header{
		Version:  Version2,
		Op:       OpWrite,
		Flags:    0x00,
		Length:   0x0102,
		Group:    GroupFS,
		Sequence: 0x2A,
		Command:  CmdFile,
	}

	got := h.Marshal()
	want := []byte{0x0A, 0x00, 0x01, 0x02, 0x00, 0x08, 0x2A, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("Marshal() = % X, want % X", got, want)
	}

	parsed, err := ParseHeader(got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != h {
		t.Errorf("ParseHeader() = %+v, want %+v", parsed, h)
	}
}

func TestHeaderGroupIsSixteenBits(t *testing.T) {
	h := Header{Op: OpRead, Group: 0x1234, Command: 7}
	parsed, err := ParseHeader(h.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Group != 0x1234 {
		t.Errorf("Group = 0x%04X, want 0x1234", uint16(parsed.Group))
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid legacy header",
			data: []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x04},
		},
		{
			name:    "too short",
			data:    []byte{0x01, 0x00},
			wantErr: true,
			errMsg:  "header too short",
		},
		{
			name:    "invalid version",
			data:    []byte{0x10, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x04},
			wantErr: true,
			errMsg:  "invalid version",
		},
		{
			name:    "invalid op",
			data:    []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x04},
			wantErr: true,
			errMsg:  "invalid op",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEncodeDecodeFrame(t *testing.T) {
	body := []byte{0xA1, 0x61, 0x64, 0x62, 0x68, 0x69}
	h := Header{Op: OpWrite, Group: GroupOS, Sequence: 9, Command: CmdEcho}

	frame, err := EncodeFrame(h, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame) != HeaderSize+len(body) {
		t.Fatalf("len(frame) = %d, want %d", len(frame), HeaderSize+len(body))
	}

	got, gotBody, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Length != uint16(len(body)) {
		t.Errorf("Length = %d, want %d", got.Length, len(body))
	}
	if got.Key() != (Key{OpWrite, GroupOS, CmdEcho}) {
		t.Errorf("Key() = %v", got.Key())
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("body = % X, want % X", gotBody, body)
	}
}

func TestDecodeFrameLengthMismatch(t *testing.T) {
	frame, err := EncodeFrame(Header{Op: OpReadResponse}, []byte{0xA0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "truncated body", frame: frame[:HeaderSize]},
		{name: "trailing bytes", frame: append(append([]byte{}, frame...), 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFrame(tt.frame)
			if err == nil || !strings.Contains(err.Error(), "frame length mismatch") {
				t.Errorf("error = %v, want frame length mismatch", err)
			}
		})
	}
}

func TestEncodeFrameBodyTooLarge(t *testing.T) {
	_, err := EncodeFrame(Header{}, make([]byte, MaxBodySize+1))
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestOpResponse(t *testing.T) {
	tests := []struct {
		op   Op
		want Op
	}{
		{OpRead, OpReadResponse},
		{OpWrite, OpWriteResponse},
		{OpReadResponse, OpReadResponse},
		{OpWriteResponse, OpWriteResponse},
	}

	for _, tt := range tests {
		if got := tt.op.Response(); got != tt.want {
			t.Errorf("%v.Response() = %v, want %v", tt.op, got, tt.want)
		}
	}
}

func BenchmarkEncodeFrame(b *testing.B) {
	body := make([]byte, 256)
	h := Header{Op: OpWrite, Group: GroupImage, Command: CmdImageUpload}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = EncodeFrame(h, body)
	}
}
