package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

var formats = []Format{FormatCBOR, FormatJSON}

func TestCodecFileReadResponse(t *testing.T) {
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			c := NewCodec(f)
			in := &FileReadResponse{Off: 0, Data: []byte{1, 2, 3}, Len: Uint64(3)}

			data, err := c.Marshal(in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var out FileReadResponse
			if err := c.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !bytes.Equal(out.Data, in.Data) {
				t.Errorf("Data = %v, want %v", out.Data, in.Data)
			}
			if total, ok := out.TotalLength(); !ok || total != 3 {
				t.Errorf("TotalLength() = %d, %v, want 3, true", total, ok)
			}
			if rc, _ := out.Result(); rc != RCOK {
				t.Errorf("Result() = %v, want ok", rc)
			}
		})
	}
}

func TestCodecOmitsAbsentOptionalFields(t *testing.T) {
	req := &FileWriteRequest{Name: "f", Off: 10, Data: []byte{0xAA}}

	t.Run("cbor", func(t *testing.T) {
		data, err := NewCodec(FormatCBOR).Marshal(req)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var m map[string]any
		if err := cbor.Unmarshal(data, &m); err != nil {
			t.Fatalf("cbor.Unmarshal: %v", err)
		}
		if _, ok := m["len"]; ok {
			t.Errorf("len encoded although absent: %v", m)
		}
		if _, ok := m["off"]; !ok {
			t.Errorf("off missing: %v", m)
		}
	})

	t.Run("json", func(t *testing.T) {
		data, err := NewCodec(FormatJSON).Marshal(req)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if strings.Contains(string(data), `"len"`) {
			t.Errorf("len encoded although absent: %s", data)
		}
	})
}

func TestCodecNilDataEncodesEmpty(t *testing.T) {
	data, err := NewCodec(FormatCBOR).Marshal(&ImageWriteRequest{Off: 0})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := cbor.Unmarshal(data, &m); err != nil {
		t.Fatalf("cbor.Unmarshal: %v", err)
	}
	if b, ok := m["data"].([]byte); !ok || len(b) != 0 {
		t.Errorf("data = %#v, want empty byte string", m["data"])
	}
}

func TestCodecIgnoresUnknownFields(t *testing.T) {
	body := map[string]any{"r": "hello", "future_field": 42, "nested": map[string]any{"x": 1}}

	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			var data []byte
			var err error
			if f == FormatJSON {
				data, err = json.Marshal(body)
			} else {
				data, err = cbor.Marshal(body)
			}
			if err != nil {
				t.Fatalf("marshal fixture: %v", err)
			}

			var out EchoResponse
			if err := NewCodec(f).Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if out.Data != "hello" {
				t.Errorf("Data = %q, want hello", out.Data)
			}
		})
	}
}

func TestCodecRequired(t *testing.T) {
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			c := NewCodec(f)

			full, _ := c.Marshal(&CoreReadResponse{Off: 0, Data: []byte{1}})
			if err := c.Required(full, (&CoreReadResponse{}).RequiredFields()); err != nil {
				t.Errorf("Required(full) = %v, want nil", err)
			}

			partial, _ := c.Marshal(map[string]any{"off": 0})
			err := c.Required(partial, (&CoreReadResponse{}).RequiredFields())
			if err == nil || !strings.Contains(err.Error(), "data") {
				t.Errorf("Required(partial) = %v, want missing data", err)
			}
		})
	}
}

func TestStatusResult(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		wantCode  ResultCode
		wantGroup Group
	}{
		{name: "absent", status: Status{}, wantCode: RCOK},
		{name: "legacy rc", status: StatusOf(RCNoEntry), wantCode: RCNoEntry},
		{name: "v2 group error", status: Status{Err: &GroupError{Group: GroupFS, RC: 2}}, wantCode: 2, wantGroup: GroupFS},
		{name: "explicit ok", status: StatusOf(RCOK), wantCode: RCOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, group := tt.status.Result()
			if code != tt.wantCode || group != tt.wantGroup {
				t.Errorf("Result() = %v, %v, want %v, %v", code, group, tt.wantCode, tt.wantGroup)
			}
		})
	}
}

func TestCodecStatusRoundTrip(t *testing.T) {
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			c := NewCodec(f)
			data, err := c.Marshal(StatusOf(RCNoEntry))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var out CoreReadResponse
			if err := c.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if rc, _ := out.Result(); rc != RCNoEntry {
				t.Errorf("Result() = %v, want %v", rc, RCNoEntry)
			}
		})
	}
}

func TestCodecEmptyBody(t *testing.T) {
	for _, f := range formats {
		var out ResetResponse
		if err := NewCodec(f).Unmarshal(nil, &out); err != nil {
			t.Errorf("%v: Unmarshal(nil) = %v", f, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "cbor", want: FormatCBOR},
		{in: "JSON", want: FormatJSON},
		{in: "", want: FormatCBOR},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEncodeMessage(t *testing.T) {
	c := NewCodec(FormatCBOR)
	frame, err := EncodeMessage(c, Header{Op: OpWrite, Group: GroupOS, Command: CmdEcho}, &EchoRequest{Data: "x"})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	h, body, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	var req EchoRequest
	if err := c.Unmarshal(body, &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if h.Key() != (&EchoRequest{}).Key() || req.Data != "x" {
		t.Errorf("got %v %+v", h.Key(), req)
	}
}
