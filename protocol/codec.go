package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Format selects the body encoding of a connection.
type Format int

const (
	// FormatCBOR encodes bodies as CBOR maps (the format devices speak)
	FormatCBOR Format = iota

	// FormatJSON encodes bodies as JSON objects, byte strings as base64
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatCBOR:
		return "cbor"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat parses "cbor" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "cbor", "":
		return FormatCBOR, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown format %q (want cbor or json)", s)
	}
}

// Codec encodes and decodes message bodies. Implementations are stateless
// and safe for concurrent use.
//
// Decoding is lenient: unknown fields are ignored. Encoding omits absent
// optional fields.
type Codec interface {
	Format() Format
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// Required fails if any of names is not a top-level key of data.
	Required(data []byte, names []string) error
}

// NewCodec returns the codec for f.
func NewCodec(f Format) Codec {
	if f == FormatJSON {
		return jsonCodec{}
	}
	return cborCodec{}
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error

	// Smallest-integer encoding keeps chunk overhead predictable; nil
	// byte slices encode as empty strings so "data" is never null.
	cborEnc, err = cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsEmpty,
	}.EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}

	// Firmware adds fields over time; unknown keys are skipped.
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

func (cborCodec) Format() Format { return FormatCBOR }

func (cborCodec) Marshal(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return cborDec.Unmarshal(data, v)
}

func (cborCodec) Required(data []byte, names []string) error {
	fields := map[string]cbor.RawMessage{}
	if len(data) > 0 {
		if err := cborDec.Unmarshal(data, &fields); err != nil {
			return err
		}
	}
	return checkRequired(names, func(name string) bool {
		_, ok := fields[name]
		return ok
	})
}

type jsonCodec struct{}

func (jsonCodec) Format() Format { return FormatJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Required(data []byte, names []string) error {
	fields := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
	}
	return checkRequired(names, func(name string) bool {
		_, ok := fields[name]
		return ok
	})
}

func checkRequired(names []string, present func(string) bool) error {
	var missing []string
	for _, name := range names {
		if !present(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// EncodeMessage frames a request or response body under h.
func EncodeMessage(c Codec, h Header, body any) ([]byte, error) {
	data, err := c.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", h.Key(), err)
	}
	return EncodeFrame(h, data)
}
