package image

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotImage is returned for data without the MCUboot header magic.
var ErrNotImage = errors.New("not an mcuboot image")

// ParseFile parses an MCUboot image from the given file path.
//
// Example:
//
//	img, err := image.ParseFile("zephyr.signed.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Version: %s\n", img.Header.Version)
func ParseFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader parses an MCUboot image from any io.Reader.
func ParseReader(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return Parse(data)
}

// Parse parses an MCUboot image. The returned image references data.
func Parse(data []byte) (*Image, error) {
	hdr, err := parseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	end := int(hdr.HeaderSize) + int(hdr.ImageSize)
	if end > len(data) {
		return nil, fmt.Errorf("image truncated: header declares %d bytes, got %d", end, len(data))
	}

	img := &Image{
		Header:  hdr,
		Payload: data[hdr.HeaderSize:end],
		raw:     data,
	}

	off := end
	if hdr.ProtectedTLVSize > 0 {
		tlvs, n, err := parseTLVArea(data[off:], TLVProtectedInfoMagic, true)
		if err != nil {
			return nil, fmt.Errorf("protected tlv area at 0x%X: %w", off, err)
		}
		if n != int(hdr.ProtectedTLVSize) {
			return nil, fmt.Errorf("protected tlv area size mismatch: header says %d, area is %d",
				hdr.ProtectedTLVSize, n)
		}
		img.TLVs = append(img.TLVs, tlvs...)
		off += n
	}

	tlvs, n, err := parseTLVArea(data[off:], TLVInfoMagic, false)
	if err != nil {
		return nil, fmt.Errorf("tlv area at 0x%X: %w", off, err)
	}
	img.TLVs = append(img.TLVs, tlvs...)
	img.Size = off + n

	return img, nil
}

// parseHeader parses the fixed image header.
//
// Header format (32 bytes, little-endian):
//
//	[MAGIC(4)][LOAD_ADDR(4)][HDR_SIZE(2)][PROT_TLV_SIZE(2)][IMG_SIZE(4)][FLAGS(4)]
//	[MAJOR(1)][MINOR(1)][REVISION(2)][BUILD(4)][PAD(4)]
func parseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes, header is %d", ErrNotImage, len(data), HeaderSize)
	}

	le := binary.LittleEndian
	hdr := Header{
		Magic:            le.Uint32(data[0:4]),
		LoadAddr:         le.Uint32(data[4:8]),
		HeaderSize:       le.Uint16(data[8:10]),
		ProtectedTLVSize: le.Uint16(data[10:12]),
		ImageSize:        le.Uint32(data[12:16]),
		Flags:            le.Uint32(data[16:20]),
		Version: Version{
			Major:    data[20],
			Minor:    data[21],
			Revision: le.Uint16(data[22:24]),
			Build:    le.Uint32(data[24:28]),
		},
	}

	if hdr.Magic != Magic {
		return Header{}, fmt.Errorf("%w: magic 0x%08X", ErrNotImage, hdr.Magic)
	}
	if hdr.HeaderSize < HeaderSize {
		return Header{}, fmt.Errorf("invalid header size: %d (minimum is %d)", hdr.HeaderSize, HeaderSize)
	}

	return hdr, nil
}

// parseTLVArea parses one TLV area and returns its entries and total size.
//
// Area format:
//
//	[MAGIC(2)][TOTAL(2)] then entries [TYPE(1)][PAD(1)][LEN(2)][VALUE(LEN)]
//
// TOTAL includes the 4-byte area header.
func parseTLVArea(data []byte, magic uint16, protected bool) ([]TLV, int, error) {
	if len(data) < TLVInfoSize {
		return nil, 0, fmt.Errorf("missing tlv info: %d bytes left", len(data))
	}

	le := binary.LittleEndian
	if got := le.Uint16(data[0:2]); got != magic {
		return nil, 0, fmt.Errorf("invalid tlv magic: got 0x%04X, expected 0x%04X", got, magic)
	}
	total := int(le.Uint16(data[2:4]))
	if total < TLVInfoSize || total > len(data) {
		return nil, 0, fmt.Errorf("invalid tlv area length %d (%d bytes available)", total, len(data))
	}

	var tlvs []TLV
	for off := TLVInfoSize; off < total; {
		if total-off < TLVEntryHeaderSize {
			return nil, 0, fmt.Errorf("truncated tlv entry at offset %d", off)
		}
		typ := data[off]
		length := int(le.Uint16(data[off+2 : off+4]))
		start := off + TLVEntryHeaderSize
		if start+length > total {
			return nil, 0, fmt.Errorf("tlv 0x%02X length %d exceeds area", typ, length)
		}

		tlvs = append(tlvs, TLV{Type: typ, Protected: protected, Value: data[start : start+length]})
		off = start + length
	}

	return tlvs, total, nil
}

// Verify recomputes the image hash and compares it with the SHA-256 TLV.
func (img *Image) Verify() error {
	want, ok := img.SHA256()
	if !ok {
		return errors.New("image has no sha256 tlv")
	}

	covered := int(img.Header.HeaderSize) + int(img.Header.ImageSize) + int(img.Header.ProtectedTLVSize)
	sum := sha256.Sum256(img.raw[:covered])
	if !bytes.Equal(sum[:], want) {
		return fmt.Errorf("hash mismatch: image has %X, computed %X", want, sum[:])
	}
	return nil
}

// Hash returns the identifying hash of an upload: the SHA-256 TLV of an
// MCUboot image, otherwise the SHA-256 of data.
func Hash(data []byte) []byte {
	if img, err := Parse(data); err == nil {
		if h, ok := img.SHA256(); ok {
			return append([]byte(nil), h...)
		}
	}
	sum := sha256.Sum256(data)
	return sum[:]
}
