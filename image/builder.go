package image

import (
	"crypto/sha256"
	"encoding/binary"
)

// BuildOptions describes an image created by Build.
type BuildOptions struct {
	// Version is written to the header
	Version Version

	// LoadAddr is written to the header
	LoadAddr uint32

	// Flags is written to the header
	Flags uint32

	// HeaderSize pads the header area (default HeaderSize)
	HeaderSize uint16
}

// Build wraps payload in an unsigned MCUboot image with a SHA-256 TLV, the
// layout `imgtool create` produces without a signing key.
func Build(payload []byte, opts BuildOptions) []byte {
	hdrSize := opts.HeaderSize
	if hdrSize < HeaderSize {
		hdrSize = HeaderSize
	}

	out := make([]byte, int(hdrSize), int(hdrSize)+len(payload)+TLVInfoSize+TLVEntryHeaderSize+sha256.Size)

	le := binary.LittleEndian
	le.PutUint32(out[0:4], Magic)
	le.PutUint32(out[4:8], opts.LoadAddr)
	le.PutUint16(out[8:10], hdrSize)
	le.PutUint16(out[10:12], 0)
	le.PutUint32(out[12:16], uint32(len(payload)))
	le.PutUint32(out[16:20], opts.Flags)
	out[20] = opts.Version.Major
	out[21] = opts.Version.Minor
	le.PutUint16(out[22:24], opts.Version.Revision)
	le.PutUint32(out[24:28], opts.Version.Build)

	out = append(out, payload...)
	sum := sha256.Sum256(out)

	var tlv [TLVInfoSize + TLVEntryHeaderSize]byte
	le.PutUint16(tlv[0:2], TLVInfoMagic)
	le.PutUint16(tlv[2:4], uint16(TLVInfoSize+TLVEntryHeaderSize+sha256.Size))
	tlv[4] = TLVSHA256
	le.PutUint16(tlv[6:8], sha256.Size)

	out = append(out, tlv[:]...)
	return append(out, sum[:]...)
}
