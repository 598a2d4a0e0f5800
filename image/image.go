package image

import "fmt"

// Format constants.
const (
	// Magic identifies an MCUboot image header
	Magic uint32 = 0x96f3b83d

	// HeaderSize is the size of the fixed header fields
	HeaderSize = 32

	// TLVInfoMagic starts the unprotected TLV area
	TLVInfoMagic uint16 = 0x6907

	// TLVProtectedInfoMagic starts the protected TLV area
	TLVProtectedInfoMagic uint16 = 0x6908

	// TLVInfoSize is the size of a TLV area header
	TLVInfoSize = 4

	// TLVEntryHeaderSize is the size of a TLV entry header
	TLVEntryHeaderSize = 4
)

// TLV types.
const (
	TLVKeyHash    uint8 = 0x01
	TLVPublicKey  uint8 = 0x02
	TLVSHA256     uint8 = 0x10
	TLVRSA2048    uint8 = 0x20
	TLVECDSA256   uint8 = 0x22
	TLVRSA3072    uint8 = 0x23
	TLVED25519    uint8 = 0x24
	TLVEncRSA2048 uint8 = 0x30
	TLVEncKW      uint8 = 0x31
	TLVEncEC256   uint8 = 0x32
	TLVDependency uint8 = 0x40
	TLVSecCounter uint8 = 0x50
	TLVBootRecord uint8 = 0x60
)

// Header flags.
const (
	// FlagPIC marks position independent code
	FlagPIC uint32 = 0x00000001

	// FlagEncryptedAES128 marks an encrypted payload
	FlagEncryptedAES128 uint32 = 0x00000004

	// FlagNonBootable marks a secondary image that is never booted
	FlagNonBootable uint32 = 0x00000010

	// FlagRAMLoad marks an image copied to RAM before boot
	FlagRAMLoad uint32 = 0x00000020
)

// Version is the semantic version stored in the image header.
type Version struct {
	Major    uint8
	Minor    uint8
	Revision uint16
	Build    uint32
}

// String formats the version the way devices report it in image state
// responses: "major.minor.revision", with ".build" appended when non-zero.
func (v Version) String() string {
	if v.Build != 0 {
		return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Revision, v.Build)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Revision)
}

// Header is the fixed MCUboot image header.
type Header struct {
	// Magic is always Magic for a valid image
	Magic uint32

	// LoadAddr is the RAM load address (FlagRAMLoad images only)
	LoadAddr uint32

	// HeaderSize is the size of the header area, padding included
	HeaderSize uint16

	// ProtectedTLVSize is the size of the protected TLV area (0 if absent)
	ProtectedTLVSize uint16

	// ImageSize is the payload size, header excluded
	ImageSize uint32

	// Flags is a bitmask of Flag* values
	Flags uint32

	// Version is the image version
	Version Version
}

// TLV is one trailer entry.
type TLV struct {
	// Type is one of the TLV* constants
	Type uint8

	// Protected is true for entries covered by the image hash
	Protected bool

	// Value is the entry payload
	Value []byte
}

// Image is a parsed MCUboot image.
type Image struct {
	// Header is the fixed header
	Header Header

	// Payload is the application binary
	Payload []byte

	// TLVs lists the protected entries followed by the unprotected ones
	TLVs []TLV

	// Size is the total image length, trailer included
	Size int

	raw []byte
}

// Find returns the first TLV of the given type.
func (img *Image) Find(typ uint8) (TLV, bool) {
	for _, t := range img.TLVs {
		if t.Type == typ {
			return t, true
		}
	}
	return TLV{}, false
}

// SHA256 returns the value of the SHA-256 TLV.
func (img *Image) SHA256() ([]byte, bool) {
	t, ok := img.Find(TLVSHA256)
	if !ok {
		return nil, false
	}
	return t.Value, true
}

// Bootable reports whether the image is not flagged non-bootable.
func (img *Image) Bootable() bool {
	return img.Header.Flags&FlagNonBootable == 0
}
