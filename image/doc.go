// Package image parses MCUboot application images.
//
// An MCUboot image is the file uploaded to a device's secondary slot. It
// consists of a fixed header, the application payload and a TLV trailer
// carrying the image hash and, optionally, signatures.
//
// # Image Layout
//
//	[HEADER(hdr_size)][PAYLOAD(img_size)][PROTECTED TLVs][TLVs]
//
// Header (32 bytes, little-endian):
//
//	[MAGIC(4)][LOAD_ADDR(4)][HDR_SIZE(2)][PROT_TLV_SIZE(2)][IMG_SIZE(4)][FLAGS(4)][VERSION(8)][PAD(4)]
//
// Where VERSION is [MAJOR(1)][MINOR(1)][REVISION(2)][BUILD(4)].
//
// Each TLV area starts with [MAGIC(2)][TOTAL(2)] followed by entries:
//
//	[TYPE(1)][PAD(1)][LEN(2)][VALUE(LEN)]
//
// # Usage
//
//	img, err := image.ParseFile("zephyr.signed.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("version %s, %d bytes\n", img.Header.Version, img.Header.ImageSize)
//
//	hash, ok := img.SHA256()
//
// The SHA-256 TLV identifies the image in image state commands (test,
// confirm). Hash falls back to the SHA-256 of the whole file for data that
// is not an MCUboot image.
package image
