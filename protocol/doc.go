// Package protocol implements the SMP (simple management protocol) wire format
// used by mcumgr-capable devices.
//
// This package provides the message envelope, the closed set of
// request/response bodies, and the two interchangeable body encodings.
//
// # Protocol Overview
//
// Every message is an 8-byte header followed by an encoded body:
//
//	[RES|VER|OP][FLAGS][LEN_H][LEN_L][GROUP_H][GROUP_L][SEQ][CMD][BODY...]
//
// Where:
//   - OP = read, read response, write or write response
//   - LEN = 16-bit body length (big-endian)
//   - GROUP = management group (os, image, fs, ...)
//   - SEQ = 8-bit sequence number pairing a response with its request
//   - CMD = command id within the group
//
// # Bodies
//
// Bodies are maps encoded either as CBOR or JSON, chosen once per connection:
//
//	codec := protocol.NewCodec(protocol.FormatCBOR)
//	frame, err := protocol.EncodeMessage(codec, header, &protocol.EchoRequest{Data: "hi"})
//
// Decoding ignores unknown fields. Optional fields that are absent are not
// encoded. Each (op, group, command) has exactly one request and one
// response type; NewRequest and NewResponse look them up by Key.
//
// # Chunking
//
// Large payloads travel as offset-addressed chunks. MaxData computes how many
// data bytes fit in one frame for a given MTU:
//
//	n, err := protocol.MaxData(codec, mtu, func(d []byte) any {
//	    return &protocol.FileWriteRequest{Name: name, Off: off, Data: d}
//	})
//
// # Error Handling
//
// Every failure is reported as an *Error with a Kind (transport, decode,
// protocol, consistency). Device result codes are preserved verbatim:
//
//	if rc, ok := protocol.CodeOf(err); ok && rc == protocol.RCNoEntry {
//	    // resource does not exist
//	}
//
// # Reference
//
// For complete protocol details, see the Zephyr "SMP Protocol Specification"
// in the device management documentation.
package protocol
