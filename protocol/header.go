package protocol

import (
	"encoding/binary"
	"fmt"
)

// Header is the SMP envelope that prefixes every message.
type Header struct {
	// Version is the SMP protocol version (VersionLegacy or Version2)
	Version uint8

	// Op is the operation code
	Op Op

	// Flags is reserved and normally zero
	Flags uint8

	// Length is the body length in bytes
	Length uint16

	// Group is the management group id
	Group Group

	// Sequence pairs a response with its request
	Sequence uint8

	// Command is the command id within the group
	Command Command
}

// Key returns the (op, group, command) triple of the header.
func (h Header) Key() Key {
	return Key{Op: h.Op, Group: h.Group, Command: h.Command}
}

// Marshal returns the 8-byte wire form of the header.
//
// Header structure:
//
//	[RES(3)|VER(2)|OP(3)][FLAGS][LEN_H][LEN_L][GROUP_H][GROUP_L][SEQ][CMD]
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	h.put(buf)
	return buf
}

func (h Header) put(buf []byte) {
	buf[0] = (h.Version&0x03)<<3 | uint8(h.Op)&0x07
	buf[1] = h.Flags
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	binary.BigEndian.PutUint16(buf[4:6], uint16(h.Group))
	buf[6] = h.Sequence
	buf[7] = uint8(h.Command)
}

// ParseHeader decodes the first HeaderSize bytes of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: got %d bytes, minimum is %d", len(data), HeaderSize)
	}

	h := Header{
		Version:  (data[0] >> 3) & 0x03,
		Op:       Op(data[0] & 0x07),
		Flags:    data[1],
		Length:   binary.BigEndian.Uint16(data[2:4]),
		Group:    Group(binary.BigEndian.Uint16(data[4:6])),
		Sequence: data[6],
		Command:  Command(data[7]),
	}

	if h.Version != VersionLegacy && h.Version != Version2 {
		return Header{}, fmt.Errorf("invalid version: %d", h.Version)
	}
	if h.Op > OpWriteResponse {
		return Header{}, fmt.Errorf("invalid op: %d", h.Op)
	}

	return h, nil
}

// EncodeFrame builds a complete frame from a header and an encoded body.
// The header length is taken from the body.
//
// Frame structure:
//
//	[HEADER(8)][BODY...]
func EncodeFrame(h Header, body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("body length %d exceeds maximum %d bytes", len(body), MaxBodySize)
	}

	h.Length = uint16(len(body))
	frame := make([]byte, HeaderSize, HeaderSize+len(body))
	h.put(frame)
	frame = append(frame, body...)

	return frame, nil
}

// DecodeFrame validates a frame and splits it into header and body.
// The returned body aliases frame.
func DecodeFrame(frame []byte) (Header, []byte, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return Header{}, nil, err
	}

	body := frame[HeaderSize:]
	if int(h.Length) != len(body) {
		return Header{}, nil, fmt.Errorf("frame length mismatch: header says %d body bytes, got %d",
			h.Length, len(body))
	}

	return h, body, nil
}
