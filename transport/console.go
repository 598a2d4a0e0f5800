package transport

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"

	"github.com/moffa90/go-mcumgr/protocol"
)

// Console framing constants.
const (
	// ConsoleLineMax is the longest console line, markers and newline
	// included
	ConsoleLineMax = 127

	consoleMarkerSize = 2
)

var (
	consoleStart        = []byte{0x06, 0x09}
	consoleContinuation = []byte{0x04, 0x14}

	errConsoleCRC    = errors.New("console packet crc mismatch")
	errConsoleLength = errors.New("console packet length mismatch")
)

// ConsoleFramer carries SMP frames over a text console shared with log
// output.
//
// Each frame becomes a packet
//
//	[LEN_H][LEN_L][FRAME...][CRC_H][CRC_L]
//
// where LEN counts the frame and the CRC, and CRC is CRC16 over the frame.
// The packet is base64 encoded and split into newline-terminated lines of at
// most ConsoleLineMax bytes. The first line starts with 0x06 0x09, each
// continuation line with 0x04 0x14. Lines without a marker are console
// output and are skipped.
type ConsoleFramer struct{}

// WriteFrame encodes frame as console lines and writes them in one call.
func (ConsoleFramer) WriteFrame(w io.Writer, frame []byte) error {
	_, err := w.Write(EncodeConsole(frame))
	return err
}

// EncodeConsole returns the console lines carrying frame.
func EncodeConsole(frame []byte) []byte {
	packet := make([]byte, 2+len(frame)+2)
	binary.BigEndian.PutUint16(packet[0:2], uint16(len(frame)+2))
	copy(packet[2:], frame)
	binary.BigEndian.PutUint16(packet[2+len(frame):], protocol.CRC16(frame))

	text := base64.StdEncoding.EncodeToString(packet)
	perLine := ConsoleLineMax - consoleMarkerSize - 1

	var buf bytes.Buffer
	for i := 0; i < len(text); i += perLine {
		if i == 0 {
			buf.Write(consoleStart)
		} else {
			buf.Write(consoleContinuation)
		}
		end := i + perLine
		if end > len(text) {
			end = len(text)
		}
		buf.WriteString(text[i:end])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ReadFrame returns the next intact frame. Console output, truncated
// packets and packets with a bad CRC are skipped.
func (ConsoleFramer) ReadFrame(r *bufio.Reader) ([]byte, error) {
	var text []byte
	started := false

	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		line = bytes.TrimRight(line, "\r\n")

		switch {
		case bytes.HasPrefix(line, consoleStart):
			text = append(text[:0], line[consoleMarkerSize:]...)
			started = true
		case started && bytes.HasPrefix(line, consoleContinuation):
			text = append(text, line[consoleMarkerSize:]...)
		default:
			continue
		}

		frame, complete, err := decodeConsolePacket(text)
		if err != nil {
			started = false
			continue
		}
		if complete {
			return frame, nil
		}
	}
}

// decodeConsolePacket decodes the base64 text gathered so far. It reports
// complete=false while more continuation lines are needed.
func decodeConsolePacket(text []byte) ([]byte, bool, error) {
	if len(text)%4 != 0 {
		return nil, false, nil
	}

	packet := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(packet, text)
	if err != nil {
		return nil, false, err
	}
	packet = packet[:n]

	if len(packet) < 2 {
		return nil, false, nil
	}
	length := int(binary.BigEndian.Uint16(packet[0:2]))
	switch {
	case len(packet)-2 < length:
		return nil, false, nil
	case len(packet)-2 > length || length < 2:
		return nil, false, errConsoleLength
	}

	frame := packet[2 : len(packet)-2]
	if binary.BigEndian.Uint16(packet[len(packet)-2:]) != protocol.CRC16(frame) {
		return nil, false, errConsoleCRC
	}
	return frame, true, nil
}
