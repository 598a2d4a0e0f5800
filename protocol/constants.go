package protocol

import "strconv"

// Header layout constants.
const (
	// HeaderSize is the size of the SMP envelope that prefixes every message:
	// OP(1) + FLAGS(1) + LEN(2) + GROUP(2) + SEQ(1) + CMD(1)
	HeaderSize = 8

	// MaxBodySize is the largest body the 16-bit length field can describe.
	MaxBodySize = 0xFFFF
)

// Protocol versions carried in bits 4..3 of the first header byte.
const (
	// VersionLegacy is the original SMP framing (rc-only error responses)
	VersionLegacy uint8 = 0

	// Version2 adds group-scoped error responses ({"err": {"group", "rc"}})
	Version2 uint8 = 1
)

// Op is the SMP operation code (bits 2..0 of the first header byte).
type Op uint8

// Operation codes.
const (
	// OpRead requests data from the device
	OpRead Op = 0

	// OpReadResponse answers an OpRead
	OpReadResponse Op = 1

	// OpWrite sends data to the device
	OpWrite Op = 2

	// OpWriteResponse answers an OpWrite
	OpWriteResponse Op = 3
)

// Response returns the response op matching a request op.
// Response ops map to themselves.
func (o Op) Response() Op {
	switch o {
	case OpRead:
		return OpReadResponse
	case OpWrite:
		return OpWriteResponse
	default:
		return o
	}
}

// IsResponse reports whether o is a response op.
func (o Op) IsResponse() bool {
	return o == OpReadResponse || o == OpWriteResponse
}

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpReadResponse:
		return "read-rsp"
	case OpWrite:
		return "write"
	case OpWriteResponse:
		return "write-rsp"
	default:
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
}

// Group is the numeric subsystem id.
type Group uint16

// Management groups, Zephyr numbering.
const (
	GroupOS      Group = 0
	GroupImage   Group = 1
	GroupStat    Group = 2
	GroupConfig  Group = 3
	GroupLog     Group = 4
	GroupCrash   Group = 5
	GroupSplit   Group = 6
	GroupRun     Group = 7
	GroupFS      Group = 8
	GroupShell   Group = 9
	GroupPerUser Group = 64
)

func (g Group) String() string {
	switch g {
	case GroupOS:
		return "os"
	case GroupImage:
		return "image"
	case GroupStat:
		return "stat"
	case GroupConfig:
		return "config"
	case GroupLog:
		return "log"
	case GroupCrash:
		return "crash"
	case GroupSplit:
		return "split"
	case GroupRun:
		return "run"
	case GroupFS:
		return "fs"
	case GroupShell:
		return "shell"
	default:
		return "group(" + strconv.Itoa(int(g)) + ")"
	}
}

// Command is the command id, scoped to a group.
type Command uint8

// OS group commands.
const (
	// CmdEcho echoes a string back
	CmdEcho Command = 0

	// CmdConsoleEcho toggles console echo
	CmdConsoleEcho Command = 1

	// CmdTaskStats reports per-task statistics
	CmdTaskStats Command = 2

	// CmdMemPoolStats reports memory pool statistics
	CmdMemPoolStats Command = 3

	// CmdDateTime reads or writes the device clock
	CmdDateTime Command = 4

	// CmdReset reboots the device
	CmdReset Command = 5

	// CmdParams reports the SMP buffer parameters
	CmdParams Command = 6
)

// Image group commands.
const (
	// CmdImageState reads (list) or writes (test/confirm) image state
	CmdImageState Command = 0

	// CmdImageUpload uploads an image chunk
	CmdImageUpload Command = 1

	// CmdImageFile is reserved
	CmdImageFile Command = 2

	// CmdCoreList reports whether a core dump is present
	CmdCoreList Command = 3

	// CmdCoreLoad reads (download) or writes (erase) the core dump
	CmdCoreLoad Command = 4

	// CmdImageErase erases an image slot
	CmdImageErase Command = 5
)

// File system group commands.
const (
	// CmdFile reads or writes a file chunk
	CmdFile Command = 0
)

// Key identifies one request/response pair on the wire.
type Key struct {
	Op      Op
	Group   Group
	Command Command
}

func (k Key) String() string {
	return k.Op.String() + " " + k.Group.String() + "/" + strconv.Itoa(int(k.Command))
}
