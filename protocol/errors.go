package protocol

import (
	"errors"
	"fmt"
)

// ResultCode is the device-reported status carried in the "rc" field of a
// response. An absent rc means OK.
type ResultCode int

// Result codes shared by all groups.
const (
	// RCOK indicates the command succeeded
	RCOK ResultCode = 0

	// RCUnknown indicates an unspecified failure
	RCUnknown ResultCode = 1

	// RCNoMemory indicates the device ran out of memory
	RCNoMemory ResultCode = 2

	// RCInvalidValue indicates a malformed or out-of-range argument
	RCInvalidValue ResultCode = 3

	// RCTimeout indicates a device-side timeout
	RCTimeout ResultCode = 4

	// RCNoEntry indicates the requested resource does not exist
	RCNoEntry ResultCode = 5

	// RCBadState indicates the device is in the wrong state for the command
	RCBadState ResultCode = 6

	// RCMsgSize indicates the response would not fit the device buffer
	RCMsgSize ResultCode = 7

	// RCNotSupported indicates the command is not implemented
	RCNotSupported ResultCode = 8

	// RCCorrupt indicates corrupted data on the device
	RCCorrupt ResultCode = 9

	// RCBusy indicates the device is busy with another operation
	RCBusy ResultCode = 10

	// RCPerUser is the first code available to application groups
	RCPerUser ResultCode = 256
)

// String returns a human-readable name for a result code.
func (c ResultCode) String() string {
	switch c {
	case RCOK:
		return "ok"
	case RCUnknown:
		return "unknown error"
	case RCNoMemory:
		return "out of memory"
	case RCInvalidValue:
		return "invalid value"
	case RCTimeout:
		return "timeout"
	case RCNoEntry:
		return "no such entry"
	case RCBadState:
		return "bad state"
	case RCMsgSize:
		return "message too large"
	case RCNotSupported:
		return "not supported"
	case RCCorrupt:
		return "corrupt"
	case RCBusy:
		return "busy"
	default:
		if c >= RCPerUser {
			return fmt.Sprintf("user error %d", int(c))
		}
		return fmt.Sprintf("rc=%d", int(c))
	}
}

// Kind classifies where an error originated.
type Kind int

const (
	// KindTransport means the transport failed to deliver a request or
	// response (timeout, disconnect, oversized frame)
	KindTransport Kind = iota + 1

	// KindDecode means a frame or body was malformed or incomplete
	KindDecode

	// KindProtocol means the device answered with a non-OK result code
	KindProtocol

	// KindConsistency means a response violated a transfer invariant
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindProtocol:
		return "protocol"
	case KindConsistency:
		return "consistency"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error type returned by every operation in this module.
// Transport failures, malformed frames, device result codes and transfer
// invariant violations all surface as an *Error so callers can handle them
// uniformly.
type Error struct {
	// Kind is the error class
	Kind Kind

	// Operation is the command or transfer that failed
	Operation string

	// Code is the device result code (KindProtocol only)
	Code ResultCode

	// Group is the group that reported Code, when the device sent an SMP v2
	// group error
	Group Group

	// Message is an optional detail
	Message string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	op := e.Operation
	if op == "" {
		op = "request"
	}

	switch e.Kind {
	case KindProtocol:
		if e.Message != "" {
			return fmt.Sprintf("%s failed: %s (0x%02X): %s", op, e.Code, int(e.Code), e.Message)
		}
		return fmt.Sprintf("%s failed: %s (0x%02X)", op, e.Code, int(e.Code))
	default:
		msg := fmt.Sprintf("%s failed: %s error", op, e.Kind)
		if e.Message != "" {
			msg += ": " + e.Message
		}
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsProtocolError returns true if err is a device-reported failure.
func IsProtocolError(err error) bool {
	return IsKind(err, KindProtocol)
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// CodeOf returns the device result code carried by err.
// The second result is false when err is not a device-reported failure.
func CodeOf(err error) (ResultCode, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindProtocol {
		return e.Code, true
	}
	return 0, false
}

// NewTransportError wraps a transport failure.
func NewTransportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Operation: op, Err: err}
}

// NewDecodeError wraps a malformed frame or body.
func NewDecodeError(op string, err error) *Error {
	return &Error{Kind: KindDecode, Operation: op, Err: err}
}

// NewConsistencyError reports a violated transfer invariant.
func NewConsistencyError(op string, format string, args ...any) *Error {
	return &Error{Kind: KindConsistency, Operation: op, Message: fmt.Sprintf(format, args...)}
}
