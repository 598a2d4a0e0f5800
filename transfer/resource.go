package transfer

import (
	"context"

	"github.com/moffa90/go-mcumgr/dispatch"
	"github.com/moffa90/go-mcumgr/protocol"
)

// Sender is the part of the dispatcher a transfer uses.
type Sender interface {
	Send(ctx context.Context, req protocol.Request) (protocol.Response, error)
	Codec() protocol.Codec
	MTU() int
}

// starter is implemented by *dispatch.Dispatcher. It lets an upload put
// chunks on the wire in offset order.
type starter interface {
	Start(ctx context.Context, req protocol.Request) (*dispatch.Call, error)
}

// Source is a resource read in chunks.
type Source interface {
	// Name is the operation name used in errors and logs
	Name() string

	// Request builds the read request for offset off.
	Request(off uint64) protocol.Request

	// Response builds the response a device sends for data at off. It
	// is encoded only to measure chunk overhead.
	Response(off uint64, data []byte) any
}

// Sink is a resource written in chunks.
type Sink interface {
	// Name is the operation name used in errors and logs
	Name() string

	// Request builds the write request for data at off. The first chunk
	// (off 0) announces the total length.
	Request(off uint64, data []byte, total uint64) protocol.Request
}

// CoreSource reads the device core dump.
type CoreSource struct{}

func (CoreSource) Name() string { return "core download" }

func (CoreSource) Request(off uint64) protocol.Request {
	return &protocol.CoreReadRequest{Off: off}
}

func (CoreSource) Response(off uint64, data []byte) any {
	return &protocol.CoreReadResponse{Off: off, Data: data}
}

// FileSource reads a file from the device file system.
type FileSource struct {
	Path string
}

func (FileSource) Name() string { return "file download" }

func (s FileSource) Request(off uint64) protocol.Request {
	return &protocol.FileReadRequest{Name: s.Path, Off: off}
}

func (s FileSource) Response(off uint64, data []byte) any {
	return &protocol.FileReadResponse{Off: off, Data: data}
}

// ImageSink writes a firmware image to the secondary slot.
type ImageSink struct {
	// Image is the image number on multi-image devices (0 = default)
	Image uint32

	// SHA is the image hash sent with the first chunk (optional)
	SHA []byte

	// Upgrade asks the device to reject images that are not newer
	Upgrade bool
}

func (ImageSink) Name() string { return "image upload" }

func (s ImageSink) Request(off uint64, data []byte, total uint64) protocol.Request {
	req := &protocol.ImageWriteRequest{Off: off, Data: data}
	if off == 0 {
		req.Len = protocol.Uint64(total)
		req.SHA = s.SHA
		req.Upgrade = s.Upgrade
		if s.Image > 0 {
			image := s.Image
			req.Image = &image
		}
	}
	return req
}

// FileSink writes a file to the device file system.
type FileSink struct {
	Path string
}

func (FileSink) Name() string { return "file upload" }

func (s FileSink) Request(off uint64, data []byte, total uint64) protocol.Request {
	req := &protocol.FileWriteRequest{Name: s.Path, Off: off, Data: data}
	if off == 0 {
		req.Len = protocol.Uint64(total)
	}
	return req
}
