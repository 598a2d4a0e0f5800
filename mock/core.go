package mock

import (
	"sync"

	"github.com/moffa90/go-mcumgr/protocol"
)

// Core simulates the core dump stored on the device.
type Core struct {
	server *Server

	mu   sync.Mutex
	data []byte
}

func newCore(s *Server) *Core {
	return &Core{server: s}
}

func (c *Core) register(s *Server) {
	s.Register((&protocol.CoreListRequest{}).Key(), HandlerFunc(c.list))
	s.Register((&protocol.CoreReadRequest{}).Key(), HandlerFunc(c.read))
	s.Register((&protocol.CoreEraseRequest{}).Key(), HandlerFunc(c.erase))
}

// SetData stores a core dump. nil means no core dump is present.
func (c *Core) SetData(data []byte) {
	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
}

// Data returns the stored core dump.
func (c *Core) Data() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

func (c *Core) list(protocol.Header, protocol.Request) any {
	if c.Data() == nil {
		return Fail(protocol.RCNoEntry)
	}
	return &protocol.CoreListResponse{}
}

func (c *Core) read(_ protocol.Header, r protocol.Request) any {
	data := c.Data()
	if data == nil {
		return Fail(protocol.RCNoEntry)
	}
	return readChunk(c.server, data, r.(*protocol.CoreReadRequest).Off, func(off uint64, d []byte, total *uint64) any {
		return &protocol.CoreReadResponse{Off: off, Data: d, Len: total}
	})
}

func (c *Core) erase(protocol.Header, protocol.Request) any {
	c.SetData(nil)
	return &protocol.CoreEraseResponse{}
}

// readChunk answers a chunked read of data at off. The total length is only
// sent with the first chunk.
func readChunk(s *Server, data []byte, off uint64, build func(off uint64, d []byte, total *uint64) any) any {
	if off > uint64(len(data)) {
		return Fail(protocol.RCInvalidValue)
	}

	var total *uint64
	if off == 0 {
		total = protocol.Uint64(uint64(len(data)))
	}

	chunk, err := s.chunk(data, off, func(d []byte) any { return build(off, d, total) })
	if err != nil {
		return Fail(protocol.RCMsgSize)
	}
	return build(off, chunk, total)
}
