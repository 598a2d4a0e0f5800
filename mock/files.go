package mock

import (
	"sync"

	"github.com/moffa90/go-mcumgr/protocol"
)

// Files simulates the device file system.
type Files struct {
	server *Server

	mu      sync.Mutex
	files   map[string][]byte
	uploads map[string]*upload
}

func newFiles(s *Server) *Files {
	return &Files{
		server:  s,
		files:   make(map[string][]byte),
		uploads: make(map[string]*upload),
	}
}

func (f *Files) register(s *Server) {
	s.Register((&protocol.FileReadRequest{}).Key(), HandlerFunc(f.read))
	s.Register((&protocol.FileWriteRequest{}).Key(), HandlerFunc(f.write))
}

// Put stores a file.
func (f *Files) Put(name string, data []byte) {
	f.mu.Lock()
	f.files[name] = data
	f.mu.Unlock()
}

// Get returns a stored file.
func (f *Files) Get(name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	return data, ok
}

// Remove deletes a file.
func (f *Files) Remove(name string) {
	f.mu.Lock()
	delete(f.files, name)
	f.mu.Unlock()
}

func (f *Files) read(_ protocol.Header, r protocol.Request) any {
	req := r.(*protocol.FileReadRequest)

	data, ok := f.Get(req.Name)
	if !ok {
		return Fail(protocol.RCNoEntry)
	}
	return readChunk(f.server, data, req.Off, func(off uint64, d []byte, total *uint64) any {
		return &protocol.FileReadResponse{Off: off, Data: d, Len: total}
	})
}

func (f *Files) write(_ protocol.Header, r protocol.Request) any {
	req := r.(*protocol.FileWriteRequest)
	if req.Name == "" {
		return Fail(protocol.RCInvalidValue)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Off == 0 {
		if req.Len == nil {
			return Fail(protocol.RCInvalidValue)
		}
		f.uploads[req.Name] = &upload{data: make([]byte, 0, *req.Len), total: *req.Len}
	}

	u, ok := f.uploads[req.Name]
	if !ok {
		return Fail(protocol.RCInvalidValue)
	}
	if req.Off != uint64(len(u.data)) {
		return &protocol.FileWriteResponse{Off: protocol.Uint64(uint64(len(u.data)))}
	}
	if uint64(len(u.data)+len(req.Data)) > u.total {
		return Fail(protocol.RCInvalidValue)
	}
	u.data = append(u.data, req.Data...)

	if uint64(len(u.data)) == u.total {
		f.files[req.Name] = u.data
		delete(f.uploads, req.Name)
	}
	return &protocol.FileWriteResponse{Off: protocol.Uint64(uint64(len(u.data)))}
}
