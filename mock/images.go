package mock

import (
	"bytes"
	"crypto/sha256"
	"sync"

	"github.com/moffa90/go-mcumgr/image"
	"github.com/moffa90/go-mcumgr/protocol"
)

// Slot is one image slot on the simulated device.
type Slot struct {
	Data      []byte
	Hash      []byte
	Version   string
	Bootable  bool
	Pending   bool
	Confirmed bool
	Active    bool
	Permanent bool
}

type upload struct {
	data  []byte
	total uint64
	sha   []byte
}

// Images simulates the image management group with a primary and a
// secondary slot and MCUboot swap semantics on reset.
type Images struct {
	mu     sync.Mutex
	slots  [2]*Slot
	upload *upload
}

func newImages(*Server) *Images {
	factory := []byte("factory image")
	sum := sha256.Sum256(factory)
	return &Images{
		slots: [2]*Slot{{
			Data:      factory,
			Hash:      sum[:],
			Version:   "1.0.0",
			Bootable:  true,
			Confirmed: true,
			Active:    true,
		}},
	}
}

func (m *Images) register(s *Server) {
	s.Register((&protocol.ImageStateReadRequest{}).Key(), HandlerFunc(m.state))
	s.Register((&protocol.ImageStateWriteRequest{}).Key(), HandlerFunc(m.setState))
	s.Register((&protocol.ImageWriteRequest{}).Key(), HandlerFunc(m.write))
	s.Register((&protocol.ImageEraseRequest{}).Key(), HandlerFunc(m.erase))
}

// Slot returns a copy of slot i, or nil when it is empty.
func (m *Images) Slot(i int) *Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slots[i] == nil {
		return nil
	}
	s := *m.slots[i]
	return &s
}

// SetSlot replaces slot i. A nil slot empties it.
func (m *Images) SetSlot(i int, s *Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		m.slots[i] = nil
		return
	}
	c := *s
	m.slots[i] = &c
}

func (m *Images) state(protocol.Header, protocol.Request) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.response()
}

// response lists the occupied slots. Caller holds mu.
func (m *Images) response() *protocol.ImageStateResponse {
	rsp := &protocol.ImageStateResponse{Images: []protocol.ImageSlot{}}
	for i, s := range m.slots {
		if s == nil {
			continue
		}
		rsp.Images = append(rsp.Images, protocol.ImageSlot{
			Slot:      uint32(i),
			Version:   s.Version,
			Hash:      s.Hash,
			Bootable:  s.Bootable,
			Pending:   s.Pending,
			Confirmed: s.Confirmed,
			Active:    s.Active,
			Permanent: s.Permanent,
		})
	}
	return rsp
}

func (m *Images) setState(_ protocol.Header, r protocol.Request) any {
	req := r.(*protocol.ImageStateWriteRequest)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(req.Hash) == 0 {
		if !req.Confirm {
			return Fail(protocol.RCInvalidValue)
		}
		m.slots[0].Confirmed = true
		return m.response()
	}

	for i, s := range m.slots {
		if s == nil || !bytes.Equal(s.Hash, req.Hash) {
			continue
		}
		if i == 0 {
			if req.Confirm {
				s.Confirmed = true
			}
			return m.response()
		}
		s.Pending = true
		s.Permanent = req.Confirm
		return m.response()
	}
	return Fail(protocol.RCNoEntry)
}

func (m *Images) write(_ protocol.Header, r protocol.Request) any {
	req := r.(*protocol.ImageWriteRequest)

	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Off == 0 {
		if req.Len == nil {
			return Fail(protocol.RCInvalidValue)
		}
		if s := m.slots[1]; s != nil && s.Pending {
			return Fail(protocol.RCBadState)
		}
		m.upload = &upload{data: make([]byte, 0, *req.Len), total: *req.Len, sha: req.SHA}
		m.slots[1] = nil
	}

	u := m.upload
	if u == nil {
		return Fail(protocol.RCInvalidValue)
	}
	if req.Off != uint64(len(u.data)) {
		return &protocol.ImageWriteResponse{Off: protocol.Uint64(uint64(len(u.data)))}
	}
	if uint64(len(u.data)+len(req.Data)) > u.total {
		return Fail(protocol.RCInvalidValue)
	}
	u.data = append(u.data, req.Data...)

	rsp := &protocol.ImageWriteResponse{Off: protocol.Uint64(uint64(len(u.data)))}
	if uint64(len(u.data)) == u.total {
		m.finish(u, rsp)
	}
	return rsp
}

// finish installs a completed upload in the secondary slot. Caller holds mu.
func (m *Images) finish(u *upload, rsp *protocol.ImageWriteResponse) {
	slot := &Slot{Data: u.data, Hash: image.Hash(u.data), Version: "0.0.0", Bootable: true}
	if img, err := image.Parse(u.data); err == nil {
		slot.Version = img.Header.Version.String()
	}
	m.slots[1] = slot
	m.upload = nil

	if len(u.sha) > 0 {
		sum := sha256.Sum256(u.data)
		match := bytes.Equal(sum[:], u.sha)
		rsp.Match = &match
	}
}

func (m *Images) erase(_ protocol.Header, r protocol.Request) any {
	req := r.(*protocol.ImageEraseRequest)

	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Slot != nil && *req.Slot == 0 {
		return Fail(protocol.RCBadState)
	}
	if s := m.slots[1]; s != nil && s.Pending {
		return Fail(protocol.RCBadState)
	}
	m.slots[1] = nil
	m.upload = nil
	return &protocol.ImageEraseResponse{}
}

// boot applies the swap MCUboot performs on reset: a pending secondary
// image becomes active, and an unconfirmed active image is reverted.
func (m *Images) boot() {
	m.mu.Lock()
	defer m.mu.Unlock()

	primary, secondary := m.slots[0], m.slots[1]
	switch {
	case secondary != nil && secondary.Pending:
		secondary.Pending = false
		secondary.Active = true
		secondary.Confirmed = secondary.Permanent
		secondary.Permanent = false
		primary.Active = false
		m.slots[0], m.slots[1] = secondary, primary
	case secondary != nil && !primary.Confirmed:
		primary.Active = false
		secondary.Active = true
		secondary.Confirmed = true
		m.slots[0], m.slots[1] = secondary, primary
	}
}
