package mock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/moffa90/go-mcumgr/protocol"
)

// ErrUnavailable is returned while the simulated device is rebooting.
var ErrUnavailable = errors.New("device unavailable")

// Handler answers one decoded request. It returns the response body to
// encode, or the result of Fail.
type Handler interface {
	Handle(h protocol.Header, req protocol.Request) any
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(h protocol.Header, req protocol.Request) any

// Handle calls f.
func (f HandlerFunc) Handle(h protocol.Header, req protocol.Request) any {
	return f(h, req)
}

// Failure is a handler result that makes the server answer with a non-zero
// result code.
type Failure struct {
	RC protocol.ResultCode
}

// Fail returns a handler result carrying rc.
func Fail(rc protocol.ResultCode) any {
	return Failure{RC: rc}
}

// Interceptor may replace the body a handler produced before it is encoded.
type Interceptor func(req protocol.Request, rsp any) any

type fault struct {
	after int
	rc    protocol.ResultCode
}

// Server is a simulated SMP device.
//
// Server is safe for concurrent use.
type Server struct {
	codec protocol.Codec
	mtu   int

	mu           sync.Mutex
	handlers     map[protocol.Key]Handler
	interceptors map[protocol.Key]Interceptor
	faults       map[protocol.Key][]fault
	counts       map[protocol.Key]int
	rebooting    int

	os     *OS
	images *Images
	core   *Core
	files  *Files
}

// NewServer creates a device speaking format whose SMP buffer holds mtu
// bytes. All supported commands have default handlers.
func NewServer(format protocol.Format, mtu int) *Server {
	s := &Server{
		codec:        protocol.NewCodec(format),
		mtu:          mtu,
		handlers:     make(map[protocol.Key]Handler),
		interceptors: make(map[protocol.Key]Interceptor),
		faults:       make(map[protocol.Key][]fault),
		counts:       make(map[protocol.Key]int),
	}

	s.os = newOS(s)
	s.images = newImages(s)
	s.core = newCore(s)
	s.files = newFiles(s)

	s.os.register(s)
	s.images.register(s)
	s.core.register(s)
	s.files.register(s)
	return s
}

// MTU returns the device buffer size.
func (s *Server) MTU() int {
	return s.mtu
}

// Codec returns the codec the device speaks.
func (s *Server) Codec() protocol.Codec {
	return s.codec
}

// Register installs h for k, replacing any existing handler.
func (s *Server) Register(k protocol.Key, h Handler) {
	s.mu.Lock()
	s.handlers[k] = h
	s.mu.Unlock()
}

// Handler returns the handler registered for k.
func (s *Server) Handler(k protocol.Key) Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[k]
}

// Intercept installs fn to rewrite every response for k. A nil fn removes
// the interceptor.
func (s *Server) Intercept(k protocol.Key, fn Interceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		delete(s.interceptors, k)
		return
	}
	s.interceptors[k] = fn
}

// InjectFault makes request number after+1 for k (counting from the time of
// the call) fail once with rc.
func (s *Server) InjectFault(k protocol.Key, after int, rc protocol.ResultCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[k] = append(s.faults[k], fault{after: s.counts[k] + after, rc: rc})
}

// Requests returns how many requests for k the server has handled.
func (s *Server) Requests(k protocol.Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[k]
}

// Reboot makes the next n frames go unanswered with ErrUnavailable.
func (s *Server) Reboot(n int) {
	s.mu.Lock()
	s.rebooting = n
	s.mu.Unlock()
}

// OS returns the OS group fixture.
func (s *Server) OS() *OS { return s.os }

// Images returns the image slot fixture.
func (s *Server) Images() *Images { return s.images }

// Core returns the core dump fixture.
func (s *Server) Core() *Core { return s.core }

// Files returns the file system fixture.
func (s *Server) Files() *Files { return s.files }

// Handle processes one request frame and returns the response frame.
func (s *Server) Handle(frame []byte) ([]byte, error) {
	h, body, err := protocol.DecodeFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}
	if h.Op.IsResponse() {
		return nil, fmt.Errorf("mock: unexpected response op %s", h.Op)
	}
	key := h.Key()

	s.mu.Lock()
	if s.rebooting > 0 {
		s.rebooting--
		s.mu.Unlock()
		return nil, ErrUnavailable
	}
	handler := s.handlers[key]
	intercept := s.interceptors[key]
	n := s.counts[key]
	s.counts[key] = n + 1
	injected, faulted := s.takeFault(key, n)
	s.mu.Unlock()

	var rsp any
	switch {
	case handler == nil:
		rsp = Fail(protocol.RCNotSupported)
	case faulted:
		rsp = Fail(injected)
	default:
		req, err := protocol.NewRequest(key)
		if err != nil {
			rsp = Fail(protocol.RCNotSupported)
			break
		}
		if err := s.codec.Unmarshal(body, req); err != nil {
			rsp = Fail(protocol.RCInvalidValue)
			break
		}
		rsp = handler.Handle(h, req)
		if intercept != nil {
			rsp = intercept(req, rsp)
		}
	}

	if f, ok := rsp.(Failure); ok {
		rsp = status(h, f.RC)
	}

	rspBody, err := s.codec.Marshal(rsp)
	if err != nil {
		return nil, fmt.Errorf("mock: encode response: %w", err)
	}

	h.Op = h.Op.Response()
	return protocol.EncodeFrame(h, rspBody)
}

// takeFault consumes the fault scheduled for request n of k. Caller holds mu.
func (s *Server) takeFault(k protocol.Key, n int) (protocol.ResultCode, bool) {
	faults := s.faults[k]
	for i, f := range faults {
		if f.after == n {
			s.faults[k] = append(faults[:i:i], faults[i+1:]...)
			return f.rc, true
		}
	}
	return 0, false
}

// status encodes rc the way the request's protocol version expects.
func status(h protocol.Header, rc protocol.ResultCode) protocol.Status {
	if h.Version == protocol.Version2 {
		return protocol.Status{Err: &protocol.GroupError{Group: h.Group, RC: rc}}
	}
	return protocol.StatusOf(rc)
}

// chunk returns the slice of data starting at off that fits one response
// frame, sized the way a device fills its buffer.
func (s *Server) chunk(data []byte, off uint64, shape func(d []byte) any) ([]byte, error) {
	n, err := protocol.MaxData(s.codec, s.mtu, shape)
	if err != nil {
		return nil, err
	}
	end := off + uint64(n)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return data[off:end], nil
}
