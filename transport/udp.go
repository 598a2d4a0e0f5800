package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/moffa90/go-mcumgr/protocol"
)

// UDP is a Transport sending one SMP frame per datagram.
type UDP struct {
	conn   net.Conn
	config Config
	router *router

	closeOnce sync.Once
	done      chan struct{}
}

// DialUDP connects to a device's SMP UDP port (1337 on Zephyr).
//
// Example:
//
//	conn, err := transport.DialUDP(ctx, "192.0.2.1:1337", transport.WithTimeout(2*time.Second))
func DialUDP(ctx context.Context, addr string, opts ...Option) (*UDP, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %s: %w", addr, err)
	}
	return newUDP(conn, opts), nil
}

func newUDP(conn net.Conn, opts []Option) *UDP {
	u := &UDP{
		conn:   conn,
		config: applyOptions(DefaultUDPMTU, opts),
		router: newRouter(),
		done:   make(chan struct{}),
	}
	u.config.Logger.Debug("udp transport open", "remote", conn.RemoteAddr().String(), "mtu", u.config.MTU)
	go u.readLoop()
	return u
}

// MTU returns the largest frame Send accepts.
func (u *UDP) MTU() int {
	return u.config.MTU
}

// Send writes frame as one datagram and waits for the response with the
// same sequence number.
func (u *UDP) Send(ctx context.Context, frame []byte) ([]byte, error) {
	if len(frame) > u.config.MTU {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), u.config.MTU)
	}
	return u.router.roundTrip(ctx, frame, u.config.Timeout, u.write)
}

// Start writes frame as one datagram and returns without waiting for the
// response.
func (u *UDP) Start(ctx context.Context, frame []byte) (Wait, error) {
	if len(frame) > u.config.MTU {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), u.config.MTU)
	}
	return u.router.start(ctx, frame, u.config.Timeout, u.write)
}

func (u *UDP) write(b []byte) error {
	_, err := u.conn.Write(b)
	return err
}

// Close fails all waiting requests with ErrClosed and closes the socket.
func (u *UDP) Close() error {
	var err error
	u.closeOnce.Do(func() {
		u.router.fail(ErrClosed)
		err = u.conn.Close()
	})
	return err
}

func (u *UDP) readLoop() {
	defer close(u.done)

	buf := make([]byte, protocol.HeaderSize+protocol.MaxBodySize)
	for {
		n, err := u.conn.Read(buf)
		if err != nil {
			if u.router.closed() == nil {
				u.config.Logger.Error("udp read failed", "error", err)
			}
			u.router.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])
		if !u.router.deliver(frame) {
			u.config.Logger.Debug("dropping unmatched datagram", "length", n)
		}
	}
}
