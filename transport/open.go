package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultBaud is used for serial connections without a baud setting.
const DefaultBaud = 115200

// Endpoint is a parsed connection string.
type Endpoint struct {
	// Scheme is "udp", "tcp" or "serial"
	Scheme string

	// Address is host:port for network schemes, the device path for serial
	Address string

	// Baud is the serial line rate
	Baud int
}

// ParseEndpoint parses a connection string:
//
//	udp:192.0.2.1:1337
//	tcp:localhost:1337
//	serial:/dev/ttyACM0
//	serial:/dev/ttyACM0,baud=921600
func ParseEndpoint(s string) (Endpoint, error) {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return Endpoint{}, fmt.Errorf("invalid connection %q (want scheme:address)", s)
	}

	e := Endpoint{Scheme: strings.ToLower(scheme)}
	switch e.Scheme {
	case "udp", "tcp":
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return Endpoint{}, fmt.Errorf("invalid %s address %q: %w", e.Scheme, rest, err)
		}
		e.Address = rest
	case "serial":
		e.Baud = DefaultBaud
		parts := strings.Split(rest, ",")
		e.Address = parts[0]
		for _, p := range parts[1:] {
			key, value, _ := strings.Cut(p, "=")
			if key != "baud" {
				return Endpoint{}, fmt.Errorf("unknown serial setting %q", key)
			}
			baud, err := strconv.Atoi(value)
			if err != nil {
				return Endpoint{}, fmt.Errorf("invalid baud %q: %w", value, err)
			}
			e.Baud = baud
		}
	default:
		return Endpoint{}, fmt.Errorf("unknown transport %q (want udp, tcp or serial)", scheme)
	}

	return e, nil
}

// Open connects to the endpoint named by a connection string.
func Open(ctx context.Context, conn string, opts ...Option) (Conn, error) {
	e, err := ParseEndpoint(conn)
	if err != nil {
		return nil, err
	}

	switch e.Scheme {
	case "udp":
		return DialUDP(ctx, e.Address, opts...)
	case "tcp":
		var d net.Dialer
		c, err := d.DialContext(ctx, "tcp", e.Address)
		if err != nil {
			return nil, fmt.Errorf("dial tcp %s: %w", e.Address, err)
		}
		return NewStream(c, RawFramer{}, opts...), nil
	default:
		return OpenSerial(e.Address, e.Baud, opts...)
	}
}
