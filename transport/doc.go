// Package transport moves SMP frames between the client and a device.
//
// The client only needs the Transport interface: send one encoded request
// frame, get back the matching response frame. Concrete transports:
//
//   - Stream runs over any io.ReadWriter with a Framer (RawFramer for
//     header-delimited frames, ConsoleFramer for SMP over a text console)
//   - UDP sends one frame per datagram
//   - OpenSerial configures a tty and returns a console Stream
//
// # Response Routing
//
// Several requests may be outstanding at once. A reader goroutine matches
// every incoming frame to its waiter by the sequence number in header byte
// 6, so responses may arrive in any order:
//
//	conn, err := transport.Open(ctx, "udp:192.0.2.1:1337")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	rsp, err := conn.Send(ctx, frame)
//
// Transports never retry. A timeout or disconnect surfaces as an error from
// Send.
package transport
