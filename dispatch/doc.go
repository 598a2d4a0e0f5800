// Package dispatch sends SMP requests over a transport and decodes their
// responses.
//
// A Dispatcher owns the sequence number space of one connection. Every Send
// allocates a free sequence number, frames the request with the connection
// codec, hands the frame to the transport and validates the response:
//
//	d := dispatch.New(conn, dispatch.WithFormat(protocol.FormatCBOR))
//	rsp, err := dispatch.Do[*protocol.EchoResponse](ctx, d, &protocol.EchoRequest{Data: "hi"})
//
// # Sequence Numbers
//
// The header carries an 8-bit sequence number, so at most 256 requests can be
// outstanding on one connection. A number is reused only after the response
// to its previous request has been consumed; Send blocks while all 256 are in
// flight.
//
// # Pipelining
//
// Start sends a request and returns a Call whose Wait reads the response.
// Over a transport.Pipeliner the frame is written before Start returns, so a
// caller that starts requests from one goroutine controls their wire order.
//
// # Errors
//
// All failures are *protocol.Error:
//   - KindTransport: the transport failed, or the frame exceeds its MTU
//   - KindDecode: malformed frame, mismatched header or missing field
//   - KindProtocol: the device answered with a non-zero result code
//
// Requests are never retried.
package dispatch
