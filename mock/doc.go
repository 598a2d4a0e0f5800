// Package mock provides an in-process SMP device for tests and examples.
//
// A Server decodes request frames, dispatches them to handlers registered by
// (op, group, command) and encodes the responses. Each Server has its own
// handler registry and fixtures:
//
//	srv := mock.NewServer(protocol.FormatCBOR, 512)
//	srv.Core().SetData(dump)
//	srv.Files().Put("/lfs/log.txt", contents)
//
// Transport wraps a Server as a transport.Transport. It enforces the MTU in
// both directions, records the largest frames seen and can delay or fail
// individual requests:
//
//	t := mock.NewTransport(srv)
//	t.SetLatency(func(i int) time.Duration { return time.Duration(i%3) * time.Millisecond })
//	t.FailRequest(5, io.ErrUnexpectedEOF)
package mock
