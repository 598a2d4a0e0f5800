// Package mcumgr is the client facade for SMP device management.
//
// A Client wraps a transport with one method per command. It owns no
// protocol logic: framing, sequence matching and decoding live in the
// dispatch package and chunked transfers in the transfer package.
//
// # Quick Start
//
//	conn, err := transport.Open(ctx, "serial:/dev/ttyACM0,baud=115200")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	client := mcumgr.New(conn)
//
//	reply, err := client.Echo(ctx, "hello")
//	core, err := client.DownloadCore(ctx, 4)
//
// # Transfers
//
// DownloadCore, DownloadFile, UploadImage and UploadFile take a capacity,
// the number of chunk requests kept in flight. Capacity only affects speed;
// the bytes transferred are the same for every capacity.
//
//	err := client.UploadImage(ctx, img, 4,
//	    mcumgr.WithTransferOptions(transfer.WithProgress(func(p transfer.Progress) {
//	        fmt.Printf("%.1f%%\n", p.Percentage)
//	    })),
//	)
//
// # Error Handling
//
// Every method returns a *protocol.Error on failure:
//
//	if rc, ok := protocol.CodeOf(err); ok && rc == protocol.RCNoEntry {
//	    fmt.Println("no core dump on device")
//	}
package mcumgr
