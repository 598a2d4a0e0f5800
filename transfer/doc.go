// Package transfer moves large payloads to and from a device in
// offset-addressed chunks.
//
// Download reads a core dump or a file; Upload writes an image or a file.
// Both keep up to capacity chunk requests in flight at once, size every
// chunk so its frame fits the transport MTU, and reassemble by offset so
// responses may complete in any order:
//
//	data, err := transfer.Download(ctx, d, transfer.CoreSource{}, 4)
//
//	err = transfer.Upload(ctx, d, transfer.FileSink{Path: "/lfs/cfg"}, cfg, 4,
//	    transfer.WithProgress(func(p transfer.Progress) {
//	        fmt.Printf("%.1f%%\n", p.Percentage)
//	    }),
//	)
//
// # Download
//
// Offset 0 is requested first and alone; its response carries the total
// length. The rest of the range is then claimed chunk by chunk. A response
// shorter than its claim returns the remainder to the pending set.
//
// # Upload
//
// Offset 0 is sent first and alone with the total length (and the image
// hash for images). Later chunks are written in offset order. Each response
// carries the offset the device expects next, and the answer to the most
// recently sent chunk wins, even when it moves the upload back. When no
// later chunk is already headed for that offset, the send cursor moves to
// it, so chunks the device rejected are sent again.
//
// # Errors
//
// The first failed chunk aborts the whole transfer: in-flight requests are
// cancelled and partial data is discarded. Responses that break the
// transfer invariants (unrequested offset, changed length, empty chunk) are
// reported as protocol.KindConsistency errors.
package transfer
