package mcumgr

import (
	"context"
	"crypto/sha256"
	"sort"

	"github.com/moffa90/go-mcumgr/dispatch"
	"github.com/moffa90/go-mcumgr/log"
	"github.com/moffa90/go-mcumgr/metrics"
	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transfer"
	"github.com/moffa90/go-mcumgr/transport"
)

// Client issues SMP commands to one device.
//
// Client is safe for concurrent use; concurrent calls share the
// connection's sequence space.
type Client struct {
	dispatcher *dispatch.Dispatcher
	config     Config
}

// New creates a Client over t with the given options.
//
// Example:
//
//	client := mcumgr.New(conn,
//	    mcumgr.WithFormat(protocol.FormatCBOR),
//	    mcumgr.WithLogger(logger),
//	)
func New(t transport.Transport, opts ...Option) *Client {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Logger = log.OrNop(cfg.Logger)

	return &Client{
		dispatcher: dispatch.New(t,
			dispatch.WithFormat(cfg.Format),
			dispatch.WithVersion(cfg.Version),
			dispatch.WithLogger(cfg.Logger),
			dispatch.WithMetrics(cfg.Metrics),
		),
		config: cfg,
	}
}

// Dispatcher returns the dispatcher the client sends through.
func (c *Client) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// Metrics returns the collector given with WithMetrics, or nil.
func (c *Client) Metrics() *metrics.Collector {
	return c.config.Metrics
}

// MTU returns the largest frame the connection carries.
func (c *Client) MTU() int {
	return c.dispatcher.MTU()
}

// Echo sends s and returns the device's reply.
func (c *Client) Echo(ctx context.Context, s string) (string, error) {
	rsp, err := dispatch.Do[*protocol.EchoResponse](ctx, c.dispatcher, &protocol.EchoRequest{Data: s})
	if err != nil {
		return "", err
	}
	return rsp.Data, nil
}

// Task is the statistics of one device task.
type Task struct {
	Name string
	protocol.TaskStat
}

// TaskStats returns per-task statistics sorted by task name.
func (c *Client) TaskStats(ctx context.Context) ([]Task, error) {
	rsp, err := dispatch.Do[*protocol.TaskStatsResponse](ctx, c.dispatcher, &protocol.TaskStatsRequest{})
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(rsp.Tasks))
	for name, stat := range rsp.Tasks {
		tasks = append(tasks, Task{Name: name, TaskStat: stat})
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Name < tasks[j].Name
	})
	return tasks, nil
}

// Reset reboots the device. With force the device resets even when busy.
// The device may stop answering before the next request.
func (c *Client) Reset(ctx context.Context, force bool) error {
	_, err := dispatch.Do[*protocol.ResetResponse](ctx, c.dispatcher, &protocol.ResetRequest{Force: force})
	if err != nil {
		return err
	}
	c.config.Logger.Info("device reset requested", "force", force)
	return nil
}

// Params is the device's SMP buffer configuration.
type Params struct {
	BufSize  uint32
	BufCount uint32
}

// Params returns the device SMP buffer size and count.
func (c *Client) Params(ctx context.Context) (Params, error) {
	rsp, err := dispatch.Do[*protocol.ParamsResponse](ctx, c.dispatcher, &protocol.ParamsRequest{})
	if err != nil {
		return Params{}, err
	}
	return Params{BufSize: rsp.BufSize, BufCount: rsp.BufCount}, nil
}

// ImageState lists the image slots.
func (c *Client) ImageState(ctx context.Context) ([]protocol.ImageSlot, error) {
	rsp, err := dispatch.Do[*protocol.ImageStateResponse](ctx, c.dispatcher, &protocol.ImageStateReadRequest{})
	if err != nil {
		return nil, err
	}
	return rsp.Images, nil
}

// TestImage marks the image with hash for a test boot on the next reset.
// It returns the updated slot list.
func (c *Client) TestImage(ctx context.Context, hash []byte) ([]protocol.ImageSlot, error) {
	return c.setImageState(ctx, &protocol.ImageStateWriteRequest{Hash: hash})
}

// ConfirmImage makes the image with hash permanent. A nil hash confirms the
// running image.
func (c *Client) ConfirmImage(ctx context.Context, hash []byte) ([]protocol.ImageSlot, error) {
	return c.setImageState(ctx, &protocol.ImageStateWriteRequest{Hash: hash, Confirm: true})
}

func (c *Client) setImageState(ctx context.Context, req *protocol.ImageStateWriteRequest) ([]protocol.ImageSlot, error) {
	rsp, err := dispatch.Do[*protocol.ImageStateResponse](ctx, c.dispatcher, req)
	if err != nil {
		return nil, err
	}
	return rsp.Images, nil
}

// EraseImage erases image slot slot. Devices refuse to erase the running
// image.
func (c *Client) EraseImage(ctx context.Context, slot uint32) error {
	_, err := dispatch.Do[*protocol.ImageEraseResponse](ctx, c.dispatcher, &protocol.ImageEraseRequest{Slot: &slot})
	return err
}

// CoreList reports whether the device holds a core dump.
func (c *Client) CoreList(ctx context.Context) (bool, error) {
	_, err := dispatch.Do[*protocol.CoreListResponse](ctx, c.dispatcher, &protocol.CoreListRequest{})
	if rc, ok := protocol.CodeOf(err); ok && rc == protocol.RCNoEntry {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EraseCore erases the device core dump.
func (c *Client) EraseCore(ctx context.Context) error {
	_, err := dispatch.Do[*protocol.CoreEraseResponse](ctx, c.dispatcher, &protocol.CoreEraseRequest{})
	return err
}

// DownloadCore reads the core dump with at most capacity requests in
// flight. A missing core dump fails with protocol.RCNoEntry.
func (c *Client) DownloadCore(ctx context.Context, capacity int, opts ...transfer.Option) ([]byte, error) {
	return transfer.Download(ctx, c.dispatcher, transfer.CoreSource{}, capacity, c.transferOptions(opts)...)
}

// DownloadFile reads the file at path with at most capacity requests in
// flight. A missing file fails with protocol.RCNoEntry.
func (c *Client) DownloadFile(ctx context.Context, path string, capacity int, opts ...transfer.Option) ([]byte, error) {
	return transfer.Download(ctx, c.dispatcher, transfer.FileSource{Path: path}, capacity, c.transferOptions(opts)...)
}

// UploadFile writes data to the file at path with at most capacity requests
// in flight.
func (c *Client) UploadFile(ctx context.Context, path string, data []byte, capacity int, opts ...transfer.Option) error {
	return transfer.Upload(ctx, c.dispatcher, transfer.FileSink{Path: path}, data, capacity, c.transferOptions(opts)...)
}

// UploadImage writes a firmware image to the secondary slot with at most
// capacity requests in flight. The SHA-256 of data is sent with the first
// chunk unless WithoutSHA is given.
func (c *Client) UploadImage(ctx context.Context, data []byte, capacity int, opts ...UploadOption) error {
	var u imageUpload
	for _, opt := range opts {
		opt(&u)
	}
	if !u.noSHA {
		sum := sha256.Sum256(data)
		u.sink.SHA = sum[:]
	}

	return transfer.Upload(ctx, c.dispatcher, u.sink, data, capacity, c.transferOptions(u.transfer)...)
}

// transferOptions returns the client defaults followed by opts.
func (c *Client) transferOptions(opts []transfer.Option) []transfer.Option {
	base := []transfer.Option{
		transfer.WithLogger(c.config.Logger),
		transfer.WithMetrics(c.config.Metrics),
	}
	if c.config.ProgressCallback != nil {
		base = append(base, transfer.WithProgress(c.config.ProgressCallback))
	}
	if c.config.ChunkSize > 0 {
		base = append(base, transfer.WithChunkSize(c.config.ChunkSize))
	}
	return append(base, opts...)
}
