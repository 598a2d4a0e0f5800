package protocol

// Request is an SMP request body. The set of implementations is closed: one
// type per (op, group, command) the client issues.
type Request interface {
	Key() Key
}

// Response is an SMP response body. Every response embeds Status.
type Response interface {
	Result() (ResultCode, Group)
}

// ReadChunk is a response carrying one offset-addressed slice of a larger
// payload being read from the device.
type ReadChunk interface {
	Response
	ChunkOffset() uint64
	ChunkData() []byte
	// TotalLength reports the payload size; devices send it only on the
	// chunk at offset 0.
	TotalLength() (uint64, bool)
}

// WriteChunk is a response acknowledging one chunk written to the device.
type WriteChunk interface {
	Response
	// NextOffset reports the offset the device expects next, if it said so.
	NextOffset() (uint64, bool)
}

// RequiredFielder is implemented by bodies whose decoding must fail when a
// field is missing. Required fields are only checked on successful responses.
type RequiredFielder interface {
	RequiredFields() []string
}

// GroupError is the SMP v2 error member: {"err": {"group": g, "rc": rc}}.
type GroupError struct {
	Group Group      `json:"group"`
	RC    ResultCode `json:"rc"`
}

// Status carries the optional result code of a response.
// Absent fields mean success.
type Status struct {
	RC  *ResultCode `json:"rc,omitempty"`
	Err *GroupError `json:"err,omitempty"`
}

// Result returns the effective result code and, for SMP v2 group errors,
// the group that raised it.
func (s Status) Result() (ResultCode, Group) {
	if s.Err != nil && s.Err.RC != RCOK {
		return s.Err.RC, s.Err.Group
	}
	if s.RC != nil {
		return *s.RC, 0
	}
	return RCOK, 0
}

// StatusOf returns a Status holding rc, or an empty Status for RCOK.
func StatusOf(rc ResultCode) Status {
	if rc == RCOK {
		return Status{}
	}
	return Status{RC: &rc}
}

// --- OS group ---

// EchoRequest asks the device to echo Data back.
type EchoRequest struct {
	Data string `json:"d"`
}

func (*EchoRequest) Key() Key { return Key{OpWrite, GroupOS, CmdEcho} }

// EchoResponse carries the echoed string.
type EchoResponse struct {
	Status
	Data string `json:"r"`
}

func (*EchoResponse) RequiredFields() []string { return []string{"r"} }

// TaskStatsRequest asks for per-task statistics.
type TaskStatsRequest struct{}

func (*TaskStatsRequest) Key() Key { return Key{OpRead, GroupOS, CmdTaskStats} }

// TaskStat holds the statistics the device reports for one task.
type TaskStat struct {
	Priority        uint32 `json:"prio"`
	TaskID          uint32 `json:"tid"`
	State           uint32 `json:"state"`
	StackUsed       uint32 `json:"stkuse"`
	StackSize       uint32 `json:"stksiz"`
	ContextSwitches uint64 `json:"cswcnt"`
	Runtime         uint64 `json:"runtime"`
	LastCheckin     uint32 `json:"last_checkin"`
	NextCheckin     uint32 `json:"next_checkin"`
}

// TaskStatsResponse maps task names to their statistics.
type TaskStatsResponse struct {
	Status
	Tasks map[string]TaskStat `json:"tasks"`
}

func (*TaskStatsResponse) RequiredFields() []string { return []string{"tasks"} }

// ResetRequest reboots the device.
type ResetRequest struct {
	Force bool `json:"force,omitempty"`
}

func (*ResetRequest) Key() Key { return Key{OpWrite, GroupOS, CmdReset} }

// ResetResponse acknowledges a reset.
type ResetResponse struct {
	Status
}

// ParamsRequest asks for the device SMP buffer parameters.
type ParamsRequest struct{}

func (*ParamsRequest) Key() Key { return Key{OpRead, GroupOS, CmdParams} }

// ParamsResponse reports the device SMP buffer size and count.
type ParamsResponse struct {
	Status
	BufSize  uint32 `json:"buf_size"`
	BufCount uint32 `json:"buf_count"`
}

// --- Image group ---

// ImageStateReadRequest lists the images on the device.
type ImageStateReadRequest struct{}

func (*ImageStateReadRequest) Key() Key { return Key{OpRead, GroupImage, CmdImageState} }

// ImageStateWriteRequest marks an image for test (Confirm=false) or
// confirms it permanently. A nil Hash with Confirm=true confirms the
// running image.
type ImageStateWriteRequest struct {
	Hash    []byte `json:"hash,omitempty"`
	Confirm bool   `json:"confirm"`
}

func (*ImageStateWriteRequest) Key() Key { return Key{OpWrite, GroupImage, CmdImageState} }

// ImageSlot describes one image slot.
type ImageSlot struct {
	Image     *uint32 `json:"image,omitempty"`
	Slot      uint32  `json:"slot"`
	Version   string  `json:"version"`
	Hash      []byte  `json:"hash,omitempty"`
	Bootable  bool    `json:"bootable,omitempty"`
	Pending   bool    `json:"pending,omitempty"`
	Confirmed bool    `json:"confirmed,omitempty"`
	Active    bool    `json:"active,omitempty"`
	Permanent bool    `json:"permanent,omitempty"`
}

// ImageStateResponse answers both image state read and write.
type ImageStateResponse struct {
	Status
	Images      []ImageSlot `json:"images"`
	SplitStatus *int        `json:"splitStatus,omitempty"`
}

// ImageWriteRequest uploads one image chunk. Len and SHA are sent only with
// the chunk at offset 0.
type ImageWriteRequest struct {
	Image   *uint32 `json:"image,omitempty"`
	Len     *uint64 `json:"len,omitempty"`
	Off     uint64  `json:"off"`
	SHA     []byte  `json:"sha,omitempty"`
	Data    []byte  `json:"data"`
	Upgrade bool    `json:"upgrade,omitempty"`
}

func (*ImageWriteRequest) Key() Key { return Key{OpWrite, GroupImage, CmdImageUpload} }

// ImageWriteResponse acknowledges an image chunk.
type ImageWriteResponse struct {
	Status
	Off   *uint64 `json:"off,omitempty"`
	Match *bool   `json:"match,omitempty"`
}

func (r *ImageWriteResponse) NextOffset() (uint64, bool) { return optional(r.Off) }

// CoreListRequest asks whether a core dump is present.
type CoreListRequest struct{}

func (*CoreListRequest) Key() Key { return Key{OpRead, GroupImage, CmdCoreList} }

// CoreListResponse is OK when a core dump is present and RCNoEntry otherwise.
type CoreListResponse struct {
	Status
}

// CoreReadRequest reads the core dump starting at Off.
type CoreReadRequest struct {
	Off uint64 `json:"off"`
}

func (*CoreReadRequest) Key() Key { return Key{OpRead, GroupImage, CmdCoreLoad} }

// CoreReadResponse carries one core dump chunk.
type CoreReadResponse struct {
	Status
	Off  uint64  `json:"off"`
	Data []byte  `json:"data"`
	Len  *uint64 `json:"len,omitempty"`
}

func (*CoreReadResponse) RequiredFields() []string { return []string{"off", "data"} }

func (r *CoreReadResponse) ChunkOffset() uint64         { return r.Off }
func (r *CoreReadResponse) ChunkData() []byte           { return r.Data }
func (r *CoreReadResponse) TotalLength() (uint64, bool) { return optional(r.Len) }

// CoreEraseRequest erases the core dump.
type CoreEraseRequest struct{}

func (*CoreEraseRequest) Key() Key { return Key{OpWrite, GroupImage, CmdCoreLoad} }

// CoreEraseResponse acknowledges a core dump erase.
type CoreEraseResponse struct {
	Status
}

// ImageEraseRequest erases an image slot; nil Slot erases the secondary slot.
type ImageEraseRequest struct {
	Slot *uint32 `json:"slot,omitempty"`
}

func (*ImageEraseRequest) Key() Key { return Key{OpWrite, GroupImage, CmdImageErase} }

// ImageEraseResponse acknowledges an image erase.
type ImageEraseResponse struct {
	Status
}

// --- File system group ---

// FileReadRequest reads the named file starting at Off.
type FileReadRequest struct {
	Name string `json:"name"`
	Off  uint64 `json:"off"`
}

func (*FileReadRequest) Key() Key { return Key{OpRead, GroupFS, CmdFile} }

// FileReadResponse carries one file chunk.
type FileReadResponse struct {
	Status
	Off  uint64  `json:"off"`
	Data []byte  `json:"data"`
	Len  *uint64 `json:"len,omitempty"`
}

func (*FileReadResponse) RequiredFields() []string { return []string{"off", "data"} }

func (r *FileReadResponse) ChunkOffset() uint64         { return r.Off }
func (r *FileReadResponse) ChunkData() []byte           { return r.Data }
func (r *FileReadResponse) TotalLength() (uint64, bool) { return optional(r.Len) }

// FileWriteRequest writes one chunk of the named file. Len is sent only with
// the chunk at offset 0.
type FileWriteRequest struct {
	Name string  `json:"name"`
	Off  uint64  `json:"off"`
	Data []byte  `json:"data"`
	Len  *uint64 `json:"len,omitempty"`
}

func (*FileWriteRequest) Key() Key { return Key{OpWrite, GroupFS, CmdFile} }

// FileWriteResponse acknowledges a file chunk.
type FileWriteResponse struct {
	Status
	Off *uint64 `json:"off,omitempty"`
}

func (r *FileWriteResponse) NextOffset() (uint64, bool) { return optional(r.Off) }

func optional(v *uint64) (uint64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Uint64 returns a pointer to v, for optional length and offset fields.
func Uint64(v uint64) *uint64 {
	return &v
}
