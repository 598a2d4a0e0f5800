package protocol

import "fmt"

type pair struct {
	name     string
	request  func() Request
	response func() Response
}

// commands is the fixed protocol surface, keyed by request op.
var commands = map[Key]pair{
	{OpWrite, GroupOS, CmdEcho}: {
		"echo",
		func() Request { return &EchoRequest{} },
		func() Response { return &EchoResponse{} },
	},
	{OpRead, GroupOS, CmdTaskStats}: {
		"task stats",
		func() Request { return &TaskStatsRequest{} },
		func() Response { return &TaskStatsResponse{} },
	},
	{OpWrite, GroupOS, CmdReset}: {
		"reset",
		func() Request { return &ResetRequest{} },
		func() Response { return &ResetResponse{} },
	},
	{OpRead, GroupOS, CmdParams}: {
		"params",
		func() Request { return &ParamsRequest{} },
		func() Response { return &ParamsResponse{} },
	},
	{OpRead, GroupImage, CmdImageState}: {
		"image list",
		func() Request { return &ImageStateReadRequest{} },
		func() Response { return &ImageStateResponse{} },
	},
	{OpWrite, GroupImage, CmdImageState}: {
		"image state",
		func() Request { return &ImageStateWriteRequest{} },
		func() Response { return &ImageStateResponse{} },
	},
	{OpWrite, GroupImage, CmdImageUpload}: {
		"image upload",
		func() Request { return &ImageWriteRequest{} },
		func() Response { return &ImageWriteResponse{} },
	},
	{OpRead, GroupImage, CmdCoreList}: {
		"core list",
		func() Request { return &CoreListRequest{} },
		func() Response { return &CoreListResponse{} },
	},
	{OpRead, GroupImage, CmdCoreLoad}: {
		"core download",
		func() Request { return &CoreReadRequest{} },
		func() Response { return &CoreReadResponse{} },
	},
	{OpWrite, GroupImage, CmdCoreLoad}: {
		"core erase",
		func() Request { return &CoreEraseRequest{} },
		func() Response { return &CoreEraseResponse{} },
	},
	{OpWrite, GroupImage, CmdImageErase}: {
		"image erase",
		func() Request { return &ImageEraseRequest{} },
		func() Response { return &ImageEraseResponse{} },
	},
	{OpRead, GroupFS, CmdFile}: {
		"file download",
		func() Request { return &FileReadRequest{} },
		func() Response { return &FileReadResponse{} },
	},
	{OpWrite, GroupFS, CmdFile}: {
		"file upload",
		func() Request { return &FileWriteRequest{} },
		func() Response { return &FileWriteResponse{} },
	},
}

// NewRequest returns an empty request body for the given request key.
func NewRequest(k Key) (Request, error) {
	p, ok := commands[k]
	if !ok {
		return nil, fmt.Errorf("unsupported command %s", k)
	}
	return p.request(), nil
}

// NewResponse returns an empty response body for the given key. The key may
// name either the request op or its response op.
func NewResponse(k Key) (Response, error) {
	p, ok := commands[requestKey(k)]
	if !ok {
		return nil, fmt.Errorf("unsupported command %s", k)
	}
	return p.response(), nil
}

// Name returns a short human-readable name for the command, used as the
// Operation of errors. Either op of the pair may be given.
func Name(k Key) string {
	if p, ok := commands[requestKey(k)]; ok {
		return p.name
	}
	return k.String()
}

// Supported reports whether k (request op) is part of the protocol surface.
func Supported(k Key) bool {
	_, ok := commands[k]
	return ok
}

func requestKey(k Key) Key {
	switch k.Op {
	case OpReadResponse:
		k.Op = OpRead
	case OpWriteResponse:
		k.Op = OpWrite
	}
	return k
}
