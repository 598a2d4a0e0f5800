package mock

import (
	"sync"

	"github.com/moffa90/go-mcumgr/protocol"
)

// DefaultBufCount is the SMP buffer count reported by the params command.
const DefaultBufCount = 4

// OS simulates the OS management group.
type OS struct {
	server *Server

	mu          sync.Mutex
	tasks       map[string]protocol.TaskStat
	resets      int
	rebootDelay int
	onReset     func()
}

func newOS(s *Server) *OS {
	return &OS{
		server: s,
		tasks: map[string]protocol.TaskStat{
			"idle": {Priority: 15, TaskID: 0, State: 1, StackUsed: 60, StackSize: 320},
			"main": {Priority: 0, TaskID: 1, State: 2, StackUsed: 812, StackSize: 2048, ContextSwitches: 42},
		},
	}
}

func (o *OS) register(s *Server) {
	s.Register((&protocol.EchoRequest{}).Key(), HandlerFunc(o.echo))
	s.Register((&protocol.TaskStatsRequest{}).Key(), HandlerFunc(o.taskStats))
	s.Register((&protocol.ResetRequest{}).Key(), HandlerFunc(o.reset))
	s.Register((&protocol.ParamsRequest{}).Key(), HandlerFunc(o.params))
}

// SetTasks replaces the task table.
func (o *OS) SetTasks(tasks map[string]protocol.TaskStat) {
	o.mu.Lock()
	o.tasks = tasks
	o.mu.Unlock()
}

// SetRebootDelay makes the device ignore n frames after each reset.
func (o *OS) SetRebootDelay(n int) {
	o.mu.Lock()
	o.rebootDelay = n
	o.mu.Unlock()
}

// OnReset registers fn to run on every reset request.
func (o *OS) OnReset(fn func()) {
	o.mu.Lock()
	o.onReset = fn
	o.mu.Unlock()
}

// Resets returns how many reset requests were handled.
func (o *OS) Resets() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resets
}

func (o *OS) echo(_ protocol.Header, req protocol.Request) any {
	return &protocol.EchoResponse{Data: req.(*protocol.EchoRequest).Data}
}

func (o *OS) taskStats(protocol.Header, protocol.Request) any {
	o.mu.Lock()
	defer o.mu.Unlock()

	tasks := make(map[string]protocol.TaskStat, len(o.tasks))
	for name, t := range o.tasks {
		tasks[name] = t
	}
	return &protocol.TaskStatsResponse{Tasks: tasks}
}

func (o *OS) reset(protocol.Header, protocol.Request) any {
	o.mu.Lock()
	o.resets++
	delay := o.rebootDelay
	fn := o.onReset
	o.mu.Unlock()

	o.server.images.boot()
	if fn != nil {
		fn()
	}
	if delay > 0 {
		o.server.Reboot(delay)
	}
	return &protocol.ResetResponse{}
}

func (o *OS) params(protocol.Header, protocol.Request) any {
	return &protocol.ParamsResponse{BufSize: uint32(o.server.mtu), BufCount: DefaultBufCount}
}
