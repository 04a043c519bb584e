// Package fake provides a scriptable controller for tests.
//
// Replies are scripted per command: a fixed reply, or a queue consumed one
// reply per call (the last queued reply repeats once the queue drains).
// Every call is recorded, and an optional hook runs before each reply so
// tests can observe interleaving with yields.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/sws-bridge/internal/controller"
)

// Call records one invocation.
type Call struct {
	Command string
	Bool    bool
}

// Controller is a fake controller.Controller.
type Controller struct {
	mu      sync.Mutex
	replies map[string][]string
	bools   map[string]bool
	delays  map[string]time.Duration
	calls   []Call

	// OnCall runs before each reply is produced, outside the lock.
	OnCall func(Call)
}

// Ensure Controller implements controller.Controller.
var _ controller.Controller = (*Controller)(nil)

// New creates a fake that answers "" to anything unscripted.
func New() *Controller {
	return &Controller{
		replies: make(map[string][]string),
		bools:   make(map[string]bool),
		delays:  make(map[string]time.Duration),
	}
}

// Reply scripts the replies for cmd, in order.
func (f *Controller) Reply(cmd string, replies ...string) *Controller {
	f.mu.Lock()
	f.replies[cmd] = append([]string(nil), replies...)
	f.mu.Unlock()
	return f
}

// ReplyBool scripts the CommandBool answer for cmd.
func (f *Controller) ReplyBool(cmd string, v bool) *Controller {
	f.mu.Lock()
	f.bools[cmd] = v
	f.mu.Unlock()
	return f
}

// Delay makes replies to cmd take d.
func (f *Controller) Delay(cmd string, d time.Duration) *Controller {
	f.mu.Lock()
	f.delays[cmd] = d
	f.mu.Unlock()
	return f
}

// Command returns the next scripted reply for cmd.
func (f *Controller) Command(_ context.Context, cmd string) string {
	call := Call{Command: cmd}
	delay := f.record(call)
	if f.OnCall != nil {
		f.OnCall(call)
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.replies[cmd]
	switch len(queue) {
	case 0:
		return ""
	case 1:
		return queue[0]
	default:
		f.replies[cmd] = queue[1:]
		return queue[0]
	}
}

// CommandBool returns the scripted boolean for cmd.
func (f *Controller) CommandBool(_ context.Context, cmd string) bool {
	call := Call{Command: cmd, Bool: true}
	f.record(call)
	if f.OnCall != nil {
		f.OnCall(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bools[cmd]
}

func (f *Controller) record(call Call) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.delays[call.Command]
}

// Calls returns every recorded call in order.
func (f *Controller) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many times cmd was sent.
func (f *Controller) Count(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Command == cmd {
			n++
		}
	}
	return n
}
