package sim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type hostCall struct {
	cmd        HostCommand
	arg0, arg1 uint64
}

// fakeHost is a scripted host simulator: a settable clock plus a log of the
// non-time commands it received.
type fakeHost struct {
	mu    sync.Mutex
	now   uint64
	calls []hostCall
}

func (h *fakeHost) Command(cmd HostCommand, arg0, arg1 uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cmd == CmdGetSimTime {
		return h.now
	}
	h.calls = append(h.calls, hostCall{cmd, arg0, arg1})
	return 0
}

func (h *fakeHost) advance(fs uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now += fs
}

// modeSwitches returns the InstrumentMode arguments received, in order.
func (h *fakeHost) modeSwitches() []InstrumentMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []InstrumentMode
	for _, c := range h.calls {
		if c.cmd == CmdSetInstrumentMode {
			out = append(out, InstrumentMode(c.arg0))
		}
	}
	return out
}

func (h *fakeHost) count(cmd HostCommand) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c.cmd == cmd {
			n++
		}
	}
	return n
}

// block is one basic-block execution.
type block struct {
	pc           uint64
	instructions uint32
}

// newTestController creates a controller with threads 0..n-1 sharing host.
func newTestController(t *testing.T, n int, host Host) *Controller {
	t.Helper()
	c := NewController(ControllerConfig{})
	for tid := 0; tid < n; tid++ {
		c.StartThread(tid, host)
	}
	return c
}

// runBlocks executes the same blocks on each of the given threads.
func runBlocks(c *Controller, threads int, blocks []block) {
	for tid := 0; tid < threads; tid++ {
		for _, b := range blocks {
			c.OnBasicBlock(tid, b.pc, b.instructions)
		}
	}
}

// requireInvariant asserts that fn panics with an *InvariantError.
func requireInvariant(t *testing.T, fn func()) *InvariantError {
	t.Helper()
	var got *InvariantError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected invariant panic")
			err, ok := r.(*InvariantError)
			require.True(t, ok, "panic value %v is not *InvariantError", r)
			got = err
		}()
		fn()
	}()
	return got
}
