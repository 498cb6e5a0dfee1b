package workload

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/smartsimpoints/smartsim/sim"
)

// ctxCheckInterval is how many events Replay processes between context checks.
const ctxCheckInterval = 4096

// ReplayHost is a sim.Host whose clock follows the timestamps of a replayed
// trace. It records the commands the controller sends so a replay can report
// how much of the run would have been simulated in detail.
// Not safe for concurrent use; Replay drives it from one goroutine.
type ReplayHost struct {
	now       uint64
	mode      sim.InstrumentMode
	modeSince uint64
	roiActive bool

	modeSwitches int
	roiStarts    int
	roiEnds      int
	detailedFs   uint64
}

// NewReplayHost creates a host in fast-forward mode at time 0.
func NewReplayHost() *ReplayHost {
	return &ReplayHost{mode: sim.InstrumentFastForward}
}

// Command implements sim.Host.
func (h *ReplayHost) Command(cmd sim.HostCommand, arg0, _ uint64) uint64 {
	switch cmd {
	case sim.CmdGetSimTime:
		return h.now
	case sim.CmdSetInstrumentMode:
		h.closeModeInterval()
		h.mode = sim.InstrumentMode(arg0)
		h.modeSwitches++
	case sim.CmdROIStart:
		h.roiActive = true
		h.roiStarts++
	case sim.CmdROIEnd:
		h.roiActive = false
		h.roiEnds++
	default:
		logrus.Warnf("replay host: ignoring unknown command %v", cmd)
	}
	return 0
}

// Advance moves the clock forward to t. Time never goes backwards.
func (h *ReplayHost) Advance(t uint64) error {
	if t < h.now {
		return fmt.Errorf("simulated time went backwards: %d < %d", t, h.now)
	}
	h.now = t
	return nil
}

// Now returns the current simulated time in femtoseconds.
func (h *ReplayHost) Now() uint64 { return h.now }

// Mode returns the instrumentation mode last requested by the controller.
func (h *ReplayHost) Mode() sim.InstrumentMode { return h.mode }

// ROIActive reports whether a region of interest is open.
func (h *ReplayHost) ROIActive() bool { return h.roiActive }

// DetailedTime returns the simulated time spent in detailed mode so far.
func (h *ReplayHost) DetailedTime() uint64 {
	if h.mode == sim.InstrumentDetailed {
		return h.detailedFs + (h.now - h.modeSince)
	}
	return h.detailedFs
}

func (h *ReplayHost) closeModeInterval() {
	if h.mode == sim.InstrumentDetailed {
		h.detailedFs += h.now - h.modeSince
	}
	h.modeSince = h.now
}

// ReplayResult summarizes one replay.
type ReplayResult struct {
	Events       int
	Threads      int
	Barriers     int
	BasicBlocks  int
	ModeSwitches int
	ROIStarts    int
	ROIEnds      int
	TotalTime    uint64 // femtoseconds from the first to the last event
	DetailedTime uint64 // femtoseconds spent in detailed mode
}

// Replay feeds events through ctrl in order, with host providing the clock.
// Events are validated before they reach the controller so that a malformed
// trace yields an error instead of an invariant violation. The controller is
// finished when the trace ends, whether or not it carries a program_end event.
func Replay(ctx context.Context, events []Event, ctrl *sim.Controller, host *ReplayHost) (*ReplayResult, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("empty trace")
	}

	var started [sim.MaxThreads]bool
	result := &ReplayResult{}
	startTime := events[0].SimTimeFs
	if err := host.Advance(startTime); err != nil {
		return nil, err
	}
	host.modeSince = startTime
	ended := false

	for i, e := range events {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("replay interrupted at event %d: %w", i, err)
			}
		}
		if ended {
			return nil, fmt.Errorf("event %d (%v) after program_end", i, e.Kind)
		}
		if e.Thread < 0 || e.Thread >= sim.MaxThreads {
			return nil, fmt.Errorf("event %d: thread %d outside [0, %d)", i, e.Thread, sim.MaxThreads)
		}
		if err := host.Advance(e.SimTimeFs); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if e.Kind != EventThreadStart && !started[e.Thread] {
			return nil, fmt.Errorf("event %d (%v): thread %d was never started", i, e.Kind, e.Thread)
		}

		switch e.Kind {
		case EventThreadStart:
			if started[e.Thread] {
				return nil, fmt.Errorf("event %d: thread %d started twice", i, e.Thread)
			}
			started[e.Thread] = true
			result.Threads++
			ctrl.StartThread(e.Thread, host)
		case EventBasicBlock:
			result.BasicBlocks++
			ctrl.OnBasicBlock(e.Thread, e.PC, e.Instructions)
		case EventBarrierStart, EventBarrierEnd:
			if e.PC == 0 {
				return nil, fmt.Errorf("event %d: barrier with zero pc", i)
			}
			if !started[0] {
				return nil, fmt.Errorf("event %d: barrier before thread 0 started", i)
			}
			kind := sim.BoundaryEnd
			if e.Kind == EventBarrierStart {
				kind = sim.BoundaryStart
				result.Barriers++
			}
			ctrl.OnBarrierBoundary(kind, e.PC, e.Thread)
		case EventProgramEnd:
			ended = true
		default:
			return nil, fmt.Errorf("event %d: unknown kind %v", i, e.Kind)
		}
		result.Events++
	}

	ctrl.Finish()

	result.ModeSwitches = host.modeSwitches
	result.ROIStarts = host.roiStarts
	result.ROIEnds = host.roiEnds
	result.TotalTime = host.Now() - startTime
	result.DetailedTime = host.DetailedTime()
	logrus.Infof("replayed %d events: %d threads, %d barriers, %d mode switches",
		result.Events, result.Threads, result.Barriers, result.ModeSwitches)
	return result, nil
}
