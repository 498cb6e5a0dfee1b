package sim

import "fmt"

// HostCommand is an opcode of the host simulator's command channel.
type HostCommand int

const (
	// CmdSetInstrumentMode switches instrumentation granularity; arg0 is an InstrumentMode.
	CmdSetInstrumentMode HostCommand = iota + 1
	// CmdROIStart marks the start of a region of interest.
	CmdROIStart
	// CmdROIEnd marks the end of a region of interest.
	CmdROIEnd
	// CmdGetSimTime returns the host's monotonic simulated time in femtoseconds.
	CmdGetSimTime
)

func (c HostCommand) String() string {
	switch c {
	case CmdSetInstrumentMode:
		return "set-instrument-mode"
	case CmdROIStart:
		return "roi-start"
	case CmdROIEnd:
		return "roi-end"
	case CmdGetSimTime:
		return "get-sim-time"
	}
	return fmt.Sprintf("HostCommand(%d)", int(c))
}

// InstrumentMode is the argument of CmdSetInstrumentMode.
type InstrumentMode uint64

const (
	InstrumentDetailed InstrumentMode = iota + 1
	InstrumentFastForward
)

// Host is the opaque, synchronous command channel into the host simulator.
// Each application thread owns a handle.
type Host interface {
	Command(cmd HostCommand, arg0, arg1 uint64) uint64
}

// HostFunc adapts a function to the Host interface.
type HostFunc func(cmd HostCommand, arg0, arg1 uint64) uint64

// Command implements Host.
func (f HostFunc) Command(cmd HostCommand, arg0, arg1 uint64) uint64 {
	return f(cmd, arg0, arg1)
}
