package sim

import "github.com/smartsimpoints/smartsim/sim/trace"

// ipcScale converts instructions per femtosecond into the IPC unit reported
// in region records.
const ipcScale = 1e9

// Stats is a snapshot of the controller's global counters.
type Stats struct {
	RegionsStarted     uint64
	RegionsFinalized   uint64
	DetailedRegions    uint64
	ActualSeconds      float64 // accumulated measured time of finalized regions
	EstimatedSeconds   float64 // accumulated estimated time of finalized regions
	Representatives    int     // BBV representatives registered by the classifier
	Phases             int     // distinct history hashes seen
	RegionInstructions uint64  // thread-0 instructions retired in the open region
}

// AggregateError returns (actual - estimated) / actual over all finalized
// regions, or 0 when no time has been measured.
func (s Stats) AggregateError() float64 {
	if s.ActualSeconds == 0 {
		return 0
	}
	return (s.ActualSeconds - s.EstimatedSeconds) / s.ActualSeconds
}

// computeIPC returns instructions * ipcScale / elapsed, or 0 if no time elapsed.
func computeIPC(instructions, elapsed uint64) float64 {
	if elapsed == 0 {
		return 0
	}
	return float64(instructions) * ipcScale / float64(elapsed)
}

// estimateTime extrapolates a region's time from its representative's IPC.
// Returns 0 when the representative has no usable IPC.
func estimateTime(instructions uint64, representativeIPC float64) float64 {
	if representativeIPC <= 0 {
		return 0
	}
	return float64(instructions) * ipcScale / representativeIPC
}

// relativeError returns (actual - estimated) / actual, or 0 if actual is 0.
func relativeError(actual uint64, estimated float64) float64 {
	if actual == 0 {
		return 0
	}
	return (float64(actual) - estimated) / float64(actual)
}

func (s *Stats) accumulate(r *trace.RegionRecord) {
	s.RegionsFinalized++
	s.ActualSeconds += r.ActualSeconds()
	s.EstimatedSeconds += r.EstimatedSeconds()
}
