// Package trace provides region-record types and the append-only region log.
// This package has no dependencies on sim/; it stores pure data types.
package trace

import "fmt"

// FemtosecondsPerSecond converts host timestamps (femtoseconds) to seconds.
const FemtosecondsPerSecond = 1e15

// Mode is the simulation mode chosen for a region.
type Mode int

const (
	// ModeNone marks a record whose mode was never decided.
	ModeNone Mode = iota
	// ModeDetailed measures true timing for the region.
	ModeDetailed
	// ModeFastForward skips the region and extrapolates from its representative.
	ModeFastForward
)

var modeNames = map[Mode]string{
	ModeNone:        "NA",
	ModeDetailed:    "Detailed",
	ModeFastForward: "Fast-Forward",
}

// String returns the name used in the region log.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return modeNames[ModeNone]
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	for mode, name := range modeNames {
		if name == string(text) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", string(text))
}

// RegionRecord captures one interbarrier region.
// JSON field order is consumed by downstream tooling and must not change.
type RegionRecord struct {
	RegionID               uint64   `json:"Region ID"`
	ThreadID               int      `json:"Thread ID"`
	RepresentativeID       uint64   `json:"Representative Region ID"`
	HistoryQueue           []uint64 `json:"History Queue"`
	Hash                   uint64   `json:"Hash"`
	Mode                   Mode     `json:"Mode"`
	ActualTime             uint64   `json:"Actual Time"`    // femtoseconds
	EstimatedTime          float64  `json:"Estimated Time"` // femtoseconds
	ThreadInstructions     []uint64 `json:"Per-thread Instruction Count"`
	TotalInstructions      uint64   `json:"Global Instruction Count"`
	IPC                    float64  `json:"IPC"`
	Error                  float64  `json:"Error"`
	StartPC                uint64   `json:"Start PC"`
	BBVRepresentativeID    uint64   `json:"-"` // similarity result before phase resolution
	ThreadZeroInstructions uint64   `json:"-"`
}

// Clone returns a deep copy of the record.
func (r *RegionRecord) Clone() RegionRecord {
	c := *r
	if r.HistoryQueue != nil {
		c.HistoryQueue = append([]uint64(nil), r.HistoryQueue...)
	}
	if r.ThreadInstructions != nil {
		c.ThreadInstructions = append([]uint64(nil), r.ThreadInstructions...)
	}
	return c
}

// ActualSeconds returns the measured region time in seconds.
func (r *RegionRecord) ActualSeconds() float64 {
	return float64(r.ActualTime) / FemtosecondsPerSecond
}

// EstimatedSeconds returns the estimated region time in seconds.
func (r *RegionRecord) EstimatedSeconds() float64 {
	return r.EstimatedTime / FemtosecondsPerSecond
}
