package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/smartsimpoints/smartsim/sim"
)

const (
	// DefaultBarrierPC is the barrier address used when a spec leaves it unset.
	DefaultBarrierPC = 0x400800
	// defaultBlockBase is where the first phase's basic blocks are laid out.
	defaultBlockBase = 0x401000
	// phaseStride separates the code of consecutive phases.
	phaseStride = 0x100000
)

// WorkloadSpec describes a synthetic barrier-synchronized program: a set of
// phases with distinct code footprints and a schedule that says which phase
// each inter-barrier region executes.
// Loaded from YAML via LoadWorkloadSpec(path).
type WorkloadSpec struct {
	Seed        int64       `yaml:"seed"`
	Threads     int         `yaml:"threads"`
	BarrierPC   uint64      `yaml:"barrier_pc,omitempty"`
	StartTimeFs uint64      `yaml:"start_time_fs,omitempty"`
	Phases      []PhaseSpec `yaml:"phases"`
	Schedule    []string    `yaml:"schedule"`
	Repeat      int         `yaml:"repeat,omitempty"` // schedule repetitions (default 1)
}

// PhaseSpec defines the behavior of one program phase.
type PhaseSpec struct {
	Name         string  `yaml:"name"`
	Blocks       int     `yaml:"blocks"`              // distinct basic blocks in the phase
	MinBlockSize uint32  `yaml:"min_block_size"`      // instructions per block, inclusive
	MaxBlockSize uint32  `yaml:"max_block_size"`      // instructions per block, inclusive
	Instructions uint64  `yaml:"instructions"`        // per thread per region
	IPC          float64 `yaml:"ipc"`                 // in region-record units (instructions per microsecond)
	Jitter       float64 `yaml:"jitter,omitempty"`    // relative timing noise in [0, 1)
	Imbalance    float64 `yaml:"imbalance,omitempty"` // max fractional shortfall of threads other than 0
}

// LoadWorkloadSpec reads and parses a YAML workload specification file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadWorkloadSpec(path string) (*WorkloadSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload spec: %w", err)
	}
	return ParseWorkloadSpec(data)
}

// ParseWorkloadSpec parses YAML workload spec bytes and applies defaults.
func ParseWorkloadSpec(data []byte) (*WorkloadSpec, error) {
	var spec WorkloadSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing workload spec: %w", err)
	}
	spec.applyDefaults()
	return &spec, nil
}

func (s *WorkloadSpec) applyDefaults() {
	if s.BarrierPC == 0 {
		s.BarrierPC = DefaultBarrierPC
	}
	if s.Repeat == 0 {
		s.Repeat = 1
	}
}

// Validate checks the spec for values the generator cannot honor.
func (s *WorkloadSpec) Validate() error {
	if s.Threads < 1 || s.Threads > sim.MaxThreads {
		return fmt.Errorf("threads must be in [1, %d], got %d", sim.MaxThreads, s.Threads)
	}
	if s.Repeat < 1 {
		return fmt.Errorf("repeat must be positive, got %d", s.Repeat)
	}
	if len(s.Phases) == 0 {
		return fmt.Errorf("at least one phase required")
	}
	names := make(map[string]bool, len(s.Phases))
	for i := range s.Phases {
		p := &s.Phases[i]
		if err := validatePhase(p, i); err != nil {
			return err
		}
		if names[p.Name] {
			return fmt.Errorf("phases[%d]: duplicate name %q", i, p.Name)
		}
		names[p.Name] = true
	}
	if len(s.Schedule) == 0 {
		return fmt.Errorf("schedule must name at least one phase")
	}
	for i, name := range s.Schedule {
		if !names[name] {
			return fmt.Errorf("schedule[%d]: unknown phase %q", i, name)
		}
	}
	used := make(map[string]bool, len(s.Schedule))
	for _, name := range s.Schedule {
		used[name] = true
	}
	for _, p := range s.Phases {
		if !used[p.Name] {
			logrus.Warnf("phase %q is never scheduled", p.Name)
		}
	}
	return nil
}

func validatePhase(p *PhaseSpec, idx int) error {
	prefix := fmt.Sprintf("phases[%d]", idx)
	if p.Name == "" {
		return fmt.Errorf("%s: name required", prefix)
	}
	if p.Blocks < 1 {
		return fmt.Errorf("%s: blocks must be positive, got %d", prefix, p.Blocks)
	}
	if p.MinBlockSize < 1 || p.MaxBlockSize < p.MinBlockSize {
		return fmt.Errorf("%s: block size range [%d, %d] invalid", prefix, p.MinBlockSize, p.MaxBlockSize)
	}
	if p.Instructions < 1 {
		return fmt.Errorf("%s: instructions must be positive", prefix)
	}
	if err := validateFinitePositive(prefix+".ipc", p.IPC); err != nil {
		return err
	}
	if math.IsNaN(p.Jitter) || p.Jitter < 0 || p.Jitter >= 1 {
		return fmt.Errorf("%s: jitter must be in [0, 1), got %f", prefix, p.Jitter)
	}
	if math.IsNaN(p.Imbalance) || p.Imbalance < 0 || p.Imbalance >= 1 {
		return fmt.Errorf("%s: imbalance must be in [0, 1), got %f", prefix, p.Imbalance)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}

// Regions returns the number of barrier regions the spec generates.
func (s *WorkloadSpec) Regions() int {
	return len(s.Schedule) * s.Repeat
}

func (s *WorkloadSpec) phaseIndex(name string) int {
	for i := range s.Phases {
		if s.Phases[i].Name == name {
			return i
		}
	}
	return -1
}
