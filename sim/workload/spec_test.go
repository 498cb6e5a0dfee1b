package workload

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoPhaseYAML = `
seed: 42
threads: 4
phases:
  - name: init
    blocks: 6
    min_block_size: 4
    max_block_size: 24
    instructions: 20000
    ipc: 1.5
  - name: solve
    blocks: 10
    min_block_size: 8
    max_block_size: 40
    instructions: 50000
    ipc: 3
    jitter: 0.02
schedule: [init, solve, solve]
repeat: 3
`

// validSpec returns a small valid spec for tests to mutate.
func validSpec() *WorkloadSpec {
	return &WorkloadSpec{
		Seed:      1,
		Threads:   2,
		BarrierPC: DefaultBarrierPC,
		Repeat:    1,
		Phases: []PhaseSpec{
			{Name: "a", Blocks: 4, MinBlockSize: 4, MaxBlockSize: 16, Instructions: 2000, IPC: 2},
		},
		Schedule: []string{"a"},
	}
}

func TestLoadWorkloadSpec_ParsesAndDefaults(t *testing.T) {
	// GIVEN a spec file without barrier_pc
	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoPhaseYAML), 0644))

	// WHEN it is loaded
	spec, err := LoadWorkloadSpec(path)

	// THEN fields are parsed and defaults applied
	require.NoError(t, err)
	assert.Equal(t, int64(42), spec.Seed)
	assert.Equal(t, 4, spec.Threads)
	assert.Equal(t, uint64(DefaultBarrierPC), spec.BarrierPC)
	require.Len(t, spec.Phases, 2)
	assert.Equal(t, 0.02, spec.Phases[1].Jitter)
	assert.Equal(t, 9, spec.Regions())
	assert.NoError(t, spec.Validate())
}

func TestParseWorkloadSpec_HexBarrierPC(t *testing.T) {
	spec, err := ParseWorkloadSpec([]byte("threads: 1\nbarrier_pc: 0x7f0010\nschedule: [a]\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7f0010), spec.BarrierPC)
	assert.Equal(t, 1, spec.Repeat)
}

func TestParseWorkloadSpec_UnknownKey_Rejected(t *testing.T) {
	_, err := ParseWorkloadSpec([]byte("threads: 1\nphses: []\n"))
	assert.Error(t, err)
}

func TestWorkloadSpec_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WorkloadSpec)
	}{
		{"zero threads", func(s *WorkloadSpec) { s.Threads = 0 }},
		{"too many threads", func(s *WorkloadSpec) { s.Threads = 65 }},
		{"negative repeat", func(s *WorkloadSpec) { s.Repeat = -1 }},
		{"no phases", func(s *WorkloadSpec) { s.Phases = nil }},
		{"empty schedule", func(s *WorkloadSpec) { s.Schedule = nil }},
		{"unknown scheduled phase", func(s *WorkloadSpec) { s.Schedule = []string{"a", "b"} }},
		{"duplicate phase", func(s *WorkloadSpec) { s.Phases = append(s.Phases, s.Phases[0]) }},
		{"unnamed phase", func(s *WorkloadSpec) { s.Phases[0].Name = "" }},
		{"no blocks", func(s *WorkloadSpec) { s.Phases[0].Blocks = 0 }},
		{"zero block size", func(s *WorkloadSpec) { s.Phases[0].MinBlockSize = 0 }},
		{"inverted block sizes", func(s *WorkloadSpec) { s.Phases[0].MaxBlockSize = 2 }},
		{"no instructions", func(s *WorkloadSpec) { s.Phases[0].Instructions = 0 }},
		{"zero ipc", func(s *WorkloadSpec) { s.Phases[0].IPC = 0 }},
		{"nan ipc", func(s *WorkloadSpec) { s.Phases[0].IPC = math.NaN() }},
		{"inf ipc", func(s *WorkloadSpec) { s.Phases[0].IPC = math.Inf(1) }},
		{"jitter of one", func(s *WorkloadSpec) { s.Phases[0].Jitter = 1 }},
		{"negative imbalance", func(s *WorkloadSpec) { s.Phases[0].Imbalance = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)
			assert.Error(t, spec.Validate())
		})
	}

	assert.NoError(t, validSpec().Validate())
}
