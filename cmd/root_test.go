package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsimpoints/smartsim/sim"
	"github.com/smartsimpoints/smartsim/sim/trace"
)

const loopWorkload = `
seed: 11
threads: 2
phases:
  - name: loop
    blocks: 8
    min_block_size: 4
    max_block_size: 32
    instructions: 40000
    ipc: 2
schedule: [loop]
repeat: 8
`

// generatedRunConfig writes a workload spec, generates its trace and returns a
// run config pointing at it.
func generatedRunConfig(t *testing.T) *RunConfig {
	t.Helper()
	dir := t.TempDir()
	specPath := filepath.Join(dir, "workload.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(loopWorkload), 0644))
	cfg := defaultRunConfig()
	cfg.TraceHeader = filepath.Join(dir, "trace.yaml")
	cfg.TraceData = filepath.Join(dir, "trace.csv")
	_, err := generateTrace(specPath, cfg.TraceHeader, cfg.TraceData, 0)
	require.NoError(t, err)
	return &cfg
}

func TestReplayTrace_WritesRegionLogAndSummary(t *testing.T) {
	// GIVEN a generated trace and a region log file
	cfg := generatedRunConfig(t)
	cfg.RegionLog = filepath.Join(t.TempDir(), "regions.jsonl")
	out, err := createOutput(cfg.RegionLog)
	require.NoError(t, err)

	// WHEN it is replayed
	summary, result, err := replayTrace(context.Background(), cfg, replayOutputs{regionLog: out})
	out.Close()

	// THEN every region was logged and most of the run was fast-forwarded
	require.NoError(t, err)
	assert.Equal(t, 8, summary.TotalRegions)
	assert.Equal(t, 5, summary.DetailedRegions)
	assert.Equal(t, 3, summary.FastForwardRegions)
	assert.Equal(t, 8, result.Barriers)

	f, err := os.Open(cfg.RegionLog)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := trace.ReadRegionLog(f)
	require.NoError(t, err)
	assert.Len(t, records, 8)
}

func TestReplayTrace_MissingTrace(t *testing.T) {
	cfg := defaultRunConfig()
	cfg.TraceHeader = filepath.Join(t.TempDir(), "none.yaml")
	cfg.TraceData = filepath.Join(t.TempDir(), "none.csv")

	_, _, err := replayTrace(context.Background(), &cfg, replayOutputs{})

	assert.Error(t, err)
}

func TestRecoverInvariant(t *testing.T) {
	t.Run("invariant panic becomes error", func(t *testing.T) {
		run := func() (err error) {
			defer recoverInvariant(&err)
			panic(&sim.InvariantError{Op: "finalize", Msg: "boom"})
		}
		err := run()
		var inv *sim.InvariantError
		require.True(t, errors.As(err, &inv))
		assert.Equal(t, "finalize", inv.Op)
	})

	t.Run("other panics propagate", func(t *testing.T) {
		assert.Panics(t, func() {
			var err error
			defer recoverInvariant(&err)
			panic("unrelated")
		})
	})

	t.Run("no panic leaves error untouched", func(t *testing.T) {
		run := func() (err error) {
			defer recoverInvariant(&err)
			return nil
		}
		assert.NoError(t, run())
	})
}

func TestPrintSummary(t *testing.T) {
	cfg := generatedRunConfig(t)
	summary, result, err := replayTrace(context.Background(), cfg, replayOutputs{})
	require.NoError(t, err)

	var buf bytes.Buffer
	printSummary(&buf, "run-1", summary, result)

	out := buf.String()
	assert.Contains(t, out, "Sampling Summary (run run-1)")
	assert.Contains(t, out, "Regions:            8 (5 detailed, 3 fast-forwarded)")
	assert.Contains(t, out, "Detailed time:")
}

func TestOutputFile_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	out, err := createOutput(path)
	require.NoError(t, err)
	_, err = out.Write([]byte("buffered"))
	require.NoError(t, err)

	out.Close()
	out.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "buffered", string(data))
}

func TestGenerateTrace_SeedOverride(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "workload.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(loopWorkload), 0644))

	tr, err := generateTrace(specPath, filepath.Join(dir, "h.yaml"), filepath.Join(dir, "d.csv"), 99)

	require.NoError(t, err)
	assert.Equal(t, int64(99), tr.Header.Seed)
	assert.Equal(t, specPath, tr.Header.WorkloadSpec)
}

func TestGenerateTrace_BadSpec(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "workload.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte("threads: 0\nschedule: [x]\n"), 0644))

	_, err := generateTrace(specPath, filepath.Join(dir, "h.yaml"), filepath.Join(dir, "d.csv"), 0)

	assert.Error(t, err)
}

func TestColorOutput_RequiresTerminal(t *testing.T) {
	// GIVEN a regular file standing in for stderr
	f, err := os.Create(filepath.Join(t.TempDir(), "diag.txt"))
	require.NoError(t, err)
	defer f.Close()
	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "xterm")

	// THEN colour is never used on a non-terminal, even when requested
	assert.False(t, colorOutput(true, f))
	assert.False(t, colorOutput(false, f))
}

func TestColorOutput_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, colorOutput(true, os.Stderr))
}
