package trace

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id uint64, mode Mode) RegionRecord {
	return RegionRecord{
		RegionID:           id,
		ThreadID:           0,
		RepresentativeID:   id,
		HistoryQueue:       []uint64{0, 0, 1, 0},
		Hash:               12345,
		Mode:               mode,
		ActualTime:         2_000_000,
		EstimatedTime:      2_000_000,
		ThreadInstructions: []uint64{100, 50},
		TotalInstructions:  150,
		IPC:                75,
		Error:              0,
		StartPC:            0x401000,
	}
}

func TestRegionLog_Append_PreservesOrder(t *testing.T) {
	// GIVEN an in-memory region log
	log := NewRegionLog(nil)

	// WHEN three records are appended
	for i := uint64(0); i < 3; i++ {
		require.NoError(t, log.Append(sampleRecord(i, ModeDetailed)))
	}

	// THEN they come back in append order
	records := log.Records()
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, uint64(i), r.RegionID)
	}
}

func TestRegionLog_Append_CopiesRecord(t *testing.T) {
	// GIVEN a record appended to the log
	log := NewRegionLog(nil)
	rec := sampleRecord(0, ModeDetailed)
	require.NoError(t, log.Append(rec))

	// WHEN the caller mutates its copy afterwards
	rec.HistoryQueue[0] = 99
	rec.ThreadInstructions[1] = 99

	// THEN the logged record is unchanged
	got := log.Records()[0]
	assert.Equal(t, []uint64{0, 0, 1, 0}, got.HistoryQueue)
	assert.Equal(t, []uint64{100, 50}, got.ThreadInstructions)
}

func TestRegionLog_Append_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegionRecord)
	}{
		{"nan ipc", func(r *RegionRecord) { r.IPC = math.NaN() }},
		{"inf error", func(r *RegionRecord) { r.Error = math.Inf(1) }},
		{"-inf estimate", func(r *RegionRecord) { r.EstimatedTime = math.Inf(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewRegionLog(nil)
			rec := sampleRecord(0, ModeFastForward)
			tt.mutate(&rec)
			err := log.Append(rec)
			assert.ErrorIs(t, err, ErrNonFinite)
			assert.Equal(t, 0, log.Len())
		})
	}
}

func TestRegionLog_Sink_FieldOrder(t *testing.T) {
	// GIVEN a log streaming to a buffer
	var buf bytes.Buffer
	log := NewRegionLog(&buf)

	// WHEN a record is appended
	require.NoError(t, log.Append(sampleRecord(7, ModeFastForward)))

	// THEN the JSON keys appear in the contractual order
	line := buf.String()
	keys := []string{
		`"Region ID"`, `"Thread ID"`, `"Representative Region ID"`, `"History Queue"`,
		`"Hash"`, `"Mode"`, `"Actual Time"`, `"Estimated Time"`,
		`"Per-thread Instruction Count"`, `"Global Instruction Count"`,
		`"IPC"`, `"Error"`, `"Start PC"`,
	}
	last := -1
	for _, k := range keys {
		idx := strings.Index(line, k)
		require.GreaterOrEqual(t, idx, 0, "missing key %s", k)
		assert.Greater(t, idx, last, "key %s out of order", k)
		last = idx
	}
	assert.Contains(t, line, `"Mode":"Fast-Forward"`)
	assert.NotContains(t, line, "BBVRepresentativeID")
}

func TestReadRegionLog_RoundTripsSink(t *testing.T) {
	// GIVEN a streamed log with two records
	var buf bytes.Buffer
	log := NewRegionLog(&buf)
	require.NoError(t, log.Append(sampleRecord(0, ModeDetailed)))
	require.NoError(t, log.Append(sampleRecord(1, ModeFastForward)))

	// WHEN it is read back
	records, err := ReadRegionLog(&buf)

	// THEN modes and ids survive
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ModeDetailed, records[0].Mode)
	assert.Equal(t, ModeFastForward, records[1].Mode)
	assert.Equal(t, uint64(0x401000), records[1].StartPC)
}

func TestReadRegionLog_BadMode(t *testing.T) {
	_, err := ReadRegionLog(strings.NewReader(`{"Region ID": 0, "Mode": "Turbo"}`))
	assert.Error(t, err)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "Detailed", ModeDetailed.String())
	assert.Equal(t, "Fast-Forward", ModeFastForward.String())
	assert.Equal(t, "NA", ModeNone.String())
	assert.Equal(t, "NA", Mode(42).String())
}

func TestDiagnostics_NilIsSilent(t *testing.T) {
	var d *Diagnostics
	assert.NotPanics(t, func() {
		d.GlobalBBV([]uint64{1, 2}, 1)
		d.Boundary(0, 0x10, 0)
		d.HistoryQueue([]uint64{0})
		d.Representative(0, 0)
		d.Mode(ModeDetailed)
		d.Finalized(&RegionRecord{})
	})
}

func TestDiagnostics_GlobalBBV_SeparatesThreadSlots(t *testing.T) {
	var buf bytes.Buffer
	d := NewDiagnostics(&buf, false)

	d.GlobalBBV([]uint64{1, 2, 3, 4}, 2)

	assert.Equal(t, "BBV: 1 2 | 3 4 |\n", buf.String())
}

func TestDiagnostics_Mode_Uncolored(t *testing.T) {
	var buf bytes.Buffer
	d := NewDiagnostics(&buf, false)

	d.Mode(ModeDetailed)
	d.Mode(ModeFastForward)

	assert.Equal(t, "Running a detailed simulation\nFast forwarding\n", buf.String())
}
