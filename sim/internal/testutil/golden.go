// Package testutil provides shared test infrastructure for the sampling core.
// It consolidates region-log consistency checks and assertion helpers used
// across sim/ and sim/workload/ test packages.
package testutil

import (
	"math"
	"testing"

	"github.com/smartsimpoints/smartsim/sim/trace"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertRegionLogConsistent checks the properties every finalized region log
// must have, whatever the workload:
//   - region IDs are dense and in order
//   - a detailed region is its own representative
//   - a fast-forwarded region points at an earlier detailed region
//   - per-thread counts sum to the global count
//   - IPC, estimate and error follow from the measured values, with no NaN/Inf
func AssertRegionLogConsistent(t *testing.T, records []trace.RegionRecord) {
	t.Helper()
	for i, r := range records {
		if r.RegionID != uint64(i) {
			t.Fatalf("record %d has region id %d", i, r.RegionID)
		}
		switch r.Mode {
		case trace.ModeDetailed:
			if r.RepresentativeID != r.RegionID {
				t.Errorf("region %d: detailed but representative is %d", i, r.RepresentativeID)
			}
			if r.EstimatedTime != float64(r.ActualTime) {
				t.Errorf("region %d: detailed estimate %v != actual %d", i, r.EstimatedTime, r.ActualTime)
			}
		case trace.ModeFastForward:
			if r.RepresentativeID >= r.RegionID {
				t.Errorf("region %d: fast-forwarded with representative %d", i, r.RepresentativeID)
				continue
			}
			if rep := records[r.RepresentativeID]; rep.Mode != trace.ModeDetailed {
				t.Errorf("region %d: representative %d was not simulated in detail", i, r.RepresentativeID)
			}
		default:
			t.Errorf("region %d: mode %v", i, r.Mode)
		}

		var sum uint64
		for _, n := range r.ThreadInstructions {
			sum += n
		}
		if sum != r.TotalInstructions {
			t.Errorf("region %d: per-thread sum %d != total %d", i, sum, r.TotalInstructions)
		}

		for name, v := range map[string]float64{"ipc": r.IPC, "estimate": r.EstimatedTime, "error": r.Error} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("region %d: %s is %v", i, name, v)
			}
		}
		if r.ActualTime == 0 {
			if r.IPC != 0 || r.Error != 0 {
				t.Errorf("region %d: zero actual time but ipc=%v error=%v", i, r.IPC, r.Error)
			}
			continue
		}
		AssertFloat64Equal(t, "ipc", float64(r.TotalInstructions)*1e9/float64(r.ActualTime), r.IPC, 1e-12)
		wantErr := (float64(r.ActualTime) - r.EstimatedTime) / float64(r.ActualTime)
		if math.Abs(wantErr-r.Error) > 1e-12 {
			t.Errorf("region %d: error %v, want %v", i, r.Error, wantErr)
		}
	}
}
