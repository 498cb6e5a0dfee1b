package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_NilRecords(t *testing.T) {
	// GIVEN no records
	// WHEN summarized
	s := Summarize(nil)

	// THEN all fields are zero and the map is usable
	assert.Equal(t, 0, s.TotalRegions)
	assert.NotNil(t, s.ReplayCounts)
	assert.Equal(t, 0.0, s.AggregateError)
	assert.Equal(t, 0.0, s.DetailedFraction())
}

func TestSummarize_MixedModes(t *testing.T) {
	// GIVEN one detailed region and two fast-forwarded replays of it
	records := []RegionRecord{
		{RegionID: 0, Mode: ModeDetailed, TotalInstructions: 1000,
			ActualTime: 1e15, EstimatedTime: 1e15},
		{RegionID: 1, Mode: ModeFastForward, RepresentativeID: 0, TotalInstructions: 1000,
			ActualTime: 1e15, EstimatedTime: 0.9e15, Error: 0.1},
		{RegionID: 2, Mode: ModeFastForward, RepresentativeID: 0, TotalInstructions: 2000,
			ActualTime: 2e15, EstimatedTime: 2.2e15, Error: -0.1},
	}

	// WHEN summarized
	s := Summarize(records)

	// THEN counts, times and errors aggregate
	assert.Equal(t, 3, s.TotalRegions)
	assert.Equal(t, 1, s.DetailedRegions)
	assert.Equal(t, 2, s.FastForwardRegions)
	assert.Equal(t, uint64(4000), s.TotalInstructions)
	assert.Equal(t, uint64(1000), s.DetailedInstructions)
	assert.InDelta(t, 0.25, s.DetailedFraction(), 1e-12)
	assert.InDelta(t, 4.0, s.ActualSeconds, 1e-12)
	assert.InDelta(t, 4.1, s.EstimatedSeconds, 1e-12)
	assert.InDelta(t, -0.025, s.AggregateError, 1e-12)
	assert.InDelta(t, 0.1, s.MeanAbsError, 1e-12)
	assert.InDelta(t, 0.1, s.MaxAbsError, 1e-12)
	assert.Equal(t, 2, s.ReplayCounts[0])
}

func TestSummarize_ZeroActualTime_NoNaN(t *testing.T) {
	// GIVEN a region whose host reported no elapsed time
	records := []RegionRecord{{Mode: ModeDetailed, TotalInstructions: 10}}

	// WHEN summarized
	s := Summarize(records)

	// THEN the aggregate error is the zero sentinel
	assert.Equal(t, 0.0, s.AggregateError)
}
