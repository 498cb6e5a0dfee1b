package trace

import "math"

// RegionSummary aggregates statistics over a finalized region log.
type RegionSummary struct {
	TotalRegions         int
	DetailedRegions      int
	FastForwardRegions   int
	TotalInstructions    uint64
	DetailedInstructions uint64
	ActualSeconds        float64
	EstimatedSeconds     float64
	AggregateError       float64 // (actual - estimated) / actual over the whole run; 0 if actual is 0
	MeanAbsError         float64 // over fast-forwarded regions only
	MaxAbsError          float64
	ReplayCounts         map[uint64]int // representative region ID → fast-forwarded regions replaying it
}

// DetailedFraction returns the share of instructions simulated in detailed mode.
func (s *RegionSummary) DetailedFraction() float64 {
	if s.TotalInstructions == 0 {
		return 0
	}
	return float64(s.DetailedInstructions) / float64(s.TotalInstructions)
}

// Summarize computes aggregate statistics from finalized region records.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(records []RegionRecord) *RegionSummary {
	summary := &RegionSummary{
		ReplayCounts: make(map[uint64]int),
	}
	summary.TotalRegions = len(records)

	totalAbsError := 0.0
	for i := range records {
		r := &records[i]
		summary.TotalInstructions += r.TotalInstructions
		summary.ActualSeconds += r.ActualSeconds()
		summary.EstimatedSeconds += r.EstimatedSeconds()

		switch r.Mode {
		case ModeDetailed:
			summary.DetailedRegions++
			summary.DetailedInstructions += r.TotalInstructions
		case ModeFastForward:
			summary.FastForwardRegions++
			summary.ReplayCounts[r.RepresentativeID]++
			absErr := math.Abs(r.Error)
			totalAbsError += absErr
			if absErr > summary.MaxAbsError {
				summary.MaxAbsError = absErr
			}
		}
	}

	if summary.FastForwardRegions > 0 {
		summary.MeanAbsError = totalAbsError / float64(summary.FastForwardRegions)
	}
	if summary.ActualSeconds > 0 {
		summary.AggregateError = (summary.ActualSeconds - summary.EstimatedSeconds) / summary.ActualSeconds
	}
	return summary
}
