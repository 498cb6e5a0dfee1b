// Package sim provides the adaptive sampling core for barrier-synchronized
// multithreaded programs.
//
// # Reading Guide
//
// Start with these files to understand the sampling pipeline:
//   - controller.go: the barrier-start handler; finalizes the previous region,
//     classifies the new one and switches the host simulator's mode
//   - classifier.go: relative-distance matching of region BBVs against
//     registered representatives
//   - history.go and phase.go: the rolling hash over recent representatives and
//     the table that maps a hash to the first region of its phase
//
// # Architecture
//
// Leaves first:
//   - ThreadBBV (projection.go): live per-thread BBV, updated lock-free
//   - Aggregator (bbv.go): per-region global BBV delta
//   - Classifier, HistoryHasher, PhaseCache
//   - Controller: owns all of the above plus the region log and timing
//     accumulators; one mutex serializes region boundaries
//
// Sub-packages:
//   - sim/trace/: region record types, the JSON-lines region log, diagnostics
//     and summaries
//   - sim/workload/: event traces, the replay host and the synthetic workload
//     generator
//
// # Key Interfaces
//
//   - Host: the opaque command channel into the host simulator (mode switch,
//     region-of-interest markers, simulated time)
//   - BBVSource: per-thread cumulative BBV counters read by the Aggregator
//
// Invariant violations raised by the instrumentation layer or the host
// (invalid thread ids, missing host handles, zero PCs, counters that go
// backwards) panic with *InvariantError.
package sim
