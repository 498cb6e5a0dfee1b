package workload

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// femtosecondsPerIPCUnit converts instructions / IPC into femtoseconds, matching
// the IPC definition of region records (instructions * 1e9 / femtoseconds).
const femtosecondsPerIPCUnit = 1e9

// phaseLayout is the code footprint of one phase: a loop body of basic blocks
// executed in order.
type phaseLayout struct {
	pcs   []uint64
	sizes []uint32
}

// layoutPhase places the phase's blocks in its own address range and fixes
// their sizes. Hot blocks appear more than once in the loop body.
func layoutPhase(p *PhaseSpec, idx int, rng *rand.Rand) phaseLayout {
	base := uint64(defaultBlockBase + idx*phaseStride)
	var l phaseLayout
	for b := 0; b < p.Blocks; b++ {
		pc := base + uint64(b)*0x40 + uint64(rng.Intn(16))*4
		size := p.MinBlockSize + uint32(rng.Int63n(int64(p.MaxBlockSize-p.MinBlockSize)+1))
		repeats := 1 + rng.Intn(3)
		for r := 0; r < repeats; r++ {
			l.pcs = append(l.pcs, pc)
			l.sizes = append(l.sizes, size)
		}
	}
	rng.Shuffle(len(l.pcs), func(i, j int) {
		l.pcs[i], l.pcs[j] = l.pcs[j], l.pcs[i]
		l.sizes[i], l.sizes[j] = l.sizes[j], l.sizes[i]
	})
	return l
}

type generator struct {
	now    uint64
	events []Event
}

func (g *generator) emit(e Event) {
	e.SimTimeFs = g.now
	g.events = append(g.events, e)
}

// region emits the basic blocks of one region on every thread and advances the
// clock by the region's duration.
func (g *generator) region(p *PhaseSpec, l *phaseLayout, threads int, scheduleRNG, timingRNG *rand.Rand) {
	budgets := make([]uint64, threads)
	var total uint64
	for t := range budgets {
		budgets[t] = p.Instructions
		if t > 0 && p.Imbalance > 0 {
			budgets[t] = uint64(float64(p.Instructions) * (1 - p.Imbalance*scheduleRNG.Float64()))
			if budgets[t] == 0 {
				budgets[t] = 1
			}
		}
		total += budgets[t]
	}

	duration := float64(total) * femtosecondsPerIPCUnit / p.IPC
	if p.Jitter > 0 {
		duration *= 1 + p.Jitter*(2*timingRNG.Float64()-1)
	}
	durationFs := uint64(math.Max(1, math.Round(duration)))

	start := g.now
	var done uint64
	for t := 0; t < threads; t++ {
		pos := scheduleRNG.Intn(len(l.pcs))
		for remaining := budgets[t]; remaining > 0; pos = (pos + 1) % len(l.pcs) {
			n := l.sizes[pos]
			if uint64(n) > remaining {
				n = uint32(remaining)
			}
			remaining -= uint64(n)
			done += uint64(n)
			g.now = start + uint64(float64(durationFs)*float64(done)/float64(total))
			g.emit(Event{Kind: EventBasicBlock, Thread: t, PC: l.pcs[pos], Instructions: n})
		}
	}
	g.now = start + durationFs
}

// Generate creates an event trace from a WorkloadSpec.
// Deterministic given the same spec and seed.
//
// The trace starts every thread, then for each scheduled region emits a
// barrier (raised by threads in rotation) followed by the region's basic
// blocks, and ends with program_end.
func Generate(spec *WorkloadSpec) (*EventTrace, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload spec: %w", err)
	}

	rng := NewPartitionedRNG(spec.Seed)
	layouts := make([]phaseLayout, len(spec.Phases))
	for i := range spec.Phases {
		layouts[i] = layoutPhase(&spec.Phases[i], i, rng.ForSubsystem(SubsystemPhase(spec.Phases[i].Name)))
	}
	scheduleRNG := rng.ForSubsystem(SubsystemSchedule)
	timingRNG := rng.ForSubsystem(SubsystemTiming)

	g := &generator{now: spec.StartTimeFs}
	for t := 0; t < spec.Threads; t++ {
		g.emit(Event{Kind: EventThreadStart, Thread: t})
	}

	region := 0
	for rep := 0; rep < spec.Repeat; rep++ {
		for _, name := range spec.Schedule {
			idx := spec.phaseIndex(name)
			barrierThread := region % spec.Threads
			g.emit(Event{Kind: EventBarrierStart, Thread: barrierThread, PC: spec.BarrierPC})
			g.emit(Event{Kind: EventBarrierEnd, Thread: barrierThread, PC: spec.BarrierPC})
			g.region(&spec.Phases[idx], &layouts[idx], spec.Threads, scheduleRNG, timingRNG)
			region++
		}
	}
	g.emit(Event{Kind: EventProgramEnd, Thread: 0})

	logrus.Debugf("generated %d events over %d regions", len(g.events), region)
	return &EventTrace{
		Header: TraceHeader{
			Version:   TraceVersion,
			TimeUnit:  TimeUnitFemtoseconds,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Mode:      "generated",
			Threads:   spec.Threads,
			Seed:      spec.Seed,
		},
		Events: g.events,
	}, nil
}
