package workload

import (
	"hash/fnv"
	"math/rand"
)

const (
	// SubsystemSchedule is the RNG subsystem for per-region choices
	// (thread budgets, loop entry points). Uses the master seed directly.
	SubsystemSchedule = "schedule"

	// SubsystemTiming is the RNG subsystem for region duration jitter.
	SubsystemTiming = "timing"
)

// SubsystemPhase returns the subsystem name for the code layout of a phase.
func SubsystemPhase(name string) string {
	return "phase_" + name
}

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem,
// so that adding a phase or changing jitter does not perturb unrelated
// random streams.
//
// Derivation formula:
//   - For SubsystemSchedule: uses the seed directly
//   - For all other subsystems: seed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	derivedSeed := p.seed
	if name != SubsystemSchedule {
		derivedSeed ^= fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
