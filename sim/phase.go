package sim

import "github.com/google/btree"

// phaseEntry lists the regions that produced one history hash, in order.
type phaseEntry struct {
	hash    uint64
	regions []uint64
}

// PhaseCache maps phase hashes to the regions that produced them.
// Entries are append-only; the first region of a hash is its representative.
type PhaseCache struct {
	table *btree.BTreeG[*phaseEntry]
}

// NewPhaseCache creates an empty PhaseCache.
func NewPhaseCache() *PhaseCache {
	return &PhaseCache{
		table: btree.NewG[*phaseEntry](2, func(a, b *phaseEntry) bool { return a.hash < b.hash }),
	}
}

// Resolve records regionID under hash and returns the phase's representative:
// regionID itself for an unseen hash, otherwise the first region ever
// recorded for it.
func (p *PhaseCache) Resolve(hash, regionID uint64) uint64 {
	if e, ok := p.table.Get(&phaseEntry{hash: hash}); ok {
		e.regions = append(e.regions, regionID)
		return e.regions[0]
	}
	p.table.ReplaceOrInsert(&phaseEntry{hash: hash, regions: []uint64{regionID}})
	return regionID
}

// Regions returns a copy of the regions recorded under hash (nil if unseen).
func (p *PhaseCache) Regions(hash uint64) []uint64 {
	e, ok := p.table.Get(&phaseEntry{hash: hash})
	if !ok {
		return nil
	}
	return append([]uint64(nil), e.regions...)
}

// Len returns the number of distinct phases.
func (p *PhaseCache) Len() int {
	return p.table.Len()
}

// Each calls fn for every phase in ascending hash order until fn returns false.
// The regions slice must not be retained or modified.
func (p *PhaseCache) Each(fn func(hash uint64, regions []uint64) bool) {
	p.table.Ascend(func(e *phaseEntry) bool {
		return fn(e.hash, e.regions)
	})
}
