package sim

import "sync/atomic"

// drand48 constants.
const (
	rngA = 0x5DEECE66D
	rngC = 0xB
	rngM = (1 << 48) - 1
)

func rngSeed(seed uint64) uint64 {
	return (seed << 16) + 0x330E
}

// rngNext advances a drand48 state and returns the next state and its weight.
func rngNext(state uint64) (uint64, uint64) {
	state = (rngA*state + rngC) & rngM
	return state, state >> 16
}

// ThreadBBV is the live basic-block vector of one application thread.
//
// Basic blocks are randomly projected onto NumDimensions buckets. The
// projection matrix is too large to store, so each block's row is regenerated
// on demand from a drand48 stream seeded with the block address. Four streams
// are interleaved so that consecutive buckets use different seeds.
//
// Count is called only by the owning thread; Dimension may be called from any
// thread and observes a monotonically non-decreasing value.
type ThreadBBV struct {
	dims [NumDimensions]atomic.Uint64
}

// Count folds a basic block at pc that retired the given number of
// instructions into the vector.
func (b *ThreadBBV) Count(pc uint64, instructions uint64) {
	seeds := [4]uint64{rngSeed(pc), rngSeed(pc + 1), rngSeed(pc + 2), rngSeed(pc + 3)}
	var weight uint64
	for i := 0; i < NumDimensions; i += 4 {
		for lane := range seeds {
			seeds[lane], weight = rngNext(seeds[lane])
			b.dims[i+lane].Add((weight & 0xffff) * instructions)
		}
	}
}

// Dimension returns bucket i.
func (b *ThreadBBV) Dimension(i int) uint64 {
	return b.dims[i].Load()
}
