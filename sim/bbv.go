package sim

const (
	// MaxThreads is the fixed thread-slot capacity of a global BBV.
	MaxThreads = 64
	// NumDimensions is the number of projected buckets per thread BBV.
	// Must be a multiple of 4.
	NumDimensions = 16
	// VectorLen is the length of a flattened global BBV.
	VectorLen = MaxThreads * NumDimensions
)

// Vector is a flattened global basic-block vector: NumDimensions buckets per
// thread slot, thread-major, unused slots zero.
type Vector []uint64

// NewVector returns a zeroed global vector.
func NewVector() Vector {
	return make(Vector, VectorLen)
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// IsZero reports whether every bucket is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// BBVSource exposes the live per-thread BBV counters.
type BBVSource interface {
	// LiveThreads returns the number of thread slots in use (≤ MaxThreads).
	LiveThreads() int
	// Dimension returns bucket dim of thread threadID's cumulative BBV.
	Dimension(threadID, dim int) uint64
}

// Aggregator turns cumulative per-thread BBVs into per-region global vectors.
type Aggregator struct {
	src      BBVSource
	previous Vector
}

// NewAggregator creates an Aggregator reading from src.
func NewAggregator(src BBVSource) *Aggregator {
	return &Aggregator{src: src}
}

// ComputeRegionBBV returns the global BBV accumulated since the previous call.
// The first call returns the cumulative vector unchanged.
func (a *Aggregator) ComputeRegionBBV() Vector {
	live := a.src.LiveThreads()
	if live < 0 || live > MaxThreads {
		invariantf("ComputeRegionBBV", "live thread count %d outside [0, %d]", live, MaxThreads)
	}

	current := NewVector()
	for tid := 0; tid < live; tid++ {
		for dim := 0; dim < NumDimensions; dim++ {
			current[tid*NumDimensions+dim] = a.src.Dimension(tid, dim)
		}
	}

	if a.previous == nil {
		a.previous = current
		return current.Clone()
	}

	region := NewVector()
	for i := range current {
		if current[i] < a.previous[i] {
			invariantf("ComputeRegionBBV", "bucket %d decreased from %d to %d", i, a.previous[i], current[i])
		}
		region[i] = current[i] - a.previous[i]
	}
	a.previous = current
	return region
}
