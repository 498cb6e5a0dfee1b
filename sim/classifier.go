package sim

import (
	"math"
	"math/big"
)

// ThresholdDistance is the relative BBV distance below which two regions are
// considered the same behaviour.
const ThresholdDistance = 0.05

// distancePrec is the mantissa width used for distance sums: the width of an
// x87 extended double, enough to sum VectorLen ratios without cancellation.
const distancePrec = 64

// Classifier maps region BBVs onto representative regions.
//
// The registry is append-only: ids[i] is the region whose BBV is bbvs[i].
type Classifier struct {
	ids       []uint64
	bbvs      []Vector
	threshold *big.Float
}

// NewClassifier creates an empty Classifier.
func NewClassifier() *Classifier {
	return &Classifier{
		ids:       make([]uint64, 0),
		bbvs:      make([]Vector, 0),
		threshold: new(big.Float).SetPrec(distancePrec).SetFloat64(ThresholdDistance),
	}
}

// Classify returns the representative whose BBV is closest to candidate, if
// that distance is below ThresholdDistance. Otherwise candidate is registered
// as a new representative under proposedID, which is returned. The very first
// candidate is always registered as representative 0.
//
// Representatives are scanned in registration order and only a strictly
// smaller distance replaces the running minimum, so the first of several
// equally close representatives wins.
func (c *Classifier) Classify(candidate Vector, proposedID uint64) uint64 {
	if len(c.ids) == 0 {
		c.register(0, candidate)
		return 0
	}

	var best uint64
	var minDistance *big.Float
	for i, reference := range c.bbvs {
		d, ok := relativeDistance(candidate, reference)
		if !ok || d.Cmp(c.threshold) >= 0 {
			continue
		}
		if minDistance == nil || d.Cmp(minDistance) < 0 {
			minDistance = d
			best = c.ids[i]
		}
	}
	if minDistance != nil {
		return best
	}

	c.register(proposedID, candidate)
	return proposedID
}

// Len returns the number of registered representatives.
func (c *Classifier) Len() int {
	return len(c.ids)
}

// Representatives returns the registered representative region ids in
// registration order.
func (c *Classifier) Representatives() []uint64 {
	return append([]uint64(nil), c.ids...)
}

func (c *Classifier) register(id uint64, bbv Vector) {
	c.ids = append(c.ids, id)
	c.bbvs = append(c.bbvs, bbv.Clone())
}

// Distance returns the normalized relative distance of candidate from
// reference. Buckets where reference is zero are excluded from both the sum
// and the normalization. An all-zero reference has no defined distance and
// yields +Inf.
func Distance(candidate, reference Vector) float64 {
	d, ok := relativeDistance(candidate, reference)
	if !ok {
		return math.Inf(1)
	}
	f, _ := d.Float64()
	return f
}

// relativeDistance computes sum(|c-r|/r) / (len - nfactor) over buckets with
// r != 0. ok is false when every bucket is excluded.
func relativeDistance(candidate, reference Vector) (*big.Float, bool) {
	if len(candidate) != len(reference) {
		invariantf("Classify", "vector length mismatch: candidate %d, reference %d", len(candidate), len(reference))
	}

	sum := new(big.Float).SetPrec(distancePrec)
	term := new(big.Float).SetPrec(distancePrec)
	ref := new(big.Float).SetPrec(distancePrec)
	nfactor := 0
	for i, r := range reference {
		if r == 0 {
			nfactor++
			continue
		}
		cur := candidate[i]
		var diff uint64
		if cur > r {
			diff = cur - r
		} else {
			diff = r - cur
		}
		term.SetUint64(diff)
		ref.SetUint64(r)
		sum.Add(sum, term.Quo(term, ref))
	}

	counted := len(reference) - nfactor
	if counted == 0 {
		return nil, false
	}
	return sum.Quo(sum, ref.SetInt64(int64(counted))), true
}
