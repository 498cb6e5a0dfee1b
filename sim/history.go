package sim

// HistoryDepth is the number of recent representative ids that define a phase.
const HistoryDepth = 4

// hashCombineConstant is the 32-bit golden-ratio constant of boost::hash_combine.
const hashCombineConstant = 0x9e3779b9

// HistoryHasher keeps the last HistoryDepth representative ids and folds them
// into a phase hash.
type HistoryHasher struct {
	queue []uint64
}

// NewHistoryHasher creates an empty HistoryHasher.
func NewHistoryHasher() *HistoryHasher {
	return &HistoryHasher{queue: make([]uint64, 0, HistoryDepth)}
}

// PushAndHash appends repID, evicting the oldest id when full, and returns the
// hash of the resulting queue.
func (h *HistoryHasher) PushAndHash(repID uint64) uint64 {
	if len(h.queue) == HistoryDepth {
		copy(h.queue, h.queue[1:])
		h.queue = h.queue[:HistoryDepth-1]
	}
	h.queue = append(h.queue, repID)
	return HashHistory(h.queue)
}

// Snapshot returns a copy of the queue, oldest first.
func (h *HistoryHasher) Snapshot() []uint64 {
	return append([]uint64(nil), h.queue...)
}

// HashHistory is the rolling hash of a history window: seeded with the window
// length, each id is combined in order with
// hash ^= id + 0x9e3779b9 + (hash << 6) + (hash >> 2).
// Pure function of the window contents and order.
func HashHistory(queue []uint64) uint64 {
	hash := uint64(len(queue))
	for _, id := range queue {
		hash ^= id + hashCombineConstant + (hash << 6) + (hash >> 2)
	}
	return hash
}
