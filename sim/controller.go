package sim

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/smartsimpoints/smartsim/sim/trace"
)

// BoundaryKind distinguishes barrier entry from barrier exit events.
type BoundaryKind int

const (
	// BoundaryStart fires when a thread reaches a barrier; a new region starts.
	BoundaryStart BoundaryKind = iota
	// BoundaryEnd fires when a thread leaves a barrier.
	BoundaryEnd
)

func (k BoundaryKind) String() string {
	switch k {
	case BoundaryStart:
		return "start"
	case BoundaryEnd:
		return "end"
	}
	return "unknown"
}

// threadTable holds per-thread counters that application threads update
// without taking the controller lock. Fixed capacity, one slot per thread.
type threadTable struct {
	live        atomic.Int32
	counts      [MaxThreads]atomic.Uint64
	regionCount atomic.Uint64 // thread 0, current region
	bbvs        [MaxThreads]ThreadBBV
}

// LiveThreads implements BBVSource.
func (t *threadTable) LiveThreads() int {
	return int(t.live.Load())
}

// Dimension implements BBVSource.
func (t *threadTable) Dimension(threadID, dim int) uint64 {
	return t.bbvs[threadID].Dimension(dim)
}

// ControllerConfig groups the controller's output sinks.
type ControllerConfig struct {
	Log         *trace.RegionLog   // finalized region records; in-memory log if nil
	Diagnostics *trace.Diagnostics // operator trace lines; discarded if nil
}

// Controller decides, at every barrier, whether the region that starts there
// is simulated in detail or fast-forwarded, and finalizes the statistics of
// the region that just ended.
//
// Region boundaries are serialized by one mutex that covers the whole
// finalize-classify-record sequence. Instruction and BBV counters are updated
// lock-free by the application threads.
type Controller struct {
	mu sync.Mutex

	threads threadTable
	hosts   [MaxThreads]Host

	aggregator *Aggregator
	classifier *Classifier
	history    *HistoryHasher
	phases     *PhaseCache

	regions    []trace.RegionRecord // every started region; the last one is open until finalized
	log        *trace.RegionLog
	diag       *trace.Diagnostics
	stats      Stats
	prevTime   uint64
	prevCounts [MaxThreads]uint64
	finished   bool
}

// NewController creates a Controller with empty history.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		classifier: NewClassifier(),
		history:    NewHistoryHasher(),
		phases:     NewPhaseCache(),
		regions:    make([]trace.RegionRecord, 0),
		log:        cfg.Log,
		diag:       cfg.Diagnostics,
	}
	if c.log == nil {
		c.log = trace.NewRegionLog(nil)
	}
	c.aggregator = NewAggregator(&c.threads)
	return c
}

// StartThread registers an application thread and its host command handle.
// Thread ids are dense: the live thread count becomes max(count, threadID+1).
// Registering thread 0 starts the clock of region 0.
func (c *Controller) StartThread(threadID int, host Host) {
	c.mu.Lock()
	defer c.mu.Unlock()

	checkThreadID("StartThread", threadID)
	if host == nil {
		invariantf("StartThread", "nil host handle for thread %d", threadID)
	}
	if threadID == 0 && c.hosts[0] == nil && len(c.regions) == 0 {
		// Region 0 spans from thread 0's start, like its counters.
		c.prevTime = host.Command(CmdGetSimTime, 0, 0)
	}
	c.hosts[threadID] = host
	if int32(threadID+1) > c.threads.live.Load() {
		c.threads.live.Store(int32(threadID + 1))
	}
	logrus.Debugf("thread %d started, %d live", threadID, c.threads.live.Load())
}

// OnBasicBlockExecuted counts instructions retired by threadID. Lock-free.
func (c *Controller) OnBasicBlockExecuted(instructions uint32, threadID int) {
	checkThreadID("OnBasicBlockExecuted", threadID)
	c.threads.counts[threadID].Add(uint64(instructions))
	if threadID == 0 {
		c.threads.regionCount.Add(uint64(instructions))
	}
}

// OnBasicBlock counts a basic block at pc and folds it into the thread's BBV.
// Lock-free.
func (c *Controller) OnBasicBlock(threadID int, pc uint64, instructions uint32) {
	c.OnBasicBlockExecuted(instructions, threadID)
	c.threads.bbvs[threadID].Count(pc, uint64(instructions))
}

// OnBarrierBoundary handles a barrier event raised by threadID at pc.
// A BoundaryStart finalizes the open region and starts a new one; a
// BoundaryEnd is traced only.
func (c *Controller) OnBarrierBoundary(kind BoundaryKind, pc uint64, threadID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	checkThreadID("OnBarrierBoundary", threadID)
	c.hostFor("OnBarrierBoundary", threadID)
	if pc == 0 {
		invariantf("OnBarrierBoundary", "zero program counter from thread %d", threadID)
	}
	if c.finished {
		invariantf("OnBarrierBoundary", "barrier event from thread %d after program end", threadID)
	}

	switch kind {
	case BoundaryStart:
		c.startRegion(pc, threadID)
	case BoundaryEnd:
		logrus.Debugf("barrier end at %#x on thread %d", pc, threadID)
	default:
		invariantf("OnBarrierBoundary", "unknown boundary kind %d", int(kind))
	}
}

// Finish finalizes the open region, if any, at program end. Further barrier
// events are invariant violations. Idempotent.
func (c *Controller) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return
	}
	c.finished = true
	if len(c.regions) > 0 {
		c.finalize(0)
	}
	logrus.Infof("sampling finished: %d regions, %d detailed", len(c.regions), c.stats.DetailedRegions)
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		c.phases.Each(func(hash uint64, regions []uint64) bool {
			logrus.Debugf("phase %#x: representative %d, %d regions", hash, regions[0], len(regions))
			return true
		})
	}
}

// Records returns the finalized region records in order.
func (c *Controller) Records() []trace.RegionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Records()
}

// Pending returns the open (not yet finalized) region, if any.
func (c *Controller) Pending() (trace.RegionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.regions)
	if n == 0 || n == c.log.Len() {
		return trace.RegionRecord{}, false
	}
	return c.regions[n-1].Clone(), true
}

// Stats returns a snapshot of the global counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.RegionsStarted = uint64(len(c.regions))
	s.Representatives = c.classifier.Len()
	s.Phases = c.phases.Len()
	s.RegionInstructions = c.threads.regionCount.Load()
	return s
}

// startRegion finalizes the open region, classifies the new one and switches
// the host into the chosen mode. Caller holds c.mu.
func (c *Controller) startRegion(pc uint64, threadID int) {
	regionID := uint64(len(c.regions))

	if regionID > 0 {
		c.finalize(threadID)
	}

	c.threads.regionCount.Store(0)

	c.diag.Boundary(regionID, pc, threadID)
	rec := trace.RegionRecord{
		RegionID: regionID,
		ThreadID: threadID,
		StartPC:  pc,
	}

	bbv := c.aggregator.ComputeRegionBBV()
	c.diag.GlobalBBV(bbv, NumDimensions)
	rec.BBVRepresentativeID = c.classifier.Classify(bbv, regionID)

	rec.Hash = c.history.PushAndHash(rec.BBVRepresentativeID)
	rec.HistoryQueue = c.history.Snapshot()
	c.diag.HistoryQueue(rec.HistoryQueue)
	rec.RepresentativeID = c.phases.Resolve(rec.Hash, regionID)
	c.diag.Representative(regionID, rec.RepresentativeID)

	primary := c.hostFor("startRegion", 0)
	if rec.RepresentativeID >= regionID {
		rec.Mode = trace.ModeDetailed
		primary.Command(CmdSetInstrumentMode, uint64(InstrumentDetailed), 0)
		primary.Command(CmdROIStart, 0, 0)
		c.stats.DetailedRegions++
	} else {
		rec.Mode = trace.ModeFastForward
		primary.Command(CmdSetInstrumentMode, uint64(InstrumentFastForward), 0)
		primary.Command(CmdROIEnd, 0, 0)
	}
	c.diag.Mode(rec.Mode)
	logrus.Debugf("region %d: bbv-rep=%d hash=%#x rep=%d mode=%s",
		regionID, rec.BBVRepresentativeID, rec.Hash, rec.RepresentativeID, rec.Mode)

	c.regions = append(c.regions, rec)
}

// finalize fills in the statistics of the open region and appends it to the
// log. threadID's host handle supplies the timestamp. Caller holds c.mu.
func (c *Controller) finalize(threadID int) {
	rec := &c.regions[len(c.regions)-1]
	c.gatherInstructions(rec)

	now := c.hostFor("finalize", threadID).Command(CmdGetSimTime, 0, 0)
	if now < c.prevTime {
		invariantf("finalize", "host time went backwards: %d < %d", now, c.prevTime)
	}
	elapsed := now - c.prevTime
	c.prevTime = now
	rec.ActualTime = elapsed

	switch rec.Mode {
	case trace.ModeDetailed:
		rec.EstimatedTime = float64(elapsed)
	case trace.ModeFastForward:
		rep := &c.regions[rec.RepresentativeID]
		if rep.IPC <= 0 {
			logrus.Warnf("region %d: representative %d has no IPC, estimated time set to 0",
				rec.RegionID, rec.RepresentativeID)
		}
		rec.EstimatedTime = estimateTime(rec.TotalInstructions, rep.IPC)
	}
	if elapsed == 0 {
		logrus.Warnf("region %d: host reported zero elapsed time, IPC and error set to 0", rec.RegionID)
	}
	rec.IPC = computeIPC(rec.TotalInstructions, elapsed)
	rec.Error = relativeError(elapsed, rec.EstimatedTime)

	c.stats.accumulate(rec)
	c.diag.Finalized(rec)
	if err := c.log.Append(*rec); err != nil {
		if errors.Is(err, trace.ErrNonFinite) {
			invariantf("finalize", "%v", err)
		}
		logrus.Warnf("region log: %v", err)
	}
}

// gatherInstructions records per-thread and total instruction deltas since the
// previous boundary.
func (c *Controller) gatherInstructions(rec *trace.RegionRecord) {
	live := c.threads.LiveThreads()
	rec.ThreadInstructions = make([]uint64, live)
	rec.TotalInstructions = 0
	for tid := 0; tid < live; tid++ {
		cur := c.threads.counts[tid].Load()
		if cur < c.prevCounts[tid] {
			invariantf("finalize", "thread %d instruction count decreased from %d to %d", tid, c.prevCounts[tid], cur)
		}
		delta := cur - c.prevCounts[tid]
		rec.ThreadInstructions[tid] = delta
		rec.TotalInstructions += delta
		c.prevCounts[tid] = cur
	}
	rec.ThreadZeroInstructions = c.threads.regionCount.Load()
}

// hostFor returns threadID's registered host handle.
func (c *Controller) hostFor(op string, threadID int) Host {
	h := c.hosts[threadID]
	if h == nil {
		invariantf(op, "thread %d has no registered host handle", threadID)
	}
	return h
}

func checkThreadID(op string, threadID int) {
	if threadID < 0 || threadID >= MaxThreads {
		invariantf(op, "thread id %d outside [0, %d)", threadID, MaxThreads)
	}
}
