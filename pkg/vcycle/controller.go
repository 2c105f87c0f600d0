package vcycle

import (
	"context"
	"math"
	"time"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/lintang-b-s/hgpart/pkg/metrics"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"go.uber.org/zap"
)

type Coarsener interface {
	Coarsen(ctx context.Context, h *datastructure.Hypergraph) (*datastructure.Hypergraph, error)
	SetPercentile(p int)
	SetMaxVertexWeight(w int)
	ReleaseMemory()
}

type Refiner interface {
	Refine(ctx context.Context, h *datastructure.Hypergraph) error
	SetPercentile(p int)
	SetMaximumPartWeight(w int)
	ReleaseMemory()
}

type SeqPartitioner interface {
	RunSeqPartitioner(ctx context.Context, h *datastructure.Hypergraph) error
	SetMaximumPartWeight(w int)
}

type Options struct {
	NumParts                 int
	NumParaRuns              int
	BalanceConstraint        float64
	MaxVertexWeightFraction  float64
	StartPercentile          int
	PercentileIncrement      int
	ApproxRefine             bool
	VCycle                   bool
	LimitOnCycles            int
	LimAsPercentOfCut        float64
	KeepPartitionsWithin     float64
	ReductionInKeepThreshold float64

	// ShuffleVertices moves the vertices to random ranks before every run.
	ShuffleVertices bool
	// ShuffleByPartition gathers the vertices of a block onto as few ranks as
	// possible before every nested V-cycle, so restricted matching can merge them.
	ShuffleByPartition bool
	Seed               uint64
}

// Controller runs the multilevel partitioner on one rank: coarsen, partition
// the coarsest level, then project and refine back up, with nested V-cycles on
// the smaller levels. every rank runs it in lockstep.
type Controller struct {
	opts Options
	comm comm.Communicator
	log  *zap.Logger

	hypergraph *datastructure.Hypergraph
	coarsener  Coarsener
	restricted Coarsener
	refiner    Refiner
	seq        SeqPartitioner

	levels      *datastructure.Stack[*datastructure.Hypergraph]
	percentiles *datastructure.Stack[int]

	maxPartWt   int
	maxVertexWt int

	bestCutsize   int
	worstCutsize  int
	totalCutsize  int
	bestPartition []int

	stats   Stats
	tracker statusTracker
}

// NewController wires the collaborators of one rank. restricted coarsens inside
// the blocks of a level's partition and drives the nested V-cycles.
func NewController(c comm.Communicator, opts Options, h *datastructure.Hypergraph,
	coarsener, restricted Coarsener, refiner Refiner, seq SeqPartitioner, log *zap.Logger) *Controller {
	return &Controller{
		opts:         opts,
		comm:         c,
		log:          log.With(zap.Int("rank", c.Rank())),
		hypergraph:   h,
		coarsener:    coarsener,
		restricted:   restricted,
		refiner:      refiner,
		seq:          seq,
		levels:       datastructure.NewStack[*datastructure.Hypergraph](),
		percentiles:  datastructure.NewStack[int](),
		bestCutsize:  math.MaxInt,
		worstCutsize: 0,
	}
}

// SetWeightConstraints derives the block weight cap from the balance constraint
// and the cluster weight cap from the block cap.
func (c *Controller) SetWeightConstraints() {
	ave := float64(c.hypergraph.TotalWeight()) / float64(c.opts.NumParts)
	c.maxPartWt = int(math.Floor(ave * (1 + c.opts.BalanceConstraint)))
	c.maxVertexWt = int(math.Floor(float64(c.maxPartWt) * c.opts.MaxVertexWeightFraction))

	c.coarsener.SetMaxVertexWeight(c.maxVertexWt)
	if c.restricted != nil {
		c.restricted.SetMaxVertexWeight(c.maxVertexWt)
	}
	c.refiner.SetMaximumPartWeight(c.maxPartWt)
	c.seq.SetMaximumPartWeight(c.maxPartWt)
	c.tracker.update(func(s *Status) {
		s.MaxPartWt = c.maxPartWt
		s.MaxVertexWt = c.maxVertexWt
	})
}

func (c *Controller) MaxPartWeight() int {
	return c.maxPartWt
}

func (c *Controller) MaxVertexWeight() int {
	return c.maxVertexWt
}

// RunPartitioner performs NumParaRuns independent multilevel runs and keeps the best partition.
func (c *Controller) RunPartitioner(ctx context.Context) error {
	if c.maxPartWt == 0 {
		c.SetWeightConstraints()
	}
	if err := c.comm.Barrier(ctx); err != nil {
		return err
	}
	start := time.Now()
	h := c.hypergraph
	c.tracker.update(func(s *Status) {
		s.StartedAt = start
		s.Runs = c.opts.NumParaRuns
	})

	for run := 0; run < c.opts.NumParaRuns; run++ {
		if util.StopConcurrentOperation(ctx) {
			return ctx.Err()
		}
		runStart := time.Now()
		accumulator := 1.0
		c.stats.vcycleGain = 0
		c.tracker.update(func(s *Status) { s.Run = run })

		work := h
		if c.opts.ShuffleVertices && c.comm.Size() > 1 {
			var err error
			work, err = h.Redistribute(ctx, c.comm, h.RandomOrder(c.opts.Seed+uint64(run)))
			if err != nil {
				return err
			}
		}
		c.levels.Push(work)
		c.percentiles.Push(c.opts.StartPercentile)

		c.setPhase("coarsen")
		phase := time.Now()
		if err := c.coarsenLoop(ctx, c.coarsener, work, c.opts.StartPercentile); err != nil {
			return err
		}
		c.coarsener.ReleaseMemory()
		if err := c.comm.Barrier(ctx); err != nil {
			return err
		}
		c.stats.CoarsenTime += time.Since(phase)
		metrics.PhaseDuration.WithLabelValues("coarsen").Observe(time.Since(phase).Seconds())

		c.setPhase("initial_partition")
		phase = time.Now()
		coarsest := c.levels.Pop()
		c.percentiles.Pop()
		if err := c.seq.RunSeqPartitioner(ctx, coarsest); err != nil {
			return err
		}
		if err := c.comm.Barrier(ctx); err != nil {
			return err
		}
		c.stats.InitialTime += time.Since(phase)

		c.setPhase("refine")
		if err := c.uncoarsen(ctx, coarsest, 0, &accumulator, true); err != nil {
			return err
		}
		if work != h {
			if err := h.ProjectPartitions(ctx, c.comm, work); err != nil {
				return err
			}
		}

		cut, err := h.KeepBestPartition()
		if err != nil {
			return err
		}
		c.recordRun(h, cut)
		if err := c.comm.Barrier(ctx); err != nil {
			return err
		}
		c.stats.RunTimes = append(c.stats.RunTimes, time.Since(runStart))
		c.stats.RunCuts = append(c.stats.RunCuts, cut)
		c.stats.VCycleGains = append(c.stats.VCycleGains, c.stats.vcycleGain)
		if c.comm.Rank() == 0 {
			c.log.Info("finished run",
				zap.Int("run", run),
				zap.Int("cut", cut),
				zap.Int("bestCut", c.bestCutsize),
				zap.Int("vcycleGain", c.stats.vcycleGain),
				zap.Duration("took", time.Since(runStart)),
			)
		}

		h.SetNumberOfPartitions(0)
	}

	c.stats.TotalTime = time.Since(start)
	c.setPhase("done")
	return nil
}

func (c *Controller) recordRun(h *datastructure.Hypergraph, cut int) {
	if cut < c.bestCutsize {
		c.bestCutsize = cut
		c.bestPartition = append(c.bestPartition[:0], h.Partition(0)...)
		metrics.BestCut.Set(float64(cut))
		c.tracker.update(func(s *Status) { s.BestCut = cut })
	}
	if cut > c.worstCutsize {
		c.worstCutsize = cut
	}
	c.totalCutsize += cut
}

// coarsenLoop pushes coarser levels of finer until co declines to go on. each
// level is pushed together with the percentile its coarsening will use.
func (c *Controller) coarsenLoop(ctx context.Context, co Coarsener, finer *datastructure.Hypergraph, percentile int) error {
	for {
		co.SetPercentile(percentile)
		coarse, err := co.Coarsen(ctx, finer)
		if err != nil {
			return err
		}
		if coarse == nil {
			return nil
		}
		percentile = min(percentile+c.opts.PercentileIncrement, 100)
		c.levels.Push(coarse)
		c.percentiles.Push(percentile)
		finer = coarse
	}
}

// uncoarsen projects and refines coarse back up until the level stack holds
// stopAt levels. with nested set, small enough levels get extra V-cycles.
func (c *Controller) uncoarsen(ctx context.Context, coarse *datastructure.Hypergraph, stopAt int,
	accumulator *float64, nested bool) error {

	origVertices := c.hypergraph.TotalVertices()
	for c.levels.Len() > stopAt {
		coarse.RemoveBadPartitions(c.opts.KeepPartitionsWithin * *accumulator)
		*accumulator *= c.opts.ReductionInKeepThreshold

		percentile := c.percentiles.Pop()
		finer := c.levels.Pop()

		phase := time.Now()
		if err := finer.ProjectPartitions(ctx, c.comm, coarse); err != nil {
			return err
		}
		if c.opts.ApproxRefine {
			c.refiner.SetPercentile(percentile)
		}
		if err := c.refiner.Refine(ctx, finer); err != nil {
			return err
		}
		c.refiner.ReleaseMemory()
		coarse.Release()
		if err := c.comm.Barrier(ctx); err != nil {
			return err
		}
		c.stats.RefineTime += time.Since(phase)

		if nested && c.opts.VCycle && c.restricted != nil && finer.TotalVertices() <= origVertices/4 {
			if err := c.nestedVCycle(ctx, finer); err != nil {
				return err
			}
		}
		coarse = finer
	}
	return nil
}

// nestedVCycle re-coarsens level inside the blocks of its best partition,
// partitions and refines it again, and repeats while the cut improves by at
// least LimAsPercentOfCut of the starting cut. level ends with the best
// partition seen, so its cut never grows.
func (c *Controller) nestedVCycle(ctx context.Context, level *datastructure.Hypergraph) error {
	if c.opts.LimitOnCycles <= 0 {
		return nil
	}

	firstCut, err := level.KeepBestPartition()
	if err != nil {
		return err
	}
	recorded := append([]int(nil), level.Partition(0)...)
	recordedCut := firstCut
	minGain := int(math.Floor(c.opts.LimAsPercentOfCut * float64(firstCut)))
	numInStack := c.levels.Len()

	for iteration := 1; ; iteration++ {
		work := level
		if c.opts.ShuffleByPartition && c.comm.Size() > 1 {
			ids, err := level.BlockOrder(ctx, c.comm)
			if err != nil {
				return err
			}
			if work, err = level.Redistribute(ctx, c.comm, ids); err != nil {
				return err
			}
		}

		c.levels.Push(work)
		c.percentiles.Push(100)
		phase := time.Now()
		if err := c.coarsenLoop(ctx, c.restricted, work, 100); err != nil {
			return err
		}
		c.restricted.ReleaseMemory()
		if err := c.comm.Barrier(ctx); err != nil {
			return err
		}
		c.stats.CoarsenTime += time.Since(phase)

		coarsest := c.levels.Pop()
		c.percentiles.Pop()
		if coarsest == work {
			break
		}

		phase = time.Now()
		coarsest.SetNumberOfPartitions(0)
		if err := c.seq.RunSeqPartitioner(ctx, coarsest); err != nil {
			return err
		}
		if err := c.comm.Barrier(ctx); err != nil {
			return err
		}
		c.stats.InitialTime += time.Since(phase)

		accumulator := 1.0
		if err := c.uncoarsen(ctx, coarsest, numInStack, &accumulator, false); err != nil {
			return err
		}
		if work != level {
			if err := level.ProjectPartitions(ctx, c.comm, work); err != nil {
				return err
			}
		}

		secondCut, err := level.KeepBestPartition()
		if err != nil {
			return err
		}
		diff := firstCut - secondCut
		c.stats.VCycleTrace = append(c.stats.VCycleTrace, secondCut)
		if diff > 0 {
			recorded = append(recorded[:0], level.Partition(0)...)
			recordedCut = secondCut
			firstCut = secondCut
			c.stats.vcycleGain += diff
			metrics.VCycleGain.Add(float64(diff))
			c.tracker.update(func(s *Status) { s.VCycleGain += diff })
		}
		if diff <= 0 || diff < minGain || iteration >= c.opts.LimitOnCycles {
			break
		}
	}

	level.SetPartitions([][]int{recorded}, []int{recordedCut})
	return nil
}

// BestPartition returns the block of every local vertex in the best partition found.
func (c *Controller) BestPartition() []int {
	return c.bestPartition
}

func (c *Controller) BestCutsize() int {
	return c.bestCutsize
}

// StoreBestPartition attaches the best partition to the input hypergraph.
func (c *Controller) StoreBestPartition() {
	c.hypergraph.SetPartitions([][]int{c.bestPartition}, []int{c.bestCutsize})
}
