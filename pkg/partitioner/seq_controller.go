package partitioner

import (
	"context"
	"math"
	"time"

	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/lintang-b-s/hgpart/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

type SeqOptions struct {
	NumParts          int
	NumSeqRuns        int
	AcceptProp        float64
	SourceSinkRate    float64
	FlowSeeds         int
	MaxPasses         int
	Workers           int
	BalanceConstraint float64
	Seed              uint64
}

// SeqController partitions the coarsest level. every rank gathers the level and
// computes the same partitions from the same seeds, so no result is exchanged.
type SeqController struct {
	opts      SeqOptions
	comm      comm.Communicator
	log       *zap.Logger
	maxPartWt int
	calls     uint64
}

func NewSeqController(c comm.Communicator, opts SeqOptions, log *zap.Logger) *SeqController {
	return &SeqController{
		opts:      opts,
		comm:      c,
		log:       log.With(zap.Int("rank", c.Rank())),
		maxPartWt: pkg.LARGE_CONSTANT,
	}
}

func (sc *SeqController) SetMaximumPartWeight(w int) {
	sc.maxPartWt = w
}

// bisectionImbalance spreads the balance constraint over the bisection levels.
func (sc *SeqController) bisectionImbalance() float64 {
	levels := math.Ceil(math.Log2(float64(sc.opts.NumParts)))
	if levels < 1 {
		levels = 1
	}
	return sc.opts.BalanceConstraint / levels
}

// PartitionSerial computes one k-way partition of graph and its cut.
func (sc *SeqController) PartitionSerial(graph *datastructure.SerialHypergraph, rng *rand.Rand) ([]int, int) {
	rb := NewRecursiveBisection(graph, sc.opts.NumParts, sc.opts.SourceSinkRate, sc.bisectionImbalance(),
		sc.opts.FlowSeeds, sc.opts.Workers, rng, sc.log)
	part := rb.Partition()

	kr := newKwayRefiner(graph, sc.opts.NumParts, sc.maxPartWt, part)
	kr.rebalance()
	kr.refine(sc.opts.MaxPasses)
	return kr.part, graph.CutSize(kr.part)
}

// RunSeqPartitioner attaches to h every partition of the seeded runs whose cut
// is within AcceptProp of the best one. every rank must call it.
func (sc *SeqController) RunSeqPartitioner(ctx context.Context, h *datastructure.Hypergraph) error {
	start := time.Now()
	graph, err := datastructure.GatherSerial(ctx, sc.comm, h)
	if err != nil {
		return err
	}

	parts := make([][]int, sc.opts.NumSeqRuns)
	cuts := make([]int, sc.opts.NumSeqRuns)
	best := math.MaxInt
	for run := range parts {
		rng := rand.New(rand.NewSource(sc.opts.Seed + sc.calls*1000003 + uint64(run)))
		parts[run], cuts[run] = sc.PartitionSerial(graph, rng)
		best = min(best, cuts[run])
	}
	sc.calls++

	lo, hi := h.MinVertexIndex(), h.MaxVertexIndex()
	var (
		kept     [][]int
		keptCuts []int
	)
	for run, part := range parts {
		if float64(cuts[run]) <= float64(best)*sc.opts.AcceptProp {
			kept = append(kept, part[lo:hi])
			keptCuts = append(keptCuts, cuts[run])
		}
	}
	h.SetPartitions(kept, keptCuts)

	metrics.PhaseDuration.WithLabelValues("initial_partition").Observe(time.Since(start).Seconds())
	sc.log.Debug("initial partitions",
		zap.Int("vertices", graph.NumVertices()),
		zap.Int("hedges", graph.NumHedges()),
		zap.Int("bestCut", best),
		zap.Int("kept", len(kept)),
	)
	return nil
}
