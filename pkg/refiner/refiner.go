package refiner

import (
	"context"
	"math"
	"time"

	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/lintang-b-s/hgpart/pkg/metrics"
	"go.uber.org/zap"
)

type Options struct {
	NumParts     int
	MaxPasses    int
	ApproxRefine bool
}

// Refiner is a distributed greedy k-way refiner. overweight blocks are drained
// first, then every pass moves vertices in one direction only (to higher block
// ids on even passes, lower on odd ones) so that two ranks never swap a pair of
// vertices past each other.
type Refiner struct {
	opts       Options
	comm       comm.Communicator
	log        *zap.Logger
	percentile int
	maxPartWt  int
}

func NewRefiner(c comm.Communicator, opts Options, log *zap.Logger) *Refiner {
	return &Refiner{
		opts:       opts,
		comm:       c,
		log:        log.With(zap.Int("rank", c.Rank())),
		percentile: 100,
		maxPartWt:  pkg.LARGE_CONSTANT,
	}
}

// SetPercentile limits the gain computation to hyperedges no longer than the
// given percentile length. it has no effect unless approximate refinement is on.
func (r *Refiner) SetPercentile(p int) {
	r.percentile = p
}

func (r *Refiner) SetMaximumPartWeight(w int) {
	r.maxPartWt = w
}

func (r *Refiner) ReleaseMemory() {
	r.percentile = 100
}

// Refine improves every partition stored on h and updates its cut. every rank must call it.
func (r *Refiner) Refine(ctx context.Context, h *datastructure.Hypergraph) error {
	start := time.Now()
	maxLen := math.MaxInt
	if r.opts.ApproxRefine {
		var err error
		maxLen, err = h.PercentileLength(ctx, r.comm, r.percentile)
		if err != nil {
			return err
		}
	}
	view, err := h.IncidentHyperedges(ctx, r.comm, maxLen)
	if err != nil {
		return err
	}

	for i := 0; i < h.NumPartitions(); i++ {
		before := h.PartitionCut(i)
		if err := r.refinePartition(ctx, h, view, i); err != nil {
			return err
		}
		r.log.Debug("refined partition",
			zap.Int("partition", i),
			zap.Int("vertices", h.TotalVertices()),
			zap.Int("cutBefore", before),
			zap.Int("cutAfter", h.PartitionCut(i)),
		)
	}
	metrics.PhaseDuration.WithLabelValues("refine_level").Observe(time.Since(start).Seconds())
	return nil
}

func (r *Refiner) refinePartition(ctx context.Context, h *datastructure.Hypergraph,
	view *datastructure.IncidentView, i int) error {

	part := h.Partition(i)
	cut := h.PartitionCut(i)
	saved := make([]int, len(part))
	gc := newGainCalculator(r.opts.NumParts)

	moved, err := r.rebalance(ctx, h, view, i, gc)
	if err != nil {
		return err
	}
	if moved {
		if err := h.CalcCutsizes(ctx, r.comm); err != nil {
			return err
		}
		cut = h.PartitionCut(i)
	}

	nonImproving := 0
	for pass := 0; pass < r.opts.MaxPasses && nonImproving < 2; pass++ {
		remote, err := h.RemotePinParts(ctx, r.comm, view, i)
		if err != nil {
			return err
		}
		partWts, err := h.PartWeights(ctx, r.comm, i, r.opts.NumParts)
		if err != nil {
			return err
		}

		partOf := func(v int) int {
			if h.IsLocal(v) {
				return part[v-h.MinVertexIndex()]
			}
			return remote[v]
		}
		upward := pass%2 == 0
		moves := gc.proposeMoves(h, view, part, partOf, upward)

		budgets, err := r.budgets(ctx, moveWeights(moves, r.opts.NumParts), partWts)
		if err != nil {
			return err
		}

		copy(saved, part)
		applied := gc.applyMoves(h, view, part, partOf, moves, budgets)
		totalApplied, err := comm.AllReduceSum(ctx, r.comm, applied)
		if err != nil {
			return err
		}
		if totalApplied == 0 {
			nonImproving++
			continue
		}

		if err := h.CalcCutsizes(ctx, r.comm); err != nil {
			return err
		}
		newCut := h.PartitionCut(i)
		switch {
		case newCut > cut:
			copy(part, saved)
			h.SetPartitionCut(i, cut)
			nonImproving++
		case newCut == cut:
			nonImproving++
			metrics.RefinementMoves.Add(float64(applied))
		default:
			cut = newCut
			nonImproving = 0
			metrics.RefinementMoves.Add(float64(applied))
		}
	}
	return nil
}

// budgets splits the room left in every block among the ranks in rank order:
// rank r may move in what is left after the proposals of ranks below it.
func (r *Refiner) budgets(ctx context.Context, proposals, partWts []int) ([]int, error) {
	all, err := r.comm.AllGather(ctx, proposals)
	if err != nil {
		return nil, err
	}

	budgets := make([]int, len(proposals))
	for q := range budgets {
		room := r.maxPartWt - partWts[q]
		for s := 0; s < r.comm.Rank(); s++ {
			room -= all[s][q]
		}
		budgets[q] = max(0, min(room, proposals[q]))
	}
	return budgets, nil
}
