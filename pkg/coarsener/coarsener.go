package coarsener

import (
	"context"
	"time"

	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/lintang-b-s/hgpart/pkg/metrics"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

type Strategy uint8

const (
	// FirstChoice scans every vertex for its best connected candidate.
	FirstChoice Strategy = iota
	// Model2D uses FirstChoice below Options.HedgeThreshold vertices and hyperedge merging above.
	Model2D
	// Restricted only merges vertices sharing a block of the level's stored partition, never across ranks.
	Restricted
)

func GetStrategy(name string) Strategy {
	if name == "model-2d" {
		return Model2D
	}
	return FirstChoice
}

func (s Strategy) String() string {
	switch s {
	case Model2D:
		return "model-2d"
	case Restricted:
		return "restricted"
	default:
		return "first-choice"
	}
}

type Options struct {
	Strategy          Strategy
	ReductionRatio    float64
	MinNodes          int
	VisitOrder        pkg.VisitOrder
	RequestOrder      pkg.RequestOrder
	DivByCluWt        bool
	DivByHedgeLen     bool
	HedgeThreshold    int
	MinReductionRatio float64
	Seed              uint64
	Debug             bool
}

// Coarsener builds the next coarser level of a distributed hypergraph.
type Coarsener struct {
	opts        Options
	comm        comm.Communicator
	log         *zap.Logger
	rng         *rand.Rand
	reconciler  *reconciler
	table       *MatchRequestTable
	percentile  int
	maxVertexWt int
	level       int
}

func NewCoarsener(c comm.Communicator, opts Options, log *zap.Logger) *Coarsener {
	if opts.MinReductionRatio <= 0 {
		opts.MinReductionRatio = pkg.DEFAULT_MIN_REDUCTION_RATIO
	}
	rng := rand.New(rand.NewSource(opts.Seed + uint64(c.Rank())*7919))
	return &Coarsener{
		opts: opts,
		comm: c,
		log:  log.With(zap.Int("rank", c.Rank()), zap.Stringer("strategy", opts.Strategy)),
		rng:  rng,
		reconciler: &reconciler{
			comm:         c,
			requestOrder: opts.RequestOrder,
			rng:          rng,
		},
		table:       NewMatchRequestTable(),
		percentile:  100,
		maxVertexWt: pkg.LARGE_CONSTANT,
	}
}

// SetPercentile makes matching ignore hyperedges longer than the given percentile of hyperedge lengths.
func (co *Coarsener) SetPercentile(p int) {
	co.percentile = p
}

func (co *Coarsener) SetMaxVertexWeight(w int) {
	co.maxVertexWt = w
}

func (co *Coarsener) MaxVertexWeight() int {
	return co.maxVertexWt
}

// WithStrategy returns a coarsener sharing the random stream and weight cap of co
// that matches with strategy s.
func (co *Coarsener) WithStrategy(s Strategy) *Coarsener {
	opts := co.opts
	opts.Strategy = s
	return &Coarsener{
		opts:        opts,
		comm:        co.comm,
		log:         co.log.With(zap.Stringer("strategy", s)),
		rng:         co.rng,
		reconciler:  co.reconciler,
		table:       NewMatchRequestTable(),
		percentile:  co.percentile,
		maxVertexWt: co.maxVertexWt,
	}
}

func (co *Coarsener) ReleaseMemory() {
	co.table = NewMatchRequestTable()
	co.level = 0
}

func (co *Coarsener) strategyFor(h *datastructure.Hypergraph) Strategy {
	if co.opts.Strategy == Model2D {
		if h.TotalVertices() >= co.opts.HedgeThreshold {
			return Model2D
		}
		return FirstChoice
	}
	return co.opts.Strategy
}

// Coarsen returns the next level of h, or nil when h is small enough or asked
// not to be coarsened further. every rank must call it.
func (co *Coarsener) Coarsen(ctx context.Context, h *datastructure.Hypergraph) (*datastructure.Hypergraph, error) {
	if h.TotalVertices() < co.opts.MinNodes || h.DontCoarsen() {
		return nil, nil
	}
	start := time.Now()

	strategy := co.strategyFor(h)
	if strategy == Restricted && h.NumPartitions() < 1 {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "restricted coarsening needs a stored partition")
	}

	maxLen, err := h.PercentileLength(ctx, co.comm, co.percentile)
	if err != nil {
		return nil, err
	}
	view, err := h.IncidentHyperedges(ctx, co.comm, maxLen)
	if err != nil {
		return nil, err
	}

	co.table.Clear()
	pc := newProcessContext(h, view, co.table, co.maxVertexWt)

	switch strategy {
	case FirstChoice:
		co.firstChoice(pc, nil)
	case Model2D:
		co.hedgeMatch(pc)
	case Restricted:
		pc.partition = h.Partition(0)
		co.firstChoice(pc, pc.sameBlock)
	}

	if strategy != Restricted {
		if err := co.reconciler.reconcile(ctx, pc); err != nil {
			return nil, err
		}
	}

	clusterDist, stop, err := co.reconciler.setClusterIndices(ctx, pc, co.opts.MinReductionRatio)
	if err != nil {
		return nil, err
	}

	if co.opts.Debug {
		if err := co.checkClusterWeights(pc); err != nil {
			return nil, err
		}
	}

	coarse, err := datastructure.Contract(ctx, co.comm, h, clusterDist, strategy == Restricted)
	if err != nil {
		return nil, err
	}
	coarse.SetDontCoarsen(stop)

	if co.opts.Debug {
		if err := co.checkLevel(ctx, h, coarse); err != nil {
			return nil, err
		}
	}

	co.level++
	metrics.CoarseningLevels.Inc()
	metrics.ClustersCreated.Add(float64(pc.clusterIndex))
	co.log.Debug("coarsened level",
		zap.Int("level", co.level),
		zap.Int("vertices", h.TotalVertices()),
		zap.Int("clusters", coarse.TotalVertices()),
		zap.Int("localRequests", co.table.Size()),
		zap.Float64("reduction", float64(h.TotalVertices())/float64(coarse.TotalVertices())),
		zap.Bool("stop", stop),
		zap.Duration("took", time.Since(start)),
	)

	co.table.Clear()
	return coarse, nil
}
