package vcycle

import (
	"context"
	"testing"
	"time"

	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/coarsener"
	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/lintang-b-s/hgpart/pkg/partitioner"
	"github.com/lintang-b-s/hgpart/pkg/refiner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/exp/rand"
)

func runRanks(t *testing.T, n int, fn func(ctx context.Context, c comm.Communicator) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	require.NoError(t, comm.Run(ctx, n, fn))
}

func randomHypergraph(seed uint64, n, m int) ([]int, [][]int, []int) {
	rng := rand.New(rand.NewSource(seed))
	weights := make([]int, n)
	for v := range weights {
		weights[v] = 1 + rng.Intn(3)
	}
	hedges := make([][]int, m)
	hedgeWeights := make([]int, m)
	for e := range hedges {
		// mostly local hyperedges so the graph has a structure worth finding
		size := 2 + rng.Intn(3)
		base := rng.Intn(n)
		seen := make(map[int]bool)
		for len(hedges[e]) < size {
			v := (base + rng.Intn(12)) % n
			if !seen[v] {
				seen[v] = true
				hedges[e] = append(hedges[e], v)
			}
		}
		hedgeWeights[e] = 1 + rng.Intn(2)
	}
	return weights, hedges, hedgeWeights
}

func coarsenerOptions() coarsener.Options {
	return coarsener.Options{
		Strategy:          coarsener.FirstChoice,
		ReductionRatio:    1.75,
		MinNodes:          20,
		VisitOrder:        pkg.RANDOM_ORDER,
		RequestOrder:      pkg.RANDOM_REQUEST_ORDER,
		DivByHedgeLen:     true,
		HedgeThreshold:    pkg.DEFAULT_HEDGE_THRESHOLD,
		MinReductionRatio: pkg.DEFAULT_MIN_REDUCTION_RATIO,
		Seed:              3,
		Debug:             true,
	}
}

func controllerOptions(numParts int) Options {
	return Options{
		NumParts:                 numParts,
		NumParaRuns:              2,
		BalanceConstraint:        0.1,
		MaxVertexWeightFraction:  pkg.DEFAULT_MAX_VERTEX_WT_FACTOR,
		StartPercentile:          90,
		PercentileIncrement:      5,
		ApproxRefine:             true,
		VCycle:                   true,
		LimitOnCycles:            3,
		LimAsPercentOfCut:        0.0,
		KeepPartitionsWithin:     1.1,
		ReductionInKeepThreshold: 0.7,
		ShuffleVertices:          true,
		ShuffleByPartition:       true,
		Seed:                     9,
	}
}

// acceptProp above one lets the initial partitioner attach several partitions.
func newTestController(c comm.Communicator, opts Options, h *datastructure.Hypergraph, acceptProp float64) *Controller {
	co := coarsener.NewCoarsener(c, coarsenerOptions(), zap.NewNop())
	ref := refiner.NewRefiner(c, refiner.Options{NumParts: opts.NumParts, MaxPasses: 4, ApproxRefine: opts.ApproxRefine}, zap.NewNop())
	seq := partitioner.NewSeqController(c, partitioner.SeqOptions{
		NumParts:          opts.NumParts,
		NumSeqRuns:        2,
		AcceptProp:        acceptProp,
		SourceSinkRate:    0.25,
		FlowSeeds:         2,
		MaxPasses:         4,
		Workers:           2,
		BalanceConstraint: opts.BalanceConstraint,
		Seed:              5,
	}, zap.NewNop())
	return NewController(c, opts, h, co, co.WithStrategy(coarsener.Restricted), ref, seq, zap.NewNop())
}

func TestSetWeightConstraints(t *testing.T) {
	weights := []int{3, 3, 3, 3, 3, 3, 3, 3, 3, 3}
	hedges := [][]int{{0, 1}, {2, 3}}
	runRanks(t, 1, func(ctx context.Context, c comm.Communicator) error {
		h := datastructure.FromGlobal(0, 1, weights, hedges, []int{1, 1})
		opts := controllerOptions(4)
		opts.BalanceConstraint = 0.05
		ctrl := newTestController(c, opts, h, 1.1)
		ctrl.SetWeightConstraints()

		// 30/4 * 1.05 = 7.875
		assert.Equal(t, 7, ctrl.MaxPartWeight())
		assert.Equal(t, 1, ctrl.MaxVertexWeight())
		return nil
	})
}

func TestRunPartitioner(t *testing.T) {
	const (
		numVertices = 400
		numHedges   = 600
	)
	weights, hedges, hedgeWeights := randomHypergraph(17, numVertices, numHedges)

	cases := []struct {
		procs      int
		numParts   int
		acceptProp float64
	}{
		{procs: 1, numParts: 4, acceptProp: 1.1},
		{procs: 3, numParts: 4, acceptProp: 1.1},
		{procs: 2, numParts: 5, acceptProp: 100},
		{procs: 4, numParts: 3, acceptProp: 100},
		{procs: 4, numParts: 5, acceptProp: 100},
	}

	for _, tc := range cases {
		procs, numParts := tc.procs, tc.numParts
		global := make([][]int, procs)
		best := make([]int, procs)
		worst := make([]int, procs)
		recomputed := make([]int, procs)
		maxPartWt := make([]int, procs)
		runRanks(t, procs, func(ctx context.Context, c comm.Communicator) error {
			h := datastructure.FromGlobal(c.Rank(), procs, weights, hedges, hedgeWeights)
			ctrl := newTestController(c, controllerOptions(numParts), h, tc.acceptProp)
			if err := ctrl.RunPartitioner(ctx); err != nil {
				return err
			}

			part, err := ctrl.GatherBestPartition(ctx)
			if err != nil {
				return err
			}
			full := datastructure.FromGlobal(c.Rank(), procs, weights, hedges, hedgeWeights)
			serial, err := datastructure.GatherSerial(ctx, c, full)
			if err != nil {
				return err
			}

			global[c.Rank()] = part
			best[c.Rank()] = ctrl.BestCutsize()
			worst[c.Rank()] = ctrl.WorstCutsize()
			recomputed[c.Rank()] = serial.CutSize(part)
			maxPartWt[c.Rank()] = ctrl.MaxPartWeight()
			assert.Len(t, ctrl.Stats().RunCuts, 2)
			ctrl.LogSummary()
			return nil
		})

		require.Len(t, global[0], numVertices)
		blockWts := make([]int, numParts)
		for v, p := range global[0] {
			require.GreaterOrEqual(t, p, 0)
			require.Less(t, p, numParts)
			blockWts[p] += weights[v]
		}
		for q, w := range blockWts {
			assert.LessOrEqual(t, w, maxPartWt[0], "%d ranks, k=%d, block %d", procs, numParts, q)
		}
		for r := 0; r < procs; r++ {
			assert.Equal(t, global[0], global[r])
			assert.Equal(t, best[0], best[r])
			assert.Equal(t, recomputed[r], best[r])
			assert.LessOrEqual(t, best[r], worst[r])
		}
	}
}

// scriptedSeq hands out partitions with fixed cuts, one per call.
type scriptedSeq struct {
	cuts  []int
	calls int
}

func (s *scriptedSeq) RunSeqPartitioner(ctx context.Context, h *datastructure.Hypergraph) error {
	cut := s.cuts[min(s.calls, len(s.cuts)-1)]
	s.calls++
	h.SetPartitions([][]int{make([]int, h.NumLocalVertices())}, []int{cut})
	return nil
}

func (s *scriptedSeq) SetMaximumPartWeight(w int) {}

type idleRefiner struct{}

func (idleRefiner) Refine(ctx context.Context, h *datastructure.Hypergraph) error { return nil }
func (idleRefiner) SetPercentile(p int)                                           {}
func (idleRefiner) SetMaximumPartWeight(w int)                                    {}
func (idleRefiner) ReleaseMemory()                                                {}

func TestNestedVCycle(t *testing.T) {
	weights, hedges, hedgeWeights := randomHypergraph(23, 200, 300)

	cases := []struct {
		name      string
		lim       float64
		limit     int
		cuts      []int
		wantTrace []int
		wantCut   int
		wantCalls int
	}{
		{name: "until no gain", lim: 0, limit: 10, cuts: []int{8, 5, 5}, wantTrace: []int{8, 5, 5}, wantCut: 5, wantCalls: 3},
		{name: "worse cut is dropped", lim: 0, limit: 10, cuts: []int{12}, wantTrace: []int{12}, wantCut: 10, wantCalls: 1},
		{name: "gain below minimum", lim: 0.5, limit: 10, cuts: []int{8, 1}, wantTrace: []int{8}, wantCut: 8, wantCalls: 1},
		{name: "cycle limit", lim: 0, limit: 2, cuts: []int{9, 8, 7}, wantTrace: []int{9, 8}, wantCut: 8, wantCalls: 2},
		{name: "disabled", lim: 0, limit: 0, cuts: []int{1}, wantTrace: nil, wantCut: 10, wantCalls: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, procs := range []int{1, 2} {
				runRanks(t, procs, func(ctx context.Context, c comm.Communicator) error {
					level := datastructure.FromGlobal(c.Rank(), procs, weights, hedges, hedgeWeights)
					level.SetPartitions([][]int{make([]int, level.NumLocalVertices())}, []int{10})

					opts := controllerOptions(2)
					opts.LimAsPercentOfCut = tc.lim
					opts.LimitOnCycles = tc.limit
					co := coarsener.NewCoarsener(c, coarsenerOptions(), zap.NewNop())
					seq := &scriptedSeq{cuts: tc.cuts}
					ctrl := NewController(c, opts, level, co, co.WithStrategy(coarsener.Restricted), idleRefiner{}, seq, zap.NewNop())

					if err := ctrl.nestedVCycle(ctx, level); err != nil {
						return err
					}
					assert.Equal(t, tc.wantTrace, ctrl.Stats().VCycleTrace)
					assert.Equal(t, tc.wantCalls, seq.calls)
					assert.Equal(t, 1, level.NumPartitions())
					assert.Equal(t, tc.wantCut, level.PartitionCut(0))
					assert.Equal(t, 0, ctrl.levels.Len())
					assert.Equal(t, 0, ctrl.percentiles.Len())
					return nil
				})
			}
		})
	}
}

func TestNestedVCycleWithoutCoarserLevel(t *testing.T) {
	weights := []int{1, 1, 1, 1}
	hedges := [][]int{{0, 1}, {2, 3}}
	runRanks(t, 1, func(ctx context.Context, c comm.Communicator) error {
		level := datastructure.FromGlobal(0, 1, weights, hedges, []int{1, 1})
		level.SetPartitions([][]int{{0, 0, 1, 1}}, []int{0})

		co := coarsener.NewCoarsener(c, coarsenerOptions(), zap.NewNop())
		seq := &scriptedSeq{cuts: []int{0}}
		ctrl := NewController(c, controllerOptions(2), level, co, co.WithStrategy(coarsener.Restricted), idleRefiner{}, seq, zap.NewNop())

		require.NoError(t, ctrl.nestedVCycle(ctx, level))
		assert.Equal(t, 0, seq.calls)
		assert.Equal(t, []int{0, 0, 1, 1}, level.Partition(0))
		assert.Equal(t, 0, ctrl.levels.Len())
		return nil
	})
}

func TestLogSummary(t *testing.T) {
	runRanks(t, 1, func(ctx context.Context, c comm.Communicator) error {
		core, logs := observer.New(zap.InfoLevel)
		ctrl := &Controller{comm: c, log: zap.New(core), bestCutsize: 4, worstCutsize: 6, totalCutsize: 10}
		ctrl.stats = Stats{
			CoarsenTime: 2 * time.Second,
			InitialTime: time.Second,
			RefineTime:  3 * time.Second,
			TotalTime:   10 * time.Second,
			RunTimes:    []time.Duration{4 * time.Second, 6 * time.Second},
			RunCuts:     []int{4, 6},
		}
		ctrl.LogSummary()

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "4s (40.0%)", fields["other"])
		assert.Equal(t, "2s (20.0%)", fields["coarsen"])
		assert.Equal(t, 5*time.Second, fields["averageRun"])
		assert.Equal(t, 5.0, fields["averageCut"])
		return nil
	})
}
