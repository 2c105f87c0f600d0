package coarsener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

func runRanks(t *testing.T, n int, fn func(ctx context.Context, c comm.Communicator) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, comm.Run(ctx, n, fn))
}

func testOptions() Options {
	return Options{
		Strategy:          FirstChoice,
		ReductionRatio:    1.75,
		MinNodes:          1,
		VisitOrder:        pkg.RANDOM_ORDER,
		RequestOrder:      pkg.RANDOM_REQUEST_ORDER,
		DivByHedgeLen:     true,
		HedgeThreshold:    pkg.DEFAULT_HEDGE_THRESHOLD,
		MinReductionRatio: pkg.DEFAULT_MIN_REDUCTION_RATIO,
		Seed:              7,
		Debug:             true,
	}
}

// levelResult is what one rank saw of a single coarsening step.
type levelResult struct {
	match         []int
	coarseWeights []int
	coarseTotal   int
	dontCoarsen   bool
}

func coarsenOnce(t *testing.T, numProcs int, opts Options, maxVertexWt int,
	weights []int, hedges [][]int, hedgeWeights []int) []levelResult {
	t.Helper()
	results := make([]levelResult, numProcs)
	runRanks(t, numProcs, func(ctx context.Context, c comm.Communicator) error {
		h := datastructure.FromGlobal(c.Rank(), numProcs, weights, hedges, hedgeWeights)
		co := NewCoarsener(c, opts, zap.NewNop())
		co.SetMaxVertexWeight(maxVertexWt)
		coarse, err := co.Coarsen(ctx, h)
		if err != nil {
			return err
		}
		results[c.Rank()] = levelResult{
			match:         append([]int(nil), h.MatchVector()...),
			coarseWeights: append([]int(nil), coarse.VertexWeights()...),
			coarseTotal:   coarse.TotalVertices(),
			dontCoarsen:   coarse.DontCoarsen(),
		}
		return nil
	})
	return results
}

func globalMatch(results []levelResult) []int {
	var match []int
	for _, r := range results {
		match = append(match, r.match...)
	}
	return match
}

func globalCoarseWeights(results []levelResult) []int {
	var weights []int
	for _, r := range results {
		weights = append(weights, r.coarseWeights...)
	}
	return weights
}

func TestCoarsenSingleHyperedge(t *testing.T) {
	opts := testOptions()
	opts.ReductionRatio = 2.0

	results := coarsenOnce(t, 1, opts, 10, []int{1, 1, 1}, [][]int{{0, 1, 2}}, []int{3})

	match := results[0].match
	sizes := make(map[int]int)
	for _, cid := range match {
		sizes[cid]++
	}
	largest := 0
	for _, s := range sizes {
		largest = max(largest, s)
	}
	assert.GreaterOrEqual(t, largest, 2)
	assert.Equal(t, 1, results[0].coarseTotal)
	assert.Equal(t, []int{3}, results[0].coarseWeights)
	assert.False(t, results[0].dontCoarsen)
}

func TestCoarsenCrossProcessRejected(t *testing.T) {
	results := coarsenOnce(t, 2, testOptions(), 8, []int{5, 5}, [][]int{{0, 1}}, []int{1})

	assert.Equal(t, []int{0}, results[0].match)
	assert.Equal(t, []int{1}, results[1].match)
	assert.Equal(t, []int{5, 5}, globalCoarseWeights(results))
	assert.Equal(t, 2, results[0].coarseTotal)
	// 2 vertices into 2 clusters is below the minimum reduction
	assert.True(t, results[0].dontCoarsen)
}

func TestCoarsenCrossProcessAccepted(t *testing.T) {
	results := coarsenOnce(t, 2, testOptions(), 12, []int{5, 5}, [][]int{{0, 1}}, []int{1})

	match := globalMatch(results)
	assert.Equal(t, match[0], match[1])
	assert.Equal(t, 1, results[0].coarseTotal)
	assert.Equal(t, []int{10}, globalCoarseWeights(results))
}

func TestCoarsenEarlyTermination(t *testing.T) {
	const n = 20
	weights := make([]int, n)
	hedges := make([][]int, 0, n/2)
	hedgeWeights := make([]int, 0, n/2)
	for v := 0; v < n; v++ {
		weights[v] = 1
	}
	for v := 0; v < n; v += 2 {
		hedges = append(hedges, []int{v, v + 1})
		hedgeWeights = append(hedgeWeights, 1)
	}

	opts := testOptions()
	opts.VisitOrder = pkg.INCREASING_ORDER
	opts.ReductionRatio = 2.0
	opts.DivByHedgeLen = false

	results := coarsenOnce(t, 1, opts, pkg.LARGE_CONSTANT, weights, hedges, hedgeWeights)
	match := results[0].match

	// the scan stops after the vertex at visit position 12
	for v := 0; v < 14; v++ {
		assert.Equal(t, v/2, match[v], "vertex %d", v)
	}
	for v := 14; v < n; v++ {
		assert.Equal(t, 7+v-14, match[v], "vertex %d", v)
	}
	assert.Equal(t, 13, results[0].coarseTotal)
}

func TestCoarsenBelowMinNodes(t *testing.T) {
	runRanks(t, 1, func(ctx context.Context, c comm.Communicator) error {
		h := datastructure.FromGlobal(0, 1, []int{1, 1, 1}, [][]int{{0, 1, 2}}, []int{1})
		opts := testOptions()
		opts.MinNodes = 10
		coarse, err := NewCoarsener(c, opts, zap.NewNop()).Coarsen(ctx, h)
		assert.NoError(t, err)
		assert.Nil(t, coarse)

		h.SetDontCoarsen(true)
		opts.MinNodes = 1
		coarse, err = NewCoarsener(c, opts, zap.NewNop()).Coarsen(ctx, h)
		assert.NoError(t, err)
		assert.Nil(t, coarse)
		return nil
	})
}

func randomHypergraph(seed uint64, n, m int) ([]int, [][]int, []int) {
	rng := rand.New(rand.NewSource(seed))
	weights := make([]int, n)
	for v := range weights {
		weights[v] = 1 + rng.Intn(4)
	}
	hedges := make([][]int, m)
	hedgeWeights := make([]int, m)
	for e := range hedges {
		size := 2 + rng.Intn(4)
		seen := make(map[int]bool)
		for len(hedges[e]) < size {
			v := rng.Intn(n)
			if !seen[v] {
				seen[v] = true
				hedges[e] = append(hedges[e], v)
			}
		}
		hedgeWeights[e] = 1 + rng.Intn(3)
	}
	return weights, hedges, hedgeWeights
}

func checkLevelProperties(t *testing.T, weights []int, maxVertexWt int, results []levelResult) {
	t.Helper()
	match := globalMatch(results)
	coarseWeights := globalCoarseWeights(results)
	total := results[0].coarseTotal
	require.Len(t, coarseWeights, total)

	members := make([]int, total)
	clusterWeights := make([]int, total)
	for v, cid := range match {
		require.GreaterOrEqual(t, cid, 0, "vertex %d", v)
		require.Less(t, cid, total, "vertex %d", v)
		members[cid]++
		clusterWeights[cid] += weights[v]
	}

	sum := 0
	for c := 0; c < total; c++ {
		assert.Positive(t, members[c], "cluster %d is empty", c)
		assert.Equal(t, clusterWeights[c], coarseWeights[c], "cluster %d", c)
		if members[c] > 1 {
			assert.LessOrEqual(t, clusterWeights[c], maxVertexWt, "cluster %d", c)
		}
		sum += coarseWeights[c]
	}

	expected := 0
	for _, w := range weights {
		expected += w
	}
	assert.Equal(t, expected, sum)
}

func TestCoarsenProperties(t *testing.T) {
	tests := []struct {
		name     string
		procs    int
		strategy Strategy
		order    pkg.VisitOrder
		metric   int
	}{
		{"first choice 4 ranks", 4, FirstChoice, pkg.RANDOM_ORDER, 2},
		{"first choice 3 ranks by weight", 3, FirstChoice, pkg.DECREASING_WEIGHT_ORDER, 3},
		{"first choice 1 rank", 1, FirstChoice, pkg.INCREASING_ORDER, 0},
		{"hyperedge merging 4 ranks", 4, Model2D, pkg.RANDOM_ORDER, 1},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights, hedges, hedgeWeights := randomHypergraph(uint64(100+i), 90, 120)
			opts := testOptions()
			opts.Strategy = tt.strategy
			opts.HedgeThreshold = 0
			opts.VisitOrder = tt.order
			opts.DivByCluWt, opts.DivByHedgeLen = pkg.ConnectivityMetric(tt.metric)

			const maxVertexWt = 9
			results := coarsenOnce(t, tt.procs, opts, maxVertexWt, weights, hedges, hedgeWeights)
			checkLevelProperties(t, weights, maxVertexWt, results)
			assert.Less(t, results[0].coarseTotal, len(weights))
		})
	}
}

func TestHedgeMatch(t *testing.T) {
	weights := []int{1, 1, 1, 1, 1, 1}
	hedges := [][]int{{0, 1}, {2, 3, 4}, {4, 5}}
	hedgeWeights := []int{1, 1, 2}

	opts := testOptions()
	opts.Strategy = Model2D
	opts.HedgeThreshold = 0
	opts.ReductionRatio = 10

	results := coarsenOnce(t, 1, opts, 10, weights, hedges, hedgeWeights)
	assert.Equal(t, []int{1, 1, 2, 2, 0, 0}, results[0].match)
	assert.Equal(t, []int{2, 2, 2}, results[0].coarseWeights)
}

func TestRestrictedCoarsening(t *testing.T) {
	weights := []int{1, 2, 1, 2, 1, 2, 1, 2}
	hedges := [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}, {6, 7}, {7, 0}, {0, 2, 4, 6}}
	hedgeWeights := []int{1, 1, 1, 1, 1, 1, 1, 1, 3}
	const n = 2

	type restricted struct {
		match      []int
		coarsePart []int
		coarseCut  int
	}
	results := make([]restricted, n)
	runRanks(t, n, func(ctx context.Context, c comm.Communicator) error {
		h := datastructure.FromGlobal(c.Rank(), n, weights, hedges, hedgeWeights)
		part := make([]int, h.NumLocalVertices())
		for v := range part {
			part[v] = (v + h.MinVertexIndex()) % 2
		}
		h.SetPartitions([][]int{part}, []int{9})

		co := NewCoarsener(c, testOptions(), zap.NewNop()).WithStrategy(Restricted)
		coarse, err := co.Coarsen(ctx, h)
		if err != nil {
			return err
		}
		results[c.Rank()] = restricted{
			match:      append([]int(nil), h.MatchVector()...),
			coarsePart: append([]int(nil), coarse.Partition(0)...),
			coarseCut:  coarse.PartitionCut(0),
		}
		return nil
	})

	var match, coarsePart []int
	for _, r := range results {
		match = append(match, r.match...)
		coarsePart = append(coarsePart, r.coarsePart...)
		assert.Equal(t, 9, r.coarseCut)
	}
	// 0,2 and 4,6 merge over the 4-pin hyperedge, odd vertices stay alone
	assert.Equal(t, match[0], match[2])
	assert.Equal(t, match[4], match[6])
	assert.Len(t, coarsePart, 6)
	for v, cid := range match {
		assert.Equal(t, v%2, coarsePart[cid], "vertex %d", v)
	}
}

func TestRestrictedNeedsPartition(t *testing.T) {
	runRanks(t, 1, func(ctx context.Context, c comm.Communicator) error {
		h := datastructure.FromGlobal(0, 1, []int{1, 1}, [][]int{{0, 1}}, []int{1})
		_, err := NewCoarsener(c, testOptions(), zap.NewNop()).WithStrategy(Restricted).Coarsen(ctx, h)
		assert.True(t, errors.Is(err, util.ErrBadParamInput))
		return nil
	})
}

func TestAverageVertexWeightRoundsUp(t *testing.T) {
	tests := []struct {
		weights []int
		want    int
	}{
		{[]int{1, 2}, 2},
		{[]int{2, 2, 2}, 2},
		{[]int{1, 1, 1, 2}, 2},
		{[]int{3, 1, 1}, 2},
	}
	for _, tt := range tests {
		h := datastructure.FromGlobal(0, 1, tt.weights, [][]int{{0, 1}}, []int{1})
		pc := newProcessContext(h, nil, NewMatchRequestTable(), 10)
		assert.Equal(t, tt.want, pc.aveVertexWt, "weights %v", tt.weights)
	}
}

func TestIndexLimit(t *testing.T) {
	assert.Equal(t, 11, indexLimit(20, 2.0))
	assert.Equal(t, 6, indexLimit(10, 1.75))
	assert.Equal(t, 3, indexLimit(3, 2.0))
}

func TestVisitOrder(t *testing.T) {
	weights := []int{3, 1, 2}
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, []int{0, 1, 2}, visitOrder(pkg.INCREASING_ORDER, weights, rng))
	assert.Equal(t, []int{2, 1, 0}, visitOrder(pkg.DECREASING_ORDER, weights, rng))
	assert.Equal(t, []int{1, 2, 0}, visitOrder(pkg.INCREASING_WEIGHT_ORDER, weights, rng))
	assert.Equal(t, []int{0, 2, 1}, visitOrder(pkg.DECREASING_WEIGHT_ORDER, weights, rng))
	assert.ElementsMatch(t, []int{0, 1, 2}, visitOrder(pkg.RANDOM_ORDER, weights, rng))
}
