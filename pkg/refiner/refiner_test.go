package refiner

import (
	"context"
	"testing"
	"time"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
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

// two 4-cycles joined by one hyperedge
func twoCycles() ([]int, [][]int, []int) {
	weights := []int{1, 1, 1, 1, 1, 1, 1, 1}
	hedges := [][]int{{0, 1}, {1, 2}, {2, 3}, {0, 3}, {4, 5}, {5, 6}, {6, 7}, {4, 7}, {3, 4}}
	hedgeWeights := []int{1, 1, 1, 1, 1, 1, 1, 1, 1}
	return weights, hedges, hedgeWeights
}

func randomHypergraph(seed uint64, n, m int) ([]int, [][]int, []int) {
	rng := rand.New(rand.NewSource(seed))
	weights := make([]int, n)
	for v := range weights {
		weights[v] = 1
	}
	hedges := make([][]int, m)
	hedgeWeights := make([]int, m)
	for e := range hedges {
		size := 2 + rng.Intn(3)
		seen := make(map[int]bool)
		for len(hedges[e]) < size {
			v := rng.Intn(n)
			if !seen[v] {
				seen[v] = true
				hedges[e] = append(hedges[e], v)
			}
		}
		hedgeWeights[e] = 1 + rng.Intn(2)
	}
	return weights, hedges, hedgeWeights
}

func TestRefineTwoCycles(t *testing.T) {
	weights, hedges, hedgeWeights := twoCycles()
	initial := []int{0, 0, 0, 1, 1, 1, 1, 0}
	const n = 2

	parts := make([][]int, n)
	cuts := make([]int, n)
	runRanks(t, n, func(ctx context.Context, c comm.Communicator) error {
		h := datastructure.FromGlobal(c.Rank(), n, weights, hedges, hedgeWeights)
		lo := h.MinVertexIndex()
		h.SetPartitions([][]int{append([]int(nil), initial[lo:lo+h.NumLocalVertices()]...)}, []int{4})

		r := NewRefiner(c, Options{NumParts: 2, MaxPasses: 10}, zap.NewNop())
		r.SetMaximumPartWeight(5)
		if err := r.Refine(ctx, h); err != nil {
			return err
		}
		parts[c.Rank()] = append([]int(nil), h.Partition(0)...)
		cuts[c.Rank()] = h.PartitionCut(0)
		return nil
	})

	assert.Equal(t, []int{0, 0, 0, 0}, parts[0])
	assert.Equal(t, []int{1, 1, 1, 1}, parts[1])
	assert.Equal(t, []int{1, 1}, cuts)
}

func TestBudgets(t *testing.T) {
	const n = 3
	budgets := make([][]int, n)
	runRanks(t, n, func(ctx context.Context, c comm.Communicator) error {
		r := NewRefiner(c, Options{NumParts: 2}, zap.NewNop())
		r.SetMaximumPartWeight(10)
		var err error
		budgets[c.Rank()], err = r.budgets(ctx, []int{1, 3}, []int{9, 6})
		return err
	})

	// block 0 has room 1, block 1 has room 4
	assert.Equal(t, []int{1, 3}, budgets[0])
	assert.Equal(t, []int{0, 1}, budgets[1])
	assert.Equal(t, []int{0, 0}, budgets[2])
}

func TestRefineNeverWorsens(t *testing.T) {
	const (
		numVertices = 64
		numParts    = 4
		maxPartWt   = 18
	)
	weights, hedges, hedgeWeights := randomHypergraph(3, numVertices, 100)

	for _, procs := range []int{1, 4} {
		before := make([]int, procs)
		after := make([]int, procs)
		recomputed := make([]int, procs)
		partWts := make([][]int, procs)
		runRanks(t, procs, func(ctx context.Context, c comm.Communicator) error {
			h := datastructure.FromGlobal(c.Rank(), procs, weights, hedges, hedgeWeights)
			part := make([]int, h.NumLocalVertices())
			for v := range part {
				part[v] = (v + h.MinVertexIndex()) % numParts
			}
			h.SetPartitions([][]int{part}, []int{0})
			if err := h.CalcCutsizes(ctx, c); err != nil {
				return err
			}
			before[c.Rank()] = h.PartitionCut(0)

			r := NewRefiner(c, Options{NumParts: numParts, MaxPasses: 8, ApproxRefine: true}, zap.NewNop())
			r.SetMaximumPartWeight(maxPartWt)
			r.SetPercentile(90)
			if err := r.Refine(ctx, h); err != nil {
				return err
			}
			after[c.Rank()] = h.PartitionCut(0)

			var err error
			if partWts[c.Rank()], err = h.PartWeights(ctx, c, 0, numParts); err != nil {
				return err
			}
			if err := h.CalcCutsizes(ctx, c); err != nil {
				return err
			}
			recomputed[c.Rank()] = h.PartitionCut(0)
			return nil
		})

		assert.LessOrEqual(t, after[0], before[0], "%d ranks", procs)
		assert.Equal(t, after[0], recomputed[0], "%d ranks", procs)
		for q, w := range partWts[0] {
			assert.LessOrEqual(t, w, maxPartWt, "%d ranks, block %d", procs, q)
		}
	}
}

func TestRefineRestoresBalance(t *testing.T) {
	cases := []struct {
		name      string
		numParts  int
		maxPartWt int
		graph     func() ([]int, [][]int, []int)
	}{
		{"two cycles", 2, 5, twoCycles},
		{"random", 4, 17, func() ([]int, [][]int, []int) { return randomHypergraph(8, 64, 120) }},
	}

	for _, tc := range cases {
		weights, hedges, hedgeWeights := tc.graph()
		for _, procs := range []int{1, 2, 4} {
			partWts := make([][]int, procs)
			cuts := make([]int, procs)
			recomputed := make([]int, procs)
			runRanks(t, procs, func(ctx context.Context, c comm.Communicator) error {
				h := datastructure.FromGlobal(c.Rank(), procs, weights, hedges, hedgeWeights)
				// everything starts in block 0
				h.SetPartitions([][]int{make([]int, h.NumLocalVertices())}, []int{0})

				r := NewRefiner(c, Options{NumParts: tc.numParts, MaxPasses: 4}, zap.NewNop())
				r.SetMaximumPartWeight(tc.maxPartWt)
				if err := r.Refine(ctx, h); err != nil {
					return err
				}
				cuts[c.Rank()] = h.PartitionCut(0)

				var err error
				if partWts[c.Rank()], err = h.PartWeights(ctx, c, 0, tc.numParts); err != nil {
					return err
				}
				if err := h.CalcCutsizes(ctx, c); err != nil {
					return err
				}
				recomputed[c.Rank()] = h.PartitionCut(0)
				return nil
			})

			for q, w := range partWts[0] {
				assert.LessOrEqual(t, w, tc.maxPartWt, "%s, %d ranks, block %d", tc.name, procs, q)
			}
			assert.Equal(t, recomputed[0], cuts[0], "%s, %d ranks", tc.name, procs)
		}
	}
}

func TestAllowances(t *testing.T) {
	const n = 3
	allowances := make([][]int, n)
	runRanks(t, n, func(ctx context.Context, c comm.Communicator) error {
		r := NewRefiner(c, Options{NumParts: 2}, zap.NewNop())
		r.SetMaximumPartWeight(10)
		var err error
		allowances[c.Rank()], err = r.allowances(ctx, []int{2, 0}, []int{15, 4})
		return err
	})

	// block 0 is 5 over the cap, block 1 is not over
	assert.Equal(t, []int{5, 0}, allowances[0])
	assert.Equal(t, []int{3, 0}, allowances[1])
	assert.Equal(t, []int{1, 0}, allowances[2])
}
