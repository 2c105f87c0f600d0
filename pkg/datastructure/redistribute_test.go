package datastructure

import (
	"context"
	"testing"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"
)

func concatRanks(xs [][]int) []int {
	var out []int
	for _, x := range xs {
		out = append(out, x...)
	}
	return out
}

func TestRedistributeByBlock(t *testing.T) {
	weights, hedges, hedgeWeights := ringHypergraph()
	const n = 3
	global := []int{1, 0, 1, 0, 1, 0, 1, 0}

	ids := make([][]int, n)
	outWeights := make([][]int, n)
	outParts := make([][]int, n)
	back := make([][]int, n)
	cuts := make([][2]int, n)
	runRanks(t, n, func(ctx context.Context, c comm.Communicator) error {
		h := FromGlobal(c.Rank(), n, weights, hedges, hedgeWeights)
		local := append([]int(nil), global[h.MinVertexIndex():h.MaxVertexIndex()]...)
		h.SetPartitions([][]int{local}, []int{0})
		if err := h.CalcCutsizes(ctx, c); err != nil {
			return err
		}

		var err error
		ids[c.Rank()], err = h.BlockOrder(ctx, c)
		if err != nil {
			return err
		}
		out, err := h.Redistribute(ctx, c, ids[c.Rank()])
		if err != nil {
			return err
		}
		if err := out.CalcCutsizes(ctx, c); err != nil {
			return err
		}
		cuts[c.Rank()] = [2]int{h.PartitionCut(0), out.PartitionCut(0)}
		outWeights[c.Rank()] = append([]int(nil), out.VertexWeights()...)
		outParts[c.Rank()] = append([]int(nil), out.Partition(0)...)

		flipped := out.Partition(0)
		for v := range flipped {
			flipped[v] = 1 - flipped[v]
		}
		if err := h.ProjectPartitions(ctx, c, out); err != nil {
			return err
		}
		back[c.Rank()] = append([]int(nil), h.Partition(0)...)
		return nil
	})

	assert.Equal(t, []int{4, 0, 5, 1, 6, 2, 7, 3}, concatRanks(ids))
	assert.Equal(t, []int{2, 2, 2, 2, 1, 1, 1, 1}, concatRanks(outWeights))
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1}, concatRanks(outParts))
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1, 0, 1}, concatRanks(back))
	for r := 0; r < n; r++ {
		assert.Equal(t, cuts[r][0], cuts[r][1])
	}
}

func TestRandomOrderRoundTrip(t *testing.T) {
	weights, hedges, hedgeWeights := ringHypergraph()
	const n = 2
	global := []int{0, 0, 1, 1, 1, 1, 0, 0}

	ids := make([][]int, n)
	again := make([][]int, n)
	back := make([][]int, n)
	cuts := make([][2]int, n)
	totals := make([]int, n)
	runRanks(t, n, func(ctx context.Context, c comm.Communicator) error {
		h := FromGlobal(c.Rank(), n, weights, hedges, hedgeWeights)
		local := append([]int(nil), global[h.MinVertexIndex():h.MaxVertexIndex()]...)
		h.SetPartitions([][]int{local, local}, []int{0, 0})
		if err := h.CalcCutsizes(ctx, c); err != nil {
			return err
		}

		ids[c.Rank()] = h.RandomOrder(42)
		again[c.Rank()] = h.RandomOrder(42)
		out, err := h.Redistribute(ctx, c, ids[c.Rank()])
		if err != nil {
			return err
		}
		if err := out.CalcCutsizes(ctx, c); err != nil {
			return err
		}
		cuts[c.Rank()] = [2]int{h.PartitionCut(1), out.PartitionCut(1)}
		totals[c.Rank()] = out.TotalWeight()

		if err := h.ProjectPartitions(ctx, c, out); err != nil {
			return err
		}
		back[c.Rank()] = append([]int(nil), h.Partition(1)...)
		return nil
	})

	perm := concatRanks(ids)
	assert.Equal(t, perm, concatRanks(again))
	sorted := append([]int(nil), perm...)
	slices.Sort(sorted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, sorted)
	assert.Equal(t, global, concatRanks(back))
	for r := 0; r < n; r++ {
		assert.Equal(t, cuts[r][0], cuts[r][1])
		assert.Equal(t, 12, totals[r])
	}
}

func TestRedistributeRejectsDuplicateIDs(t *testing.T) {
	weights, hedges, hedgeWeights := ringHypergraph()
	runRanks(t, 1, func(ctx context.Context, c comm.Communicator) error {
		h := FromGlobal(0, 1, weights, hedges, hedgeWeights)
		_, err := h.Redistribute(ctx, c, []int{0, 0, 1, 2, 3, 4, 5, 6})
		require.ErrorIs(t, err, util.ErrInvariantViolation)

		_, err = h.BlockOrder(ctx, c)
		require.ErrorIs(t, err, util.ErrBadParamInput)
		return nil
	})
}
