package refiner

import (
	"context"
	"sort"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
)

const maxBalanceRounds = 64

func overweight(partWts []int, maxPartWt int) bool {
	for _, w := range partWts {
		if w > maxPartWt {
			return true
		}
	}
	return false
}

// rebalance moves vertices out of blocks heavier than the cap into blocks with
// room, best gain first whatever its sign, until every block fits or a round
// moves nothing. it reports whether any vertex moved. every rank must call it.
func (r *Refiner) rebalance(ctx context.Context, h *datastructure.Hypergraph,
	view *datastructure.IncidentView, i int, gc *gainCalculator) (bool, error) {

	part := h.Partition(i)
	moved := false
	for round := 0; round < maxBalanceRounds; round++ {
		partWts, err := h.PartWeights(ctx, r.comm, i, r.opts.NumParts)
		if err != nil {
			return moved, err
		}
		if !overweight(partWts, r.maxPartWt) {
			return moved, nil
		}
		remote, err := h.RemotePinParts(ctx, r.comm, view, i)
		if err != nil {
			return moved, err
		}
		partOf := func(v int) int {
			if h.IsLocal(v) {
				return part[v-h.MinVertexIndex()]
			}
			return remote[v]
		}

		moves := gc.proposeBalanceMoves(h, view, part, partOf, partWts, r.maxPartWt)
		outflow := make([]int, r.opts.NumParts)
		for _, m := range moves {
			outflow[m.from] += m.weight
		}
		allowances, err := r.allowances(ctx, outflow, partWts)
		if err != nil {
			return moved, err
		}
		budgets, err := r.budgets(ctx, moveWeights(moves, r.opts.NumParts), partWts)
		if err != nil {
			return moved, err
		}

		applied := 0
		for _, m := range moves {
			if allowances[m.from] <= 0 || budgets[m.to] < m.weight {
				continue
			}
			part[m.vertex] = m.to
			allowances[m.from] -= m.weight
			budgets[m.to] -= m.weight
			applied++
		}
		total, err := comm.AllReduceSum(ctx, r.comm, applied)
		if err != nil {
			return moved, err
		}
		if total == 0 {
			return moved, nil
		}
		moved = true
	}
	return moved, nil
}

// allowances splits the excess of every overweight block among the ranks in
// rank order, like budgets does with the room of the lighter blocks.
func (r *Refiner) allowances(ctx context.Context, outflow, partWts []int) ([]int, error) {
	all, err := r.comm.AllGather(ctx, outflow)
	if err != nil {
		return nil, err
	}

	allowances := make([]int, len(outflow))
	for p := range allowances {
		excess := partWts[p] - r.maxPartWt
		for s := 0; s < r.comm.Rank(); s++ {
			excess -= all[s][p]
		}
		allowances[p] = max(0, excess)
	}
	return allowances, nil
}

// proposeBalanceMoves proposes for every local vertex of an overweight block
// its best move into a block that still has room.
func (gc *gainCalculator) proposeBalanceMoves(h *datastructure.Hypergraph, view *datastructure.IncidentView,
	part []int, partOf func(int) int, partWts []int, maxPartWt int) []move {

	var moves []move
	for v, p := range part {
		if partWts[p] <= maxPartWt {
			continue
		}
		w := h.VertexWeight(v)
		internal := gc.vertexGains(view, v, p, partOf)

		best, bestGain := -1, 0
		for q := range gc.gain {
			if q == p || partWts[q]+w > maxPartWt {
				continue
			}
			if g := gc.gain[q] - internal; best < 0 || g > bestGain {
				best, bestGain = q, g
			}
		}
		if best >= 0 {
			moves = append(moves, move{vertex: v, from: p, to: best, gain: bestGain, weight: w})
		}
	}

	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].gain > moves[j].gain
	})
	return moves
}
