package refiner

import (
	"sort"

	"github.com/lintang-b-s/hgpart/pkg/datastructure"
)

type move struct {
	vertex int // local
	from   int
	to     int
	gain   int
	weight int
}

func moveWeights(moves []move, numParts int) []int {
	weights := make([]int, numParts)
	for _, m := range moves {
		weights[m.to] += m.weight
	}
	return weights
}

// gainCalculator keeps the per-block scratch arrays of one rank.
type gainCalculator struct {
	counts    []int
	touched   []int
	gain      []int
	connected []bool
}

func newGainCalculator(numParts int) *gainCalculator {
	return &gainCalculator{
		counts:    make([]int, numParts),
		gain:      make([]int, numParts),
		connected: make([]bool, numParts),
	}
}

// vertexGains fills gc.gain[q] with the cut reduction of moving local v from
// block p to block q, for every block q that v is connected to. internal is the
// weight of hyperedges that would become cut whichever block v goes to.
func (gc *gainCalculator) vertexGains(view *datastructure.IncidentView, v, p int,
	partOf func(int) int) (internal int) {

	for q := range gc.gain {
		gc.gain[q] = 0
		gc.connected[q] = false
	}

	for _, e := range view.VertexHedges(v) {
		pins := view.HedgePins(e)
		w := view.HedgeWeight(e)
		for _, u := range pins {
			q := partOf(u)
			if gc.counts[q] == 0 {
				gc.touched = append(gc.touched, q)
			}
			gc.counts[q]++
		}

		if gc.counts[p] == len(pins) {
			internal += w
		}
		for _, q := range gc.touched {
			if q == p {
				continue
			}
			gc.connected[q] = true
			if gc.counts[q] == len(pins)-1 {
				gc.gain[q] += w
			}
		}

		for _, q := range gc.touched {
			gc.counts[q] = 0
		}
		gc.touched = gc.touched[:0]
	}
	return internal
}

func (gc *gainCalculator) proposeMoves(h *datastructure.Hypergraph, view *datastructure.IncidentView,
	part []int, partOf func(int) int, upward bool) []move {

	var moves []move
	for v, p := range part {
		internal := gc.vertexGains(view, v, p, partOf)

		best, bestGain := -1, 0
		for q, ok := range gc.connected {
			if !ok || (upward && q < p) || (!upward && q > p) {
				continue
			}
			if g := gc.gain[q] - internal; g > bestGain {
				best, bestGain = q, g
			}
		}
		if best >= 0 {
			moves = append(moves, move{vertex: v, from: p, to: best, gain: bestGain, weight: h.VertexWeight(v)})
		}
	}

	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].gain > moves[j].gain
	})
	return moves
}

// applyMoves applies moves in gain order while the target block has budget,
// recomputing each gain against the moves already made. it returns the number
// of moves made.
func (gc *gainCalculator) applyMoves(h *datastructure.Hypergraph, view *datastructure.IncidentView,
	part []int, partOf func(int) int, moves []move, budgets []int) int {

	applied := 0
	for _, m := range moves {
		if budgets[m.to] < m.weight {
			continue
		}
		p := part[m.vertex]
		internal := gc.vertexGains(view, m.vertex, p, partOf)
		if gc.gain[m.to]-internal <= 0 {
			continue
		}
		part[m.vertex] = m.to
		budgets[m.to] -= m.weight
		applied++
	}
	return applied
}
