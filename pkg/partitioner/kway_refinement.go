package partitioner

import (
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
)

// kwayRefiner moves single vertices between blocks of a serial hypergraph,
// keeping per-hyperedge pin counts of every block up to date.
type kwayRefiner struct {
	graph     *datastructure.SerialHypergraph
	numParts  int
	maxPartWt int
	part      []int
	partWts   []int
	pinCounts []int // hyperedge e, block q -> pinCounts[e*numParts+q]
}

func newKwayRefiner(graph *datastructure.SerialHypergraph, numParts, maxPartWt int, part []int) *kwayRefiner {
	kr := &kwayRefiner{
		graph:     graph,
		numParts:  numParts,
		maxPartWt: maxPartWt,
		part:      part,
		partWts:   make([]int, numParts),
		pinCounts: make([]int, graph.NumHedges()*numParts),
	}
	for v, p := range part {
		kr.partWts[p] += graph.VertexWeight(v)
	}
	for e := 0; e < graph.NumHedges(); e++ {
		for _, v := range graph.HedgePins(e) {
			kr.pinCounts[e*numParts+part[v]]++
		}
	}
	return kr
}

func (kr *kwayRefiner) count(e, q int) int {
	return kr.pinCounts[e*kr.numParts+q]
}

// gain is the cut reduction of moving v to block q.
func (kr *kwayRefiner) gain(v, q int) int {
	p := kr.part[v]
	g := 0
	for _, e := range kr.graph.VertexHedges(v) {
		size := len(kr.graph.HedgePins(e))
		if size < 2 {
			continue
		}
		w := kr.graph.HedgeWeight(e)
		if kr.count(e, q) == size-1 {
			g += w
		}
		if kr.count(e, p) == size {
			g -= w
		}
	}
	return g
}

// bestMove returns the block with room for v that v gains most by moving to,
// among the blocks v shares a hyperedge with, or -1.
func (kr *kwayRefiner) bestMove(v int) (int, int) {
	p := kr.part[v]
	w := kr.graph.VertexWeight(v)
	best, bestGain := -1, 0
	for q := 0; q < kr.numParts; q++ {
		if q == p || kr.partWts[q]+w > kr.maxPartWt || !kr.connected(v, q) {
			continue
		}
		if g := kr.gain(v, q); best < 0 || g > bestGain {
			best, bestGain = q, g
		}
	}
	return best, bestGain
}

func (kr *kwayRefiner) connected(v, q int) bool {
	for _, e := range kr.graph.VertexHedges(v) {
		if kr.count(e, q) > 0 {
			return true
		}
	}
	return false
}

func (kr *kwayRefiner) move(v, q int) {
	p := kr.part[v]
	w := kr.graph.VertexWeight(v)
	for _, e := range kr.graph.VertexHedges(v) {
		kr.pinCounts[e*kr.numParts+p]--
		kr.pinCounts[e*kr.numParts+q]++
	}
	kr.partWts[p] -= w
	kr.partWts[q] += w
	kr.part[v] = q
}

// rebalance moves vertices out of overweight blocks until every block fits or
// nothing more can be done. it prefers the best single move into a block with
// room, then a swap with a lighter vertex of such a block, then a move of the
// lightest vertex of the heaviest block to the lightest block. every step
// lowers the sum of squared block weights, so the loop ends.
func (kr *kwayRefiner) rebalance() {
	for kr.overweight() {
		if !kr.singleMove() && !kr.swapMove() && !kr.levelMove() {
			return
		}
	}
}

func (kr *kwayRefiner) overweight() bool {
	for _, w := range kr.partWts {
		if w > kr.maxPartWt {
			return true
		}
	}
	return false
}

// singleMove takes the highest gain move out of an overweight block into a
// block with room, whatever the sign of the gain.
func (kr *kwayRefiner) singleMove() bool {
	bestV, bestQ, bestGain := -1, -1, 0
	for v, p := range kr.part {
		if kr.partWts[p] <= kr.maxPartWt {
			continue
		}
		w := kr.graph.VertexWeight(v)
		for q := 0; q < kr.numParts; q++ {
			if q == p || kr.partWts[q]+w > kr.maxPartWt {
				continue
			}
			if g := kr.gain(v, q); bestV < 0 || g > bestGain {
				bestV, bestQ, bestGain = v, q, g
			}
		}
	}
	if bestV < 0 {
		return false
	}
	kr.move(bestV, bestQ)
	return true
}

// swapMove exchanges a vertex v of an overweight block with a lighter vertex u
// of another block when both blocks fit afterwards.
func (kr *kwayRefiner) swapMove() bool {
	for v, p := range kr.part {
		if kr.partWts[p] <= kr.maxPartWt {
			continue
		}
		wv := kr.graph.VertexWeight(v)
		for u, q := range kr.part {
			wu := kr.graph.VertexWeight(u)
			if q == p || wu >= wv {
				continue
			}
			d := wv - wu
			if kr.partWts[p]-d <= kr.maxPartWt && kr.partWts[q]+d <= kr.maxPartWt {
				kr.move(v, q)
				kr.move(u, p)
				return true
			}
		}
	}
	return false
}

// levelMove moves the lightest vertex of the heaviest block to the lightest
// block when that leaves the lightest block below the heaviest one's old weight.
func (kr *kwayRefiner) levelMove() bool {
	heavy, light := 0, 0
	for q, w := range kr.partWts {
		if w > kr.partWts[heavy] {
			heavy = q
		}
		if w < kr.partWts[light] {
			light = q
		}
	}
	lightest := -1
	for v, p := range kr.part {
		if p == heavy && (lightest < 0 || kr.graph.VertexWeight(v) < kr.graph.VertexWeight(lightest)) {
			lightest = v
		}
	}
	if lightest < 0 || heavy == light ||
		kr.partWts[light]+kr.graph.VertexWeight(lightest) >= kr.partWts[heavy] {
		return false
	}
	kr.move(lightest, light)
	return true
}

// refine runs up to maxPasses greedy passes. a pass repeatedly takes the vertex
// with the highest positive gain from a priority queue and moves it; a vertex
// moves at most once per pass.
func (kr *kwayRefiner) refine(maxPasses int) {
	n := kr.graph.NumVertices()
	nodes := make([]*datastructure.PriorityQueueNode[int], n)
	for v := range nodes {
		nodes[v] = datastructure.NewPriorityQueueNode(0, v)
	}

	pq := datastructure.NewFourAryHeap[int]()
	pq.Preallocate(n)
	locked := make([]bool, n)

	push := func(v int) {
		q, g := kr.bestMove(v)
		node := nodes[v]
		switch {
		case q < 0 || g <= 0:
			if node.InHeap() {
				_ = pq.Remove(node)
			}
		case node.InHeap():
			_ = pq.Update(node, float64(-g))
		default:
			node.SetRank(float64(-g))
			pq.Insert(node)
		}
	}

	for pass := 0; pass < maxPasses; pass++ {
		for v := range locked {
			locked[v] = false
			push(v)
		}

		moved := 0
		for !pq.IsEmpty() {
			node, _ := pq.ExtractMin()
			v := node.GetItem()
			q, g := kr.bestMove(v)
			if q < 0 || g <= 0 {
				continue
			}
			if float64(-g) > pq.GetMinrank() {
				node.SetRank(float64(-g))
				pq.Insert(node)
				continue
			}

			kr.move(v, q)
			locked[v] = true
			moved++
			for _, e := range kr.graph.VertexHedges(v) {
				for _, u := range kr.graph.HedgePins(e) {
					if !locked[u] {
						push(u)
					}
				}
			}
		}
		if moved == 0 {
			return
		}
	}
}
