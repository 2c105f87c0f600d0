package partitioner

import (
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
)

// subHypergraph is the part of a serial hypergraph induced by a vertex subset.
// hyperedges keep only their pins inside the subset and are dropped below two pins.
type subHypergraph struct {
	vertices     []int // sub id -> original id
	weights      []int
	totalWeight  int
	hedges       [][]int
	hedgeWeights []int
	vertexHedges [][]int
}

func newSubHypergraph(sh *datastructure.SerialHypergraph, vertices []int) *subHypergraph {
	sub := &subHypergraph{
		vertices:     vertices,
		weights:      make([]int, len(vertices)),
		vertexHedges: make([][]int, len(vertices)),
	}

	index := make(map[int]int, len(vertices))
	for i, v := range vertices {
		index[v] = i
		sub.weights[i] = sh.VertexWeight(v)
		sub.totalWeight += sub.weights[i]
	}

	seen := make(map[int]struct{})
	for _, v := range vertices {
		for _, e := range sh.VertexHedges(v) {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}

			var pins []int
			for _, u := range sh.HedgePins(e) {
				if i, ok := index[u]; ok {
					pins = append(pins, i)
				}
			}
			if len(pins) < 2 {
				continue
			}
			id := len(sub.hedges)
			sub.hedges = append(sub.hedges, pins)
			sub.hedgeWeights = append(sub.hedgeWeights, sh.HedgeWeight(e))
			for _, i := range pins {
				sub.vertexHedges[i] = append(sub.vertexHedges[i], id)
			}
		}
	}
	return sub
}

func (sub *subHypergraph) numVertices() int {
	return len(sub.vertices)
}

// bfsOrder visits every vertex, starting at start and then at the lowest unvisited id of each further component.
func (sub *subHypergraph) bfsOrder(start int) []int {
	n := sub.numVertices()
	order := make([]int, 0, n)
	visited := make([]bool, n)
	hedgeDone := make([]bool, len(sub.hedges))

	visit := func(root int) {
		visited[root] = true
		order = append(order, root)
		for head := len(order) - 1; head < len(order); head++ {
			u := order[head]
			for _, e := range sub.vertexHedges[u] {
				if hedgeDone[e] {
					continue
				}
				hedgeDone[e] = true
				for _, w := range sub.hedges[e] {
					if !visited[w] {
						visited[w] = true
						order = append(order, w)
					}
				}
			}
		}
	}

	visit(start)
	for v := 0; v < n; v++ {
		if !visited[v] {
			visit(v)
		}
	}
	return order
}

func (sub *subHypergraph) cutSize(side []bool) int {
	cut := 0
	for e, pins := range sub.hedges {
		for _, v := range pins[1:] {
			if side[v] != side[pins[0]] {
				cut += sub.hedgeWeights[e]
				break
			}
		}
	}
	return cut
}

// lawlerNetwork models every hyperedge e as a pair of nodes joined by an edge of
// capacity w(e), linked to its pins by infinite edges. it returns the network
// with the vertex nodes first, followed by the source and the sink.
func (sub *subHypergraph) lawlerNetwork(sources, sinks []int) (*FlowNetwork, int, int) {
	n := sub.numVertices()
	m := len(sub.hedges)
	source, sink := n+2*m, n+2*m+1
	net := NewFlowNetwork(n + 2*m + 2)

	for e, pins := range sub.hedges {
		in, out := n+2*e, n+2*e+1
		net.AddEdge(in, out, sub.hedgeWeights[e])
		for _, v := range pins {
			net.AddInfEdge(v, in)
			net.AddInfEdge(out, v)
		}
	}
	for _, s := range sources {
		net.AddInfEdge(source, s)
	}
	for _, t := range sinks {
		net.AddInfEdge(t, sink)
	}
	return net, source, sink
}
