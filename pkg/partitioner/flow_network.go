package partitioner

import (
	"github.com/lintang-b-s/hgpart/pkg"
)

type flowEdge struct {
	to       int
	capacity int
	flow     int
}

func (e *flowEdge) residual() int {
	return e.capacity - e.flow
}

// FlowNetwork is a residual network. the reverse of edge i is edge i^1.
type FlowNetwork struct {
	edges    []flowEdge
	adj      [][]int
	level    []int
	lastEdge []int
}

func NewFlowNetwork(numNodes int) *FlowNetwork {
	return &FlowNetwork{
		adj:      make([][]int, numNodes),
		level:    make([]int, numNodes),
		lastEdge: make([]int, numNodes),
	}
}

func (fn *FlowNetwork) AddEdge(u, v, capacity int) {
	fn.adj[u] = append(fn.adj[u], len(fn.edges))
	fn.edges = append(fn.edges, flowEdge{to: v, capacity: capacity})
	fn.adj[v] = append(fn.adj[v], len(fn.edges))
	fn.edges = append(fn.edges, flowEdge{to: u})
}

func (fn *FlowNetwork) AddInfEdge(u, v int) {
	fn.AddEdge(u, v, pkg.LARGE_CONSTANT)
}
