package partitioner

import (
	"container/list"
	"math"

	"github.com/lintang-b-s/hgpart/pkg/util"
)

type DinicMaxFlow struct {
	network     *FlowNetwork
	numVertices int // the first numVertices nodes are the ones reported in the min cut
}

func NewDinicMaxFlow(network *FlowNetwork, numVertices int) *DinicMaxFlow {
	return &DinicMaxFlow{network: network, numVertices: numVertices}
}

func (dmf *DinicMaxFlow) bfsLevelGraph(source, target int) bool {
	net := dmf.network
	for v := range net.level {
		net.level[v] = INVALID_LEVEL
	}

	levelQueue := list.New()
	levelQueue.PushBack(source)
	net.level[source] = 0

	for levelQueue.Len() > 0 {
		u := levelQueue.Remove(levelQueue.Front()).(int)
		if u == target {
			break
		}

		level := net.level[u] + 1
		for _, ei := range net.adj[u] {
			edge := &net.edges[ei]
			if edge.residual() > 0 && net.level[edge.to] == INVALID_LEVEL {
				net.level[edge.to] = level
				levelQueue.PushBack(edge.to)
			}
		}
	}
	return net.level[target] != INVALID_LEVEL
}

func (dmf *DinicMaxFlow) dfsAugmentPath(u, t, f int) int {
	if u == t || f == 0 {
		return f
	}

	net := dmf.network
	for ; net.lastEdge[u] < len(net.adj[u]); net.lastEdge[u]++ {
		ei := net.adj[u][net.lastEdge[u]]
		edge := &net.edges[ei]
		if net.level[edge.to] != net.level[u]+1 {
			continue
		}

		if pushed := dmf.dfsAugmentPath(edge.to, t, util.MinInt(edge.residual(), f)); pushed > 0 {
			edge.flow += pushed
			net.edges[ei^1].flow -= pushed
			return pushed
		}
	}
	return 0
}

func (dmf *DinicMaxFlow) resetCurrentEdges() {
	for i := range dmf.network.lastEdge {
		dmf.network.lastEdge[i] = 0
	}
}

// ComputeMaxflowMinCut runs Dinic from s to t. O(V^2 E).
func (dmf *DinicMaxFlow) ComputeMaxflowMinCut(s, t int) *MinCut {
	minCut := NewMinCut(dmf.numVertices)
	maxFlow := 0

	for dmf.bfsLevelGraph(s, t) {
		dmf.resetCurrentEdges()
		for {
			flow := dmf.dfsAugmentPath(s, t, math.MaxInt)
			if flow == 0 {
				break
			}
			maxFlow += flow
		}
	}

	// the last bfs marks the nodes still reachable from s
	dmf.makeMinCutFlags(minCut, maxFlow)
	return minCut
}

func (dmf *DinicMaxFlow) makeMinCutFlags(minCut *MinCut, maxflow int) {
	for u := 0; u < dmf.numVertices; u++ {
		if dmf.network.level[u] != INVALID_LEVEL {
			minCut.SetFlag(u, true)
		}
	}
	minCut.setMinCut(maxflow)
}
