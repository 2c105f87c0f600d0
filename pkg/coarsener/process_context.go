package coarsener

import (
	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
)

// ProcessContext is the matching state of one rank for one level.
type ProcessContext struct {
	rank          int
	minVertex     int
	numLocal      int
	totalVertices int
	vtxDist       []int

	vertexWeights []int
	view          *datastructure.IncidentView
	match         []int
	partition     []int

	table  *MatchRequestTable
	ledger *ClusterWeightLedger

	clusterIndex  int
	numNotMatched int
	aveVertexWt   int
	maxVertexWt   int
}

func newProcessContext(h *datastructure.Hypergraph, view *datastructure.IncidentView,
	table *MatchRequestTable, maxVertexWt int) *ProcessContext {
	h.ResetMatchVector()
	return &ProcessContext{
		rank:          h.Rank(),
		minVertex:     h.MinVertexIndex(),
		numLocal:      h.NumLocalVertices(),
		totalVertices: h.TotalVertices(),
		vtxDist:       h.VtxDist(),
		vertexWeights: h.VertexWeights(),
		view:          view,
		match:         h.MatchVector(),
		table:         table,
		ledger:        NewClusterWeightLedger(h.NumLocalVertices()),
		numNotMatched: h.NumLocalVertices(),
		aveVertexWt:   (h.TotalWeight() + h.TotalVertices() - 1) / h.TotalVertices(),
		maxVertexWt:   maxVertexWt,
	}
}

func (pc *ProcessContext) isLocal(v int) bool {
	return v >= pc.minVertex && v < pc.minVertex+pc.numLocal
}

func (pc *ProcessContext) owner(v int) int {
	return datastructure.OwnerOf(pc.vtxDist, v)
}

func (pc *ProcessContext) newCluster(wt int) int {
	pc.clusterIndex++
	return pc.ledger.Add(wt)
}

// reductionRatio is the running local shrink factor of the level.
func (pc *ProcessContext) reductionRatio() float64 {
	remaining := pc.numNotMatched + pc.clusterIndex + pc.table.Size()
	if remaining == 0 {
		return float64(pc.numLocal)
	}
	return float64(pc.numLocal) / float64(remaining)
}

// wouldBeWeight estimates the weight of the cluster v ends up in when it follows u.
func (pc *ProcessContext) wouldBeWeight(vWt, u int) int {
	if pc.isLocal(u) {
		m := pc.match[u-pc.minVertex]
		switch {
		case m == pkg.UNMATCHED:
			return vWt + pc.vertexWeights[u-pc.minVertex]
		case m >= pkg.NON_LOCAL_MATCH:
			return vWt + pc.table.ClusterWeight(m-pkg.NON_LOCAL_MATCH) + pc.aveVertexWt
		default:
			return vWt + pc.ledger.Weight(m)
		}
	}

	if cw := pc.table.ClusterWeight(u); cw >= 0 {
		return vWt + cw + pc.aveVertexWt
	}
	return vWt + pc.aveVertexWt
}

func (pc *ProcessContext) matchSingleton(v int) {
	pc.match[v] = pc.newCluster(pc.vertexWeights[v])
	pc.numNotMatched--
}

// matchWith resolves unmatched local v against its chosen candidate u.
func (pc *ProcessContext) matchWith(v, u int) {
	vWt := pc.vertexWeights[v]

	if !pc.isLocal(u) {
		pc.match[v] = pkg.NON_LOCAL_MATCH + u
		pc.table.AddLocal(u, v, vWt, pc.owner(u))
		pc.numNotMatched--
		return
	}

	uLocal := u - pc.minVertex
	m := pc.match[uLocal]
	switch {
	case m == pkg.UNMATCHED:
		c := pc.newCluster(vWt + pc.vertexWeights[uLocal])
		pc.ledger.members[c]++
		pc.match[v] = c
		pc.match[uLocal] = c
		pc.numNotMatched -= 2
	case m >= pkg.NON_LOCAL_MATCH:
		r := m - pkg.NON_LOCAL_MATCH
		pc.match[v] = m
		pc.table.AddLocal(r, v, vWt, pc.owner(r))
		pc.numNotMatched--
	default:
		pc.match[v] = m
		pc.ledger.Grow(m, vWt)
		pc.numNotMatched--
	}
}

// matchRemainingAsSingletons gives every still unmatched vertex its own cluster.
func (pc *ProcessContext) matchRemainingAsSingletons() {
	for v := 0; v < pc.numLocal; v++ {
		if pc.match[v] == pkg.UNMATCHED {
			pc.matchSingleton(v)
		}
	}
}

// accept decides a request of weight reqWt, sent by another rank, to join local
// vertex v (global id). it returns the local cluster index and its new weight.
func (pc *ProcessContext) accept(v, reqWt int, highToLow bool) (int, int, bool) {
	local := v - pc.minVertex
	m := pc.match[local]

	switch {
	case m == pkg.UNMATCHED:
		return 0, 0, false

	case m < pkg.NON_LOCAL_MATCH:
		wt := pc.ledger.Weight(m) + reqWt
		if wt >= pc.maxVertexWt {
			return 0, 0, false
		}
		pc.ledger.Grow(m, reqWt)
		return m, wt, true

	default:
		r := m - pkg.NON_LOCAL_MATCH
		owner := pc.owner(r)
		// v's own request travels in this sweep
		if (highToLow && owner < pc.rank) || (!highToLow && owner > pc.rank) {
			return 0, 0, false
		}
		if pc.table.ClusterIndex(r) != pkg.UNRESOLVED {
			return 0, 0, false
		}
		vWt := pc.vertexWeights[local]
		wt := vWt + reqWt
		if wt >= pc.maxVertexWt {
			return 0, 0, false
		}

		pc.table.RemoveLocal(r, local, vWt)
		c := pc.newCluster(wt)
		pc.ledger.members[c]++
		pc.match[local] = c
		return c, wt, true
	}
}
