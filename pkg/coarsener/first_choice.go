package coarsener

import (
	"github.com/lintang-b-s/hgpart/pkg"
)

// firstChoice matches every local vertex, in visit order, with the candidate it
// is most strongly connected to among those that keep the cluster under the
// weight cap. allow, when set, filters the candidates.
func (co *Coarsener) firstChoice(pc *ProcessContext, allow func(v, u int) bool) {
	ct := newCandidateTable(pc.totalVertices, pc.view.NumPins())
	order := visitOrder(co.opts.VisitOrder, pc.vertexWeights, co.rng)
	limit := indexLimit(pc.numLocal, co.opts.ReductionRatio)

	for index, v := range order {
		if pc.match[v] != pkg.UNMATCHED {
			continue
		}

		vGlobal := v + pc.minVertex
		vWt := pc.vertexWeights[v]
		for _, e := range pc.view.VertexHedges(v) {
			pins := pc.view.HedgePins(e)
			score := float64(pc.view.HedgeWeight(e))
			if co.opts.DivByHedgeLen {
				score /= float64(len(pins) - 1)
			}

			for _, u := range pins {
				if u == vGlobal {
					continue
				}
				pos, ok := ct.lookup(u)
				if !ok {
					if allow != nil && !allow(v, u) {
						continue
					}
					pos = ct.add(u, pc.wouldBeWeight(vWt, u))
				}
				ct.entries[pos].score += score
			}
		}

		best := -1
		bestMetric := 0.0
		for i, cand := range ct.entries {
			if cand.wouldBe > pc.maxVertexWt {
				continue
			}
			metric := cand.score
			if co.opts.DivByCluWt {
				metric /= float64(cand.wouldBe)
			}
			if metric > bestMetric {
				best = i
				bestMetric = metric
			}
		}

		if best < 0 {
			pc.matchSingleton(v)
		} else {
			pc.matchWith(v, ct.entries[best].vertex)
		}
		ct.clear()

		if index > limit {
			break
		}
	}

	pc.matchRemainingAsSingletons()
}

// sameBlock admits only unmatched or locally clustered vertices of v's block.
func (pc *ProcessContext) sameBlock(v, u int) bool {
	if !pc.isLocal(u) {
		return false
	}
	local := u - pc.minVertex
	return pc.partition[local] == pc.partition[v] && pc.match[local] < pkg.NON_LOCAL_MATCH
}
