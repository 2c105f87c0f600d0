package coarsener

import (
	"sort"

	"github.com/lintang-b-s/hgpart/pkg"
)

// hedgeMatch walks the hyperedges from short to long (heavier first on equal
// length) and merges all still unmatched local pins of each one. a lone
// unmatched local pin of an otherwise untouched hyperedge follows the first
// remote pin instead. used on levels too large for a per-vertex scan.
func (co *Coarsener) hedgeMatch(pc *ProcessContext) {
	view := pc.view
	order := make([]int, view.NumHedges())
	for e := range order {
		order[e] = e
	}
	sort.SliceStable(order, func(i, j int) bool {
		li, lj := view.HedgeLength(order[i]), view.HedgeLength(order[j])
		if li != lj {
			return li < lj
		}
		return view.HedgeWeight(order[i]) > view.HedgeWeight(order[j])
	})

	maxWt := pc.maxVertexWt
	var unmatched []int
	for _, e := range order {
		unmatched = unmatched[:0]
		unmatchedWt := 0
		numNonLocals := 0
		allUnmatched := true
		firstFreeRemote := -1

		for _, u := range view.HedgePins(e) {
			if pc.isLocal(u) {
				local := u - pc.minVertex
				if pc.match[local] == pkg.UNMATCHED {
					unmatched = append(unmatched, local)
					unmatchedWt += pc.vertexWeights[local]
				} else {
					allUnmatched = false
				}
				continue
			}

			numNonLocals++
			if pc.table.Entry(u) != nil {
				allUnmatched = false
			} else if firstFreeRemote < 0 {
				firstFreeRemote = u
			}
		}

		switch {
		case len(unmatched) > 1 && unmatchedWt < maxWt:
			c := pc.newCluster(unmatchedWt)
			for _, local := range unmatched {
				pc.match[local] = c
			}
			pc.ledger.members[c] = len(unmatched)
			pc.numNotMatched -= len(unmatched)

		case len(unmatched) == 1 && allUnmatched && firstFreeRemote >= 0:
			v := unmatched[0]
			if pc.vertexWeights[v] < maxWt-pc.aveVertexWt*numNonLocals {
				pc.match[v] = pkg.NON_LOCAL_MATCH + firstFreeRemote
				pc.table.AddLocal(firstFreeRemote, v, pc.vertexWeights[v], pc.owner(firstFreeRemote))
				pc.numNotMatched--
			}
		}

		if pc.reductionRatio() > co.opts.ReductionRatio {
			break
		}
	}

	pc.matchRemainingAsSingletons()
}
