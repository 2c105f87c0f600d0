package datastructure

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg/comm"
)

// CalcCutsizes recomputes the cut of every stored partition: the total weight of
// hyperedges spanning more than one block.
func (h *Hypergraph) CalcCutsizes(ctx context.Context, c comm.Communicator) error {
	k := h.numPartitions
	remote, err := h.vertexLookup(ctx, c, h.remotePins(), k, func(local int, out []int) {
		for i := 0; i < k; i++ {
			out[i] = h.partitionVector[i*h.NumLocalVertices()+local]
		}
	})
	if err != nil {
		return err
	}

	partOf := func(v, i int) int {
		if h.IsLocal(v) {
			return h.Partition(i)[v-h.MinVertexIndex()]
		}
		return remote[v][i]
	}

	cuts := make([]int, k)
	for e := 0; e < h.NumHedges(); e++ {
		pins := h.HedgePins(e)
		if len(pins) < 2 {
			continue
		}
		for i := 0; i < k; i++ {
			first := partOf(pins[0], i)
			for _, v := range pins[1:] {
				if partOf(v, i) != first {
					cuts[i] += h.hedgeWeights[e]
					break
				}
			}
		}
	}

	cuts, err = comm.AllReduceSumSlice(ctx, c, cuts)
	if err != nil {
		return err
	}
	copy(h.partitionCuts, cuts)
	return nil
}

// PartWeights returns the global weight of each of the numParts blocks of partition i.
func (h *Hypergraph) PartWeights(ctx context.Context, c comm.Communicator, i, numParts int) ([]int, error) {
	weights := make([]int, numParts)
	for v, p := range h.Partition(i) {
		weights[p] += h.vertexWeights[v]
	}
	return comm.AllReduceSumSlice(ctx, c, weights)
}
