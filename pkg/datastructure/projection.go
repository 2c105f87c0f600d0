package datastructure

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg/comm"
)

// ProjectPartitions copies every partition of coarse onto h through the match
// vector of h. cuts carry over unchanged since contraction preserves them.
func (h *Hypergraph) ProjectPartitions(ctx context.Context, c comm.Communicator, coarse *Hypergraph) error {
	k := coarse.numPartitions

	var remoteClusters []int
	for _, cid := range h.matchVector {
		if !coarse.IsLocal(cid) {
			remoteClusters = append(remoteClusters, cid)
		}
	}

	remote, err := coarse.vertexLookup(ctx, c, remoteClusters, k, func(local int, out []int) {
		for i := 0; i < k; i++ {
			out[i] = coarse.Partition(i)[local]
		}
	})
	if err != nil {
		return err
	}

	h.SetNumberOfPartitions(k)
	minCluster := coarse.MinVertexIndex()
	for i := 0; i < k; i++ {
		part := h.Partition(i)
		coarsePart := coarse.Partition(i)
		for v, cid := range h.matchVector {
			if coarse.IsLocal(cid) {
				part[v] = coarsePart[cid-minCluster]
			} else {
				part[v] = remote[cid][i]
			}
		}
		h.partitionCuts[i] = coarse.partitionCuts[i]
	}
	return nil
}
