package datastructure

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"golang.org/x/exp/rand"
)

// Redistribute renumbers the vertices of h and moves them to their new owners:
// local vertex v becomes global vertex newIDs[v] of the returned level, which
// has an even block distribution. vertex weights and stored partitions move
// with the vertices, hyperedges stay on their home rank with relabelled pins.
// the match vector of h is set to newIDs, so h.ProjectPartitions(ctx, c, out)
// maps the partitions of out back onto h. every rank must call it.
func (h *Hypergraph) Redistribute(ctx context.Context, c comm.Communicator, newIDs []int) (*Hypergraph, error) {
	if len(newIDs) != h.NumLocalVertices() {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput,
			"rank %d: %d new ids for %d vertices", h.rank, len(newIDs), h.NumLocalVertices())
	}
	minIdx := h.MinVertexIndex()

	remote, err := h.vertexLookup(ctx, c, h.remotePins(), 1, func(local int, out []int) {
		out[0] = newIDs[local]
	})
	if err != nil {
		return nil, err
	}
	pins := make([]int, len(h.pins))
	for i, v := range h.pins {
		if h.IsLocal(v) {
			pins[i] = newIDs[v-minIdx]
		} else {
			pins[i] = remote[v][0]
		}
	}

	// newID, weight, one block id per stored partition
	k := h.numPartitions
	width := 2 + k
	vtxDist := BlockDistribution(h.totalVertices, h.numProcs)
	send := make([][]int, h.numProcs)
	for v, id := range newIDs {
		if id < 0 || id >= h.totalVertices {
			return nil, util.WrapErrorf(nil, util.ErrBadParamInput,
				"rank %d: new id %d of vertex %d out of range", h.rank, id, v+minIdx)
		}
		owner := OwnerOf(vtxDist, id)
		send[owner] = append(send[owner], id, h.vertexWeights[v])
		for i := 0; i < k; i++ {
			send[owner] = append(send[owner], h.Partition(i)[v])
		}
	}
	recv, err := c.AllToAll(ctx, send)
	if err != nil {
		return nil, err
	}

	lo := vtxDist[h.rank]
	weights := make([]int, vtxDist[h.rank+1]-lo)
	out := NewHypergraph(h.rank, h.numProcs, vtxDist, weights, h.totalWeight, h.hedgeWeights, h.hedgeOffsets, pins)
	out.SetNumberOfPartitions(k)
	copy(out.partitionCuts, h.partitionCuts)

	filled := make([]bool, len(weights))
	received := 0
	for _, data := range recv {
		for j := 0; j+width <= len(data); j += width {
			local := data[j] - lo
			if filled[local] {
				return nil, util.WrapErrorf(nil, util.ErrInvariantViolation,
					"rank %d: vertex %d arrived twice, new ids are not a permutation", h.rank, data[j])
			}
			filled[local] = true
			weights[local] = data[j+1]
			for i := 0; i < k; i++ {
				out.Partition(i)[local] = data[j+2+i]
			}
			received++
		}
	}
	if received != len(weights) {
		return nil, util.WrapErrorf(nil, util.ErrInvariantViolation,
			"rank %d received %d of its %d vertices, new ids are not a permutation", h.rank, received, len(weights))
	}

	copy(h.matchVector, newIDs)
	return out, nil
}

// BlockOrder numbers the vertices block by block of partition 0, in rank order
// inside a block. laid out evenly, most vertices of a block then share a rank.
// every rank must call it.
func (h *Hypergraph) BlockOrder(ctx context.Context, c comm.Communicator) ([]int, error) {
	if h.numPartitions < 1 {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "ordering by block needs a stored partition")
	}
	part := h.Partition(0)
	localParts := 0
	for _, p := range part {
		localParts = max(localParts, p+1)
	}
	numParts, err := comm.AllReduceMax(ctx, c, localParts)
	if err != nil {
		return nil, err
	}

	counts := make([]int, numParts)
	for _, p := range part {
		counts[p]++
	}
	all, err := c.AllGather(ctx, counts)
	if err != nil {
		return nil, err
	}

	next := make([]int, numParts)
	offset := 0
	for b := 0; b < numParts; b++ {
		next[b] = offset
		for r := range all {
			if r < h.rank {
				next[b] += all[r][b]
			}
			offset += all[r][b]
		}
	}

	ids := make([]int, len(part))
	for v, p := range part {
		ids[v] = next[p]
		next[p]++
	}
	return ids, nil
}

// RandomOrder returns the new ids of the local vertices under a permutation of
// all vertex ids drawn from seed. every rank draws the same permutation.
func (h *Hypergraph) RandomOrder(seed uint64) []int {
	perm := rand.New(rand.NewSource(seed)).Perm(h.totalVertices)
	return append([]int(nil), perm[h.MinVertexIndex():h.MaxVertexIndex()]...)
}
