package datastructure

import (
	"context"
	"strconv"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"golang.org/x/exp/slices"
)

// Contract builds the coarser level from the resolved match vector of h, whose
// entries are global cluster ids distributed by clusterDist. single-pin coarse
// hyperedges are dropped and identical ones merge their weights. with
// carryPartition, the single stored partition of h moves onto the coarse level.
func Contract(ctx context.Context, c comm.Communicator, h *Hypergraph, clusterDist []int,
	carryPartition bool) (*Hypergraph, error) {

	rank := h.rank
	numClusters := clusterDist[rank+1] - clusterDist[rank]
	carry := carryPartition && h.numPartitions == 1

	stride := 2
	if carry {
		stride = 3
	}

	send := make([][]int, h.numProcs)
	for v, cid := range h.matchVector {
		if cid < 0 || cid >= clusterDist[h.numProcs] {
			return nil, util.WrapErrorf(nil, util.ErrInvariantViolation,
				"rank %d: vertex %d has unresolved match %d", rank, v+h.MinVertexIndex(), cid)
		}
		owner := OwnerOf(clusterDist, cid)
		send[owner] = append(send[owner], cid, h.vertexWeights[v])
		if carry {
			send[owner] = append(send[owner], h.Partition(0)[v])
		}
	}

	recv, err := c.AllToAll(ctx, send)
	if err != nil {
		return nil, err
	}

	coarseWeights := make([]int, numClusters)
	var coarsePart []int
	if carry {
		coarsePart = make([]int, numClusters)
	}
	for _, data := range recv {
		for j := 0; j < len(data); j += stride {
			local := data[j] - clusterDist[rank]
			coarseWeights[local] += data[j+1]
			if carry {
				coarsePart[local] = data[j+2]
			}
		}
	}

	remote, err := h.vertexLookup(ctx, c, h.remotePins(), 1, func(local int, out []int) {
		out[0] = h.matchVector[local]
	})
	if err != nil {
		return nil, err
	}

	clusterOf := func(v int) int {
		if h.IsLocal(v) {
			return h.matchVector[v-h.MinVertexIndex()]
		}
		return remote[v][0]
	}

	var (
		hedgeWeights = make([]int, 0, h.NumHedges())
		hedgeOffsets = []int{0}
		pins         = make([]int, 0, len(h.pins))
		seen         = make(map[string]int)
		buf          []int
		key          []byte
	)
	for e := 0; e < h.NumHedges(); e++ {
		buf = buf[:0]
		for _, v := range h.HedgePins(e) {
			buf = append(buf, clusterOf(v))
		}
		slices.Sort(buf)
		buf = slices.Compact(buf)
		if len(buf) < 2 {
			continue
		}

		key = key[:0]
		for _, cid := range buf {
			key = strconv.AppendInt(key, int64(cid), 36)
			key = append(key, ',')
		}
		if idx, ok := seen[string(key)]; ok {
			hedgeWeights[idx] += h.hedgeWeights[e]
			continue
		}
		seen[string(key)] = len(hedgeWeights)
		hedgeWeights = append(hedgeWeights, h.hedgeWeights[e])
		pins = append(pins, buf...)
		hedgeOffsets = append(hedgeOffsets, len(pins))
	}

	coarse := NewHypergraph(rank, h.numProcs, clusterDist, coarseWeights, h.totalWeight,
		hedgeWeights, hedgeOffsets, pins)
	if carry {
		coarse.SetPartitions([][]int{coarsePart}, []int{h.partitionCuts[0]})
	}
	return coarse, nil
}
