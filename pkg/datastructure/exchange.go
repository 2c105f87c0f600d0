package datastructure

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/util"
)

// vertexLookup asks the owners of vertices for width values per vertex. fill writes
// the values of one of the caller's own local vertices into out. every rank must call it.
func (h *Hypergraph) vertexLookup(ctx context.Context, c comm.Communicator, vertices []int, width int,
	fill func(local int, out []int)) (map[int][]int, error) {

	send := make([][]int, h.numProcs)
	seen := make(map[int]struct{}, len(vertices))
	for _, v := range vertices {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		owner := h.Owner(v)
		send[owner] = append(send[owner], v)
	}

	requests, err := c.AllToAll(ctx, send)
	if err != nil {
		return nil, err
	}

	minIdx := h.MinVertexIndex()
	replies := make([][]int, h.numProcs)
	for src, ids := range requests {
		reply := make([]int, len(ids)*width)
		for j, v := range ids {
			if !h.IsLocal(v) {
				return nil, util.WrapErrorf(nil, util.ErrInvariantViolation,
					"rank %d asked rank %d for vertex %d it does not own", src, h.rank, v)
			}
			fill(v-minIdx, reply[j*width:(j+1)*width])
		}
		replies[src] = reply
	}

	answers, err := c.AllToAll(ctx, replies)
	if err != nil {
		return nil, err
	}

	values := make(map[int][]int, len(seen))
	for owner, ids := range send {
		for j, v := range ids {
			values[v] = answers[owner][j*width : (j+1)*width]
		}
	}
	return values, nil
}

func (h *Hypergraph) remotePins() []int {
	var remote []int
	for _, v := range h.pins {
		if !h.IsLocal(v) {
			remote = append(remote, v)
		}
	}
	return remote
}
