package datastructure

import (
	"context"
	"math"

	"github.com/lintang-b-s/hgpart/pkg/comm"
)

// IncidentView holds a copy of every hyperedge incident on this rank's vertices,
// plus the local vertex to hyperedge adjacency over those copies.
type IncidentView struct {
	minVertex int

	hedgeWeights []int
	hedgeOffsets []int
	pins         []int

	vertexOffsets []int
	vertexHedges  []int
}

func (iv *IncidentView) NumHedges() int {
	return len(iv.hedgeWeights)
}

func (iv *IncidentView) NumPins() int {
	return len(iv.pins)
}

func (iv *IncidentView) HedgeWeight(e int) int {
	return iv.hedgeWeights[e]
}

func (iv *IncidentView) HedgePins(e int) []int {
	return iv.pins[iv.hedgeOffsets[e]:iv.hedgeOffsets[e+1]]
}

func (iv *IncidentView) HedgeLength(e int) int {
	return iv.hedgeOffsets[e+1] - iv.hedgeOffsets[e]
}

// VertexHedges returns the view hyperedges incident on local vertex v.
func (iv *IncidentView) VertexHedges(v int) []int {
	return iv.vertexHedges[iv.vertexOffsets[v]:iv.vertexOffsets[v+1]]
}

// IncidentHyperedges ships every home hyperedge of at most maxLen pins to each
// rank owning one of its pins. hyperedges with a single pin are skipped.
func (h *Hypergraph) IncidentHyperedges(ctx context.Context, c comm.Communicator, maxLen int) (*IncidentView, error) {
	send := make([][]int, h.numProcs)
	mark := make([]int, h.numProcs)
	for r := range mark {
		mark[r] = -1
	}

	for e := 0; e < h.NumHedges(); e++ {
		length := h.HedgeLength(e)
		if length < 2 || length > maxLen {
			continue
		}
		for _, v := range h.HedgePins(e) {
			owner := h.Owner(v)
			if mark[owner] == e {
				continue
			}
			mark[owner] = e
			send[owner] = append(send[owner], h.hedgeWeights[e], length)
			send[owner] = append(send[owner], h.HedgePins(e)...)
		}
	}

	recv, err := c.AllToAll(ctx, send)
	if err != nil {
		return nil, err
	}

	iv := &IncidentView{
		minVertex:    h.MinVertexIndex(),
		hedgeOffsets: []int{0},
	}
	for _, data := range recv {
		for j := 0; j < len(data); {
			wt, length := data[j], data[j+1]
			j += 2
			iv.hedgeWeights = append(iv.hedgeWeights, wt)
			iv.pins = append(iv.pins, data[j:j+length]...)
			iv.hedgeOffsets = append(iv.hedgeOffsets, len(iv.pins))
			j += length
		}
	}

	n := h.NumLocalVertices()
	iv.vertexOffsets = make([]int, n+1)
	for _, v := range iv.pins {
		if h.IsLocal(v) {
			iv.vertexOffsets[v-iv.minVertex+1]++
		}
	}
	for i := 0; i < n; i++ {
		iv.vertexOffsets[i+1] += iv.vertexOffsets[i]
	}
	iv.vertexHedges = make([]int, iv.vertexOffsets[n])
	fill := make([]int, n)
	for e := 0; e < iv.NumHedges(); e++ {
		for _, v := range iv.HedgePins(e) {
			if !h.IsLocal(v) {
				continue
			}
			local := v - iv.minVertex
			iv.vertexHedges[iv.vertexOffsets[local]+fill[local]] = e
			fill[local]++
		}
	}
	return iv, nil
}

// PercentileLength returns the smallest hyperedge length such that percentile
// percent of all hyperedges are no longer. 100 disables the filter.
func (h *Hypergraph) PercentileLength(ctx context.Context, c comm.Communicator, percentile int) (int, error) {
	if percentile >= 100 {
		return math.MaxInt, nil
	}

	localMax := 0
	for e := 0; e < h.NumHedges(); e++ {
		if l := h.HedgeLength(e); l > localMax {
			localMax = l
		}
	}
	maxLen, err := comm.AllReduceMax(ctx, c, localMax)
	if err != nil {
		return 0, err
	}

	histogram := make([]int, maxLen+1)
	for e := 0; e < h.NumHedges(); e++ {
		histogram[h.HedgeLength(e)]++
	}
	histogram, err = comm.AllReduceSumSlice(ctx, c, histogram)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, cnt := range histogram {
		total += cnt
	}
	target := int(math.Ceil(float64(total) * float64(percentile) / 100.0))
	acc := 0
	for l, cnt := range histogram {
		acc += cnt
		if acc >= target && acc > 0 {
			return l, nil
		}
	}
	return maxLen, nil
}

// RemotePinParts returns the block, in partition i, of every pin of view owned by another rank.
func (h *Hypergraph) RemotePinParts(ctx context.Context, c comm.Communicator, view *IncidentView, i int) (map[int]int, error) {
	var remote []int
	for _, v := range view.pins {
		if !h.IsLocal(v) {
			remote = append(remote, v)
		}
	}

	part := h.Partition(i)
	values, err := h.vertexLookup(ctx, c, remote, 1, func(local int, out []int) {
		out[0] = part[local]
	})
	if err != nil {
		return nil, err
	}

	parts := make(map[int]int, len(values))
	for v, val := range values {
		parts[v] = val[0]
	}
	return parts, nil
}
