package datastructure

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg/comm"
)

// SerialHypergraph is a whole hypergraph held by one rank, in compressed sparse row form.
type SerialHypergraph struct {
	vertexWeights []int
	totalWeight   int

	hedgeWeights []int
	hedgeOffsets []int
	pins         []int

	vertexOffsets []int
	vertexHedges  []int
}

func NewSerialHypergraph(vertexWeights, hedgeWeights, hedgeOffsets, pins []int) *SerialHypergraph {
	sh := &SerialHypergraph{
		vertexWeights: vertexWeights,
		hedgeWeights:  hedgeWeights,
		hedgeOffsets:  hedgeOffsets,
		pins:          pins,
	}
	for _, w := range vertexWeights {
		sh.totalWeight += w
	}

	n := len(vertexWeights)
	sh.vertexOffsets = make([]int, n+1)
	for _, v := range pins {
		sh.vertexOffsets[v+1]++
	}
	for i := 0; i < n; i++ {
		sh.vertexOffsets[i+1] += sh.vertexOffsets[i]
	}
	sh.vertexHedges = make([]int, len(pins))
	fill := make([]int, n)
	for e := 0; e < len(hedgeWeights); e++ {
		for _, v := range sh.HedgePins(e) {
			sh.vertexHedges[sh.vertexOffsets[v]+fill[v]] = e
			fill[v]++
		}
	}
	return sh
}

func (sh *SerialHypergraph) NumVertices() int {
	return len(sh.vertexWeights)
}

func (sh *SerialHypergraph) NumHedges() int {
	return len(sh.hedgeWeights)
}

func (sh *SerialHypergraph) TotalWeight() int {
	return sh.totalWeight
}

func (sh *SerialHypergraph) VertexWeight(v int) int {
	return sh.vertexWeights[v]
}

func (sh *SerialHypergraph) HedgeWeight(e int) int {
	return sh.hedgeWeights[e]
}

func (sh *SerialHypergraph) HedgePins(e int) []int {
	return sh.pins[sh.hedgeOffsets[e]:sh.hedgeOffsets[e+1]]
}

func (sh *SerialHypergraph) VertexHedges(v int) []int {
	return sh.vertexHedges[sh.vertexOffsets[v]:sh.vertexOffsets[v+1]]
}

// CutSize is the weight of hyperedges spanning more than one block of part.
func (sh *SerialHypergraph) CutSize(part []int) int {
	cut := 0
	for e := 0; e < sh.NumHedges(); e++ {
		pins := sh.HedgePins(e)
		if len(pins) < 2 {
			continue
		}
		for _, v := range pins[1:] {
			if part[v] != part[pins[0]] {
				cut += sh.hedgeWeights[e]
				break
			}
		}
	}
	return cut
}

// GatherSerial replicates the whole level on every rank. vertex ids are unchanged.
func GatherSerial(ctx context.Context, c comm.Communicator, h *Hypergraph) (*SerialHypergraph, error) {
	weights, err := c.AllGather(ctx, h.vertexWeights)
	if err != nil {
		return nil, err
	}

	var hedges []int
	for e := 0; e < h.NumHedges(); e++ {
		hedges = append(hedges, h.hedgeWeights[e], h.HedgeLength(e))
		hedges = append(hedges, h.HedgePins(e)...)
	}
	allHedges, err := c.AllGather(ctx, hedges)
	if err != nil {
		return nil, err
	}

	vertexWeights := make([]int, 0, h.totalVertices)
	for _, w := range weights {
		vertexWeights = append(vertexWeights, w...)
	}

	var (
		hedgeWeights []int
		hedgeOffsets = []int{0}
		pins         []int
	)
	for _, data := range allHedges {
		for j := 0; j < len(data); {
			wt, length := data[j], data[j+1]
			j += 2
			hedgeWeights = append(hedgeWeights, wt)
			pins = append(pins, data[j:j+length]...)
			hedgeOffsets = append(hedgeOffsets, len(pins))
			j += length
		}
	}
	return NewSerialHypergraph(vertexWeights, hedgeWeights, hedgeOffsets, pins), nil
}
