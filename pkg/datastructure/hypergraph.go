package datastructure

import (
	"sort"

	"github.com/lintang-b-s/hgpart/pkg/util"
)

// Hypergraph is one rank's share of a distributed hypergraph level. rank r owns
// the vertices [vtxDist[r], vtxDist[r+1]). every hyperedge is stored on exactly
// one rank (its home rank) and its pins are global vertex ids.
type Hypergraph struct {
	rank     int
	numProcs int

	totalVertices int
	totalWeight   int
	vtxDist       []int

	vertexWeights []int

	hedgeWeights []int
	hedgeOffsets []int
	pins         []int

	matchVector []int

	numPartitions   int
	partitionVector []int // numPartitions blocks of numLocalVertices
	partitionCuts   []int

	dontCoarsen bool
}

// NewHypergraph builds the share of rank. totalWeight is the global vertex weight.
func NewHypergraph(rank, numProcs int, vtxDist, vertexWeights []int, totalWeight int,
	hedgeWeights, hedgeOffsets, pins []int) *Hypergraph {
	util.AssertPanic(len(vtxDist) == numProcs+1, "vtxDist needs numProcs+1 entries")
	util.AssertPanic(len(vertexWeights) == vtxDist[rank+1]-vtxDist[rank], "vertex weights do not match vtxDist")
	util.AssertPanic(len(hedgeOffsets) == len(hedgeWeights)+1, "hedge offsets need numHedges+1 entries")

	matchVector := make([]int, len(vertexWeights))
	for i := range matchVector {
		matchVector[i] = -1
	}

	return &Hypergraph{
		rank:          rank,
		numProcs:      numProcs,
		totalVertices: vtxDist[numProcs],
		totalWeight:   totalWeight,
		vtxDist:       vtxDist,
		vertexWeights: vertexWeights,
		hedgeWeights:  hedgeWeights,
		hedgeOffsets:  hedgeOffsets,
		pins:          pins,
		matchVector:   matchVector,
	}
}

// BlockDistribution splits n vertices into numProcs contiguous ranges.
func BlockDistribution(n, numProcs int) []int {
	vtxDist := make([]int, numProcs+1)
	for r := 0; r <= numProcs; r++ {
		vtxDist[r] = n * r / numProcs
	}
	return vtxDist
}

func (h *Hypergraph) Rank() int {
	return h.rank
}

func (h *Hypergraph) NumProcs() int {
	return h.numProcs
}

func (h *Hypergraph) TotalVertices() int {
	return h.totalVertices
}

func (h *Hypergraph) TotalWeight() int {
	return h.totalWeight
}

func (h *Hypergraph) NumLocalVertices() int {
	return len(h.vertexWeights)
}

func (h *Hypergraph) MinVertexIndex() int {
	return h.vtxDist[h.rank]
}

func (h *Hypergraph) MaxVertexIndex() int {
	return h.vtxDist[h.rank+1]
}

func (h *Hypergraph) VtxDist() []int {
	return h.vtxDist
}

func (h *Hypergraph) IsLocal(v int) bool {
	return v >= h.vtxDist[h.rank] && v < h.vtxDist[h.rank+1]
}

// Owner returns the rank owning global vertex v.
func (h *Hypergraph) Owner(v int) int {
	return OwnerOf(h.vtxDist, v)
}

func OwnerOf(vtxDist []int, v int) int {
	// first r with vtxDist[r+1] > v
	return sort.Search(len(vtxDist)-1, func(r int) bool {
		return vtxDist[r+1] > v
	})
}

func (h *Hypergraph) VertexWeights() []int {
	return h.vertexWeights
}

func (h *Hypergraph) VertexWeight(local int) int {
	return h.vertexWeights[local]
}

func (h *Hypergraph) NumHedges() int {
	return len(h.hedgeWeights)
}

func (h *Hypergraph) HedgeWeight(e int) int {
	return h.hedgeWeights[e]
}

func (h *Hypergraph) HedgePins(e int) []int {
	return h.pins[h.hedgeOffsets[e]:h.hedgeOffsets[e+1]]
}

func (h *Hypergraph) HedgeLength(e int) int {
	return h.hedgeOffsets[e+1] - h.hedgeOffsets[e]
}

func (h *Hypergraph) NumPins() int {
	return len(h.pins)
}

// MatchVector is the slot the coarsener populates, indexed by local vertex.
func (h *Hypergraph) MatchVector() []int {
	return h.matchVector
}

func (h *Hypergraph) ResetMatchVector() {
	for i := range h.matchVector {
		h.matchVector[i] = -1
	}
}

func (h *Hypergraph) DontCoarsen() bool {
	return h.dontCoarsen
}

func (h *Hypergraph) SetDontCoarsen(dont bool) {
	h.dontCoarsen = dont
}

func (h *Hypergraph) NumPartitions() int {
	return h.numPartitions
}

// Partition returns the block ids of the local vertices in partition i.
func (h *Hypergraph) Partition(i int) []int {
	n := h.NumLocalVertices()
	return h.partitionVector[i*n : (i+1)*n]
}

func (h *Hypergraph) PartitionCut(i int) int {
	return h.partitionCuts[i]
}

func (h *Hypergraph) PartitionCuts() []int {
	return h.partitionCuts
}

func (h *Hypergraph) SetPartitionCut(i, cut int) {
	h.partitionCuts[i] = cut
}

// SetNumberOfPartitions drops every stored partition and allocates n empty ones.
func (h *Hypergraph) SetNumberOfPartitions(n int) {
	h.numPartitions = n
	h.partitionVector = make([]int, n*h.NumLocalVertices())
	h.partitionCuts = make([]int, n)
}

// SetPartitions replaces the stored partitions. parts[i] covers the local vertices.
func (h *Hypergraph) SetPartitions(parts [][]int, cuts []int) {
	h.SetNumberOfPartitions(len(parts))
	for i, part := range parts {
		copy(h.Partition(i), part)
		h.partitionCuts[i] = cuts[i]
	}
}

// RemoveBadPartitions keeps the partitions whose cut is within threshold times
// the best cut. the best partition always survives, so a threshold below one
// keeps only the best.
func (h *Hypergraph) RemoveBadPartitions(threshold float64) {
	if h.numPartitions <= 1 {
		return
	}
	bestIdx := h.bestPartitionIndex()
	limit := float64(h.partitionCuts[bestIdx]) * max(threshold, 1)
	var (
		keptParts [][]int
		keptCuts  []int
	)
	for i := 0; i < h.numPartitions; i++ {
		if i == bestIdx || float64(h.partitionCuts[i]) <= limit {
			keptParts = append(keptParts, append([]int(nil), h.Partition(i)...))
			keptCuts = append(keptCuts, h.partitionCuts[i])
		}
	}
	h.SetPartitions(keptParts, keptCuts)
}

func (h *Hypergraph) bestPartitionIndex() int {
	bestIdx := 0
	for i := 1; i < h.numPartitions; i++ {
		if h.partitionCuts[i] < h.partitionCuts[bestIdx] {
			bestIdx = i
		}
	}
	return bestIdx
}

// KeepBestPartition drops all but the lowest cut partition and returns its cut.
func (h *Hypergraph) KeepBestPartition() (int, error) {
	if h.numPartitions == 0 {
		return 0, util.WrapErrorf(nil, util.ErrInvariantViolation,
			"rank %d: no partition stored on a level of %d vertices", h.rank, h.totalVertices)
	}
	bestIdx := h.bestPartitionIndex()
	best := append([]int(nil), h.Partition(bestIdx)...)
	cut := h.partitionCuts[bestIdx]
	h.SetPartitions([][]int{best}, []int{cut})
	return cut, nil
}

// Release drops the arrays of a level that has been projected.
func (h *Hypergraph) Release() {
	h.vertexWeights = nil
	h.hedgeWeights = nil
	h.hedgeOffsets = nil
	h.pins = nil
	h.matchVector = nil
	h.partitionVector = nil
	h.partitionCuts = nil
	h.numPartitions = 0
}

// FromGlobal cuts rank's share out of a hypergraph given in full. hyperedge e is stored on rank e % numProcs.
func FromGlobal(rank, numProcs int, vertexWeights []int, hedges [][]int, hedgeWeights []int) *Hypergraph {
	vtxDist := BlockDistribution(len(vertexWeights), numProcs)
	totalWeight := 0
	for _, w := range vertexWeights {
		totalWeight += w
	}

	var (
		weights []int
		offsets = []int{0}
		pins    []int
	)
	for e, hedge := range hedges {
		if e%numProcs != rank {
			continue
		}
		weights = append(weights, hedgeWeights[e])
		pins = append(pins, hedge...)
		offsets = append(offsets, len(pins))
	}

	local := append([]int(nil), vertexWeights[vtxDist[rank]:vtxDist[rank+1]]...)
	return NewHypergraph(rank, numProcs, vtxDist, local, totalWeight, weights, offsets, pins)
}
