package partitioner

import (
	"container/list"

	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"golang.org/x/exp/rand"
	"go.uber.org/zap"
)

type bisectionTask struct {
	vertices  []int
	numParts  int
	firstPart int
}

// RecursiveBisection splits a serial hypergraph into numParts blocks by
// repeated flow bisection. a task of k blocks gets a first side of weight
// floor(k/2)/k.
type RecursiveBisection struct {
	graph          *datastructure.SerialHypergraph
	numParts       int
	sourceSinkRate float64
	imbalance      float64
	flowSeeds      int
	workers        int
	finalPartition []int
	rng            *rand.Rand
	logger         *zap.Logger
}

func NewRecursiveBisection(graph *datastructure.SerialHypergraph, numParts int, sourceSinkRate, imbalance float64,
	flowSeeds, workers int, rng *rand.Rand, logger *zap.Logger) *RecursiveBisection {
	finalPartition := make([]int, graph.NumVertices())
	for i := range finalPartition {
		finalPartition[i] = INVALID_PARTITION_ID
	}
	return &RecursiveBisection{
		graph:          graph,
		numParts:       numParts,
		sourceSinkRate: sourceSinkRate,
		imbalance:      imbalance,
		flowSeeds:      flowSeeds,
		workers:        workers,
		finalPartition: finalPartition,
		rng:            rng,
		logger:         logger,
	}
}

func (rb *RecursiveBisection) Partition() []int {
	vertices := make([]int, rb.graph.NumVertices())
	for v := range vertices {
		vertices[v] = v
	}

	queue := list.New()
	queue.PushBack(bisectionTask{vertices: vertices, numParts: rb.numParts})

	for queue.Len() > 0 {
		task := queue.Remove(queue.Front()).(bisectionTask)
		if task.numParts == 1 || len(task.vertices) < 2 {
			rb.assignFinalPartition(task.vertices, task.firstPart)
			continue
		}

		k1 := task.numParts / 2
		sub := newSubHypergraph(rb.graph, task.vertices)
		fb := newFlowBisection(sub, rb.sourceSinkRate, rb.imbalance, rb.workers)
		best := fb.compute(float64(k1)/float64(task.numParts), rb.flowSeeds, rb.rng)

		partOne, partTwo := rb.applyBisection(best, sub)
		rb.logger.Debug("bisected",
			zap.Int("vertices", len(task.vertices)),
			zap.Int("parts", task.numParts),
			zap.Int("cut", best.cut),
			zap.Int("flow", best.flow),
		)
		queue.PushBack(bisectionTask{vertices: partOne, numParts: k1, firstPart: task.firstPart})
		queue.PushBack(bisectionTask{vertices: partTwo, numParts: task.numParts - k1, firstPart: task.firstPart + k1})
	}
	return rb.finalPartition
}

func (rb *RecursiveBisection) applyBisection(b bisection, sub *subHypergraph) ([]int, []int) {
	var partOne, partTwo []int
	for i, v := range sub.vertices {
		if b.side[i] {
			partOne = append(partOne, v)
		} else {
			partTwo = append(partTwo, v)
		}
	}
	return partOne, partTwo
}

func (rb *RecursiveBisection) assignFinalPartition(vertices []int, part int) {
	for _, v := range vertices {
		rb.finalPartition[v] = part
	}
}
