package partitioner

import (
	"math"

	"github.com/lintang-b-s/hgpart/pkg/concurrent"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"golang.org/x/exp/rand"
)

type minCutJob struct {
	start int
}

func newMinCutJob(start int) minCutJob {
	return minCutJob{start: start}
}

func (mj minCutJob) getStart() int {
	return mj.start
}

type flowBisection struct {
	sub            *subHypergraph
	sourceSinkRate float64
	imbalance      float64
	workers        int
}

func newFlowBisection(sub *subHypergraph, sourceSinkRate, imbalance float64, workers int) *flowBisection {
	return &flowBisection{
		sub:            sub,
		sourceSinkRate: sourceSinkRate,
		imbalance:      imbalance,
		workers:        workers,
	}
}

// compute splits the sub-hypergraph so that the first side weighs about
// fraction of it. every seed vertex gives one candidate: the seeds are the two
// ends of a BFS ordering from it, the cut is a min cut of the Lawler network
// between them, rebalanced along the ordering. the lowest cut wins, then the
// best balance, then the earliest seed.
func (fb *flowBisection) compute(fraction float64, numSeeds int, rng *rand.Rand) bisection {
	n := fb.sub.numVertices()
	target := int(math.Round(float64(fb.sub.totalWeight) * fraction))

	jobs := make([]minCutJob, numSeeds)
	for i := range jobs {
		jobs[i] = newMinCutJob(rng.Intn(n))
	}

	computeMinCut := func(job minCutJob) bisection {
		order := fb.sub.bfsOrder(job.getStart())
		numEnds := util.MaxInt(1, int(float64(n)*fb.sourceSinkRate))
		numEnds = util.MinInt(numEnds, n/2)

		side := make([]bool, n)
		flow := 0
		if numEnds > 0 {
			net, s, t := fb.sub.lawlerNetwork(order[:numEnds], order[n-numEnds:])
			cut := NewDinicMaxFlow(net, n).ComputeMaxflowMinCut(s, t)
			for v := 0; v < n; v++ {
				side[v] = cut.GetFlag(v)
			}
			flow = cut.GetMinCut()
		}

		firstWeight := fb.rebalance(side, order, target)
		return bisection{
			side:         side,
			cut:          fb.sub.cutSize(side),
			flow:         flow,
			balanceDelta: util.Abs(firstWeight - target),
		}
	}

	results := concurrent.Map(fb.workers, jobs, computeMinCut)

	best := results[0]
	for _, b := range results[1:] {
		if b.cut < best.cut || (b.cut == best.cut && b.balanceDelta < best.balanceDelta) {
			best = b
		}
	}
	return best
}

// rebalance moves vertices along order until the first side is within the
// allowed imbalance of target. vertices leave the first side from the far end
// of order and join it from the near end. it returns the first side weight.
func (fb *flowBisection) rebalance(side []bool, order []int, target int) int {
	weight := 0
	for v, first := range side {
		if first {
			weight += fb.sub.weights[v]
		}
	}

	lo := int(math.Floor(float64(target) * (1 - fb.imbalance)))
	hi := int(math.Ceil(float64(target) * (1 + fb.imbalance)))

	for i := len(order) - 1; i >= 0 && weight > hi; i-- {
		if v := order[i]; side[v] {
			side[v] = false
			weight -= fb.sub.weights[v]
		}
	}
	for i := 0; i < len(order) && weight < lo; i++ {
		if v := order[i]; !side[v] {
			side[v] = true
			weight += fb.sub.weights[v]
		}
	}
	return weight
}
