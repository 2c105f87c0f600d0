package coarsener

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/metrics"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"golang.org/x/exp/rand"
)

type matchRequest struct {
	src    int
	vertex int
	weight int
}

// reconciler runs the two sweeps that settle cross-process match requests. the
// first sweep carries requests to lower ranks, the second to higher ranks, so
// two ranks never decide on each other's requests at the same time.
type reconciler struct {
	comm         comm.Communicator
	requestOrder pkg.RequestOrder
	rng          *rand.Rand
}

func (rc *reconciler) reconcile(ctx context.Context, pc *ProcessContext) error {
	for _, highToLow := range []bool{true, false} {
		if err := rc.sweep(ctx, pc, highToLow); err != nil {
			return err
		}
	}
	return nil
}

func (rc *reconciler) inSweep(pc *ProcessContext, proc int, highToLow bool) bool {
	if highToLow {
		return proc < pc.rank
	}
	return proc > pc.rank
}

func (rc *reconciler) sweep(ctx context.Context, pc *ProcessContext, highToLow bool) error {
	numProcs := rc.comm.Size()

	// request: (remote vertex, cluster weight) per owner
	send := make([][]int, numProcs)
	for _, e := range pc.table.Entries() {
		if e.clusterWeight < 0 || e.IsResolved() || !rc.inSweep(pc, e.procRank, highToLow) {
			continue
		}
		send[e.procRank] = append(send[e.procRank], e.nonLocalVertex, e.clusterWeight)
	}

	recv, err := rc.comm.AllToAll(ctx, send)
	if err != nil {
		return err
	}

	var requests []matchRequest
	for src, data := range recv {
		for j := 0; j+1 < len(data); j += 2 {
			requests = append(requests, matchRequest{src: src, vertex: data[j], weight: data[j+1]})
		}
	}
	if rc.requestOrder == pkg.RANDOM_REQUEST_ORDER {
		rc.rng.Shuffle(len(requests), func(i, j int) {
			requests[i], requests[j] = requests[j], requests[i]
		})
	}

	// reply: (vertex, cluster index, cluster weight) or (vertex, NO_MATCH)
	replies := make([][]int, numProcs)
	accepted, rejected := 0, 0
	for _, req := range requests {
		if !pc.isLocal(req.vertex) {
			return util.WrapErrorf(nil, util.ErrInvariantViolation,
				"rank %d got a request for vertex %d it does not own", pc.rank, req.vertex)
		}
		idx, wt, ok := pc.accept(req.vertex, req.weight, highToLow)
		if ok {
			replies[req.src] = append(replies[req.src], req.vertex, idx, wt)
			accepted++
		} else {
			replies[req.src] = append(replies[req.src], req.vertex, pkg.NO_MATCH)
			rejected++
		}
	}
	metrics.MatchRequests.WithLabelValues("accepted").Add(float64(accepted))
	metrics.MatchRequests.WithLabelValues("rejected").Add(float64(rejected))

	answers, err := rc.comm.AllToAll(ctx, replies)
	if err != nil {
		return err
	}

	// apply
	for _, data := range answers {
		for j := 0; j < len(data); {
			v, idx := data[j], data[j+1]
			e := pc.table.Entry(v)
			if e == nil {
				return util.WrapErrorf(nil, util.ErrInvariantViolation,
					"rank %d got a reply for vertex %d it never requested", pc.rank, v)
			}
			if idx == pkg.NO_MATCH {
				c := pc.newCluster(e.clusterWeight)
				pc.ledger.members[c] = len(e.locals)
				for _, local := range e.locals {
					pc.match[local] = c
				}
				e.clusterIndex = pkg.MATCHED_LOCALLY
				j += 2
				continue
			}
			e.clusterIndex = idx
			e.clusterWeight = data[j+2]
			j += 3
		}
	}
	return nil
}

// setClusterIndices turns process-local cluster indices into global ids: rank r
// numbers its clusters from the sum of the cluster counts of ranks below it.
// it returns that distribution and whether the level shrank too little to go on.
func (rc *reconciler) setClusterIndices(ctx context.Context, pc *ProcessContext,
	minReductionRatio float64) ([]int, bool, error) {

	counts, err := comm.AllGatherInt(ctx, rc.comm, pc.clusterIndex)
	if err != nil {
		return nil, false, err
	}
	clusterDist := util.PrefixSum(counts)
	start := clusterDist[pc.rank]

	for v, m := range pc.match {
		switch {
		case m >= pkg.NON_LOCAL_MATCH:
			e := pc.table.Entry(m - pkg.NON_LOCAL_MATCH)
			if e == nil || e.clusterIndex < 0 {
				return nil, false, util.WrapErrorf(nil, util.ErrInvariantViolation,
					"rank %d: vertex %d still waits on %d", pc.rank, v+pc.minVertex, m-pkg.NON_LOCAL_MATCH)
			}
			pc.match[v] = clusterDist[e.procRank] + e.clusterIndex
		case m >= 0:
			pc.match[v] = m + start
		default:
			return nil, false, util.WrapErrorf(nil, util.ErrInvariantViolation,
				"rank %d: vertex %d left unmatched", pc.rank, v+pc.minVertex)
		}
	}

	totalClusters := clusterDist[len(counts)]
	stop := float64(pc.totalVertices)/float64(totalClusters) < minReductionRatio
	return clusterDist, stop, nil
}
