package coarsener

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/lintang-b-s/hgpart/pkg/util"
)

// checkClusterWeights fails when a cluster that absorbed other vertices went over the cap.
func (co *Coarsener) checkClusterWeights(pc *ProcessContext) error {
	for c := 0; c < pc.ledger.Len(); c++ {
		if !pc.ledger.IsSingleton(c) && pc.ledger.Weight(c) > pc.maxVertexWt {
			return util.WrapErrorf(nil, util.ErrInvariantViolation,
				"rank %d: cluster %d weighs %d over cap %d", pc.rank, c, pc.ledger.Weight(c), pc.maxVertexWt)
		}
	}
	return nil
}

// checkLevel verifies that the coarse level conserves weight and that every
// global cluster id received at least one vertex.
func (co *Coarsener) checkLevel(ctx context.Context, fine, coarse *datastructure.Hypergraph) error {
	localWeight := 0
	for c, w := range coarse.VertexWeights() {
		if w <= 0 {
			return util.WrapErrorf(nil, util.ErrInvariantViolation,
				"rank %d: cluster %d is empty", coarse.Rank(), c+coarse.MinVertexIndex())
		}
		localWeight += w
	}

	total, err := comm.AllReduceSum(ctx, co.comm, localWeight)
	if err != nil {
		return err
	}
	if total != fine.TotalWeight() {
		return util.WrapErrorf(nil, util.ErrInvariantViolation,
			"coarse level weighs %d, fine level %d", total, fine.TotalWeight())
	}

	for v, cid := range fine.MatchVector() {
		if cid < 0 || cid >= coarse.TotalVertices() {
			return util.WrapErrorf(nil, util.ErrInvariantViolation,
				"rank %d: vertex %d maps to cluster %d outside [0,%d)",
				fine.Rank(), v+fine.MinVertexIndex(), cid, coarse.TotalVertices())
		}
	}
	return nil
}
