package coarsener

import (
	"github.com/lintang-b-s/hgpart/pkg"
)

// MatchEntry collects the local vertices that want to join the cluster of one
// remote vertex.
type MatchEntry struct {
	nonLocalVertex int
	procRank       int
	clusterWeight  int // pkg.WITHDRAWN once every local left
	clusterIndex   int // pkg.UNRESOLVED, owner's local cluster index, or pkg.MATCHED_LOCALLY
	locals         []int
}

func (e *MatchEntry) NonLocalVertex() int {
	return e.nonLocalVertex
}

func (e *MatchEntry) ProcRank() int {
	return e.procRank
}

func (e *MatchEntry) ClusterWeight() int {
	return e.clusterWeight
}

func (e *MatchEntry) ClusterIndex() int {
	return e.clusterIndex
}

func (e *MatchEntry) Locals() []int {
	return e.locals
}

func (e *MatchEntry) IsResolved() bool {
	return e.clusterIndex != pkg.UNRESOLVED
}

// MatchRequestTable holds this rank's outstanding cross-process match requests of
// one level, keyed by remote vertex. entries iterate in creation order.
type MatchRequestTable struct {
	index   map[int]int
	entries []*MatchEntry
}

func NewMatchRequestTable() *MatchRequestTable {
	return &MatchRequestTable{index: make(map[int]int)}
}

// AddLocal records that local vertex local with weight wt wants to join remote vertex nonLocal owned by proc.
func (t *MatchRequestTable) AddLocal(nonLocal, local, wt, proc int) {
	if i, ok := t.index[nonLocal]; ok {
		e := t.entries[i]
		if e.clusterWeight == pkg.WITHDRAWN {
			e.clusterWeight = 0
		}
		e.clusterWeight += wt
		e.locals = append(e.locals, local)
		return
	}

	t.index[nonLocal] = len(t.entries)
	t.entries = append(t.entries, &MatchEntry{
		nonLocalVertex: nonLocal,
		procRank:       proc,
		clusterWeight:  wt,
		clusterIndex:   pkg.UNRESOLVED,
		locals:         []int{local},
	})
}

// RemoveLocal withdraws local from the entry of nonLocal. the entry is marked withdrawn once empty.
func (t *MatchRequestTable) RemoveLocal(nonLocal, local, wt int) {
	i, ok := t.index[nonLocal]
	if !ok {
		return
	}
	e := t.entries[i]
	for j, l := range e.locals {
		if l == local {
			e.locals = append(e.locals[:j], e.locals[j+1:]...)
			e.clusterWeight -= wt
			break
		}
	}
	if len(e.locals) == 0 {
		e.clusterWeight = pkg.WITHDRAWN
	}
}

func (t *MatchRequestTable) Entry(nonLocal int) *MatchEntry {
	if i, ok := t.index[nonLocal]; ok {
		return t.entries[i]
	}
	return nil
}

// ClusterWeight returns the accumulated weight of the entry, or pkg.WITHDRAWN if there is none.
func (t *MatchRequestTable) ClusterWeight(nonLocal int) int {
	if e := t.Entry(nonLocal); e != nil {
		return e.clusterWeight
	}
	return pkg.WITHDRAWN
}

func (t *MatchRequestTable) ClusterIndex(nonLocal int) int {
	if e := t.Entry(nonLocal); e != nil {
		return e.clusterIndex
	}
	return pkg.UNRESOLVED
}

func (t *MatchRequestTable) Entries() []*MatchEntry {
	return t.entries
}

func (t *MatchRequestTable) Size() int {
	return len(t.entries)
}

func (t *MatchRequestTable) Clear() {
	clear(t.index)
	t.entries = t.entries[:0]
}
