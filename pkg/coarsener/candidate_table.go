package coarsener

type candidate struct {
	vertex  int
	score   float64
	wouldBe int
}

// candidateTable accumulates connectivity per candidate during one vertex scan.
// it is direct-mapped over all vertices, or hashed when the level has few local
// pins compared to its vertex count.
type candidateTable struct {
	entries []candidate
	direct  []int // vertex -> position+1
	hashed  map[int]int
}

func newCandidateTable(totalVertices, numLocalPins int) *candidateTable {
	ct := &candidateTable{entries: make([]candidate, 0, 64)}
	if numLocalPins < totalVertices/2 {
		ct.hashed = make(map[int]int, 64)
	} else {
		ct.direct = make([]int, totalVertices)
	}
	return ct
}

func (ct *candidateTable) lookup(v int) (int, bool) {
	if ct.hashed != nil {
		pos, ok := ct.hashed[v]
		return pos, ok
	}
	pos := ct.direct[v]
	return pos - 1, pos > 0
}

func (ct *candidateTable) add(v, wouldBe int) int {
	pos := len(ct.entries)
	ct.entries = append(ct.entries, candidate{vertex: v, wouldBe: wouldBe})
	if ct.hashed != nil {
		ct.hashed[v] = pos
	} else {
		ct.direct[v] = pos + 1
	}
	return pos
}

func (ct *candidateTable) clear() {
	if ct.hashed != nil {
		clear(ct.hashed)
	} else {
		for _, c := range ct.entries {
			ct.direct[c.vertex] = 0
		}
	}
	ct.entries = ct.entries[:0]
}
