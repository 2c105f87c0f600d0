package partitioner

const (
	INVALID_LEVEL        = -1
	INVALID_PARTITION_ID = -1
)

type MinCut struct {
	flags  []bool // true if the vertex is reachable from the source in the residual network (side one)
	minCut int
}

func NewMinCut(numberOfVertices int) *MinCut {
	return &MinCut{
		flags: make([]bool, numberOfVertices),
	}
}

func (mc *MinCut) SetFlag(u int, flag bool) {
	mc.flags[u] = flag
}

func (mc *MinCut) GetFlag(u int) bool {
	return mc.flags[u]
}

func (mc *MinCut) GetMinCut() int {
	return mc.minCut
}

func (mc *MinCut) setMinCut(maxflow int) {
	mc.minCut = maxflow
}

// bisection is one candidate split of a sub-hypergraph.
type bisection struct {
	side         []bool // true: first side
	cut          int
	flow         int // max flow between the seed ends, before rebalancing
	balanceDelta int
}
