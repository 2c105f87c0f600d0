package coarsener

// ClusterWeightLedger tracks the weight of every local cluster of the current level,
// indexed by the process-local cluster index.
type ClusterWeightLedger struct {
	weights []int
	members []int
}

func NewClusterWeightLedger(capacity int) *ClusterWeightLedger {
	return &ClusterWeightLedger{
		weights: make([]int, 0, capacity),
		members: make([]int, 0, capacity),
	}
}

// Add registers a new cluster and returns its index.
func (l *ClusterWeightLedger) Add(weight int) int {
	l.weights = append(l.weights, weight)
	l.members = append(l.members, 1)
	return len(l.weights) - 1
}

func (l *ClusterWeightLedger) Grow(cluster, weight int) {
	l.weights[cluster] += weight
	l.members[cluster]++
}

func (l *ClusterWeightLedger) Weight(cluster int) int {
	return l.weights[cluster]
}

// IsSingleton reports whether nothing ever joined the cluster after its creation.
func (l *ClusterWeightLedger) IsSingleton(cluster int) bool {
	return l.members[cluster] == 1
}

func (l *ClusterWeightLedger) Len() int {
	return len(l.weights)
}
