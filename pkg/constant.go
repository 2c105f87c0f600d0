package pkg

// match vector & match table sentinels
const (
	// NON_LOCAL_MATCH + r in a match vector slot: vertex is waiting on remote vertex r.
	NON_LOCAL_MATCH = 1 << 48

	// NO_MATCH in a match reply: the owner rejected the request.
	NO_MATCH = -1

	UNMATCHED       = -1
	UNRESOLVED      = -1
	MATCHED_LOCALLY = -2
	WITHDRAWN       = -1
)

const (
	LARGE_CONSTANT = 1 << 60

	DEFAULT_HEDGE_THRESHOLD      = 3000000
	DEFAULT_MIN_REDUCTION_RATIO  = 1.075
	DEFAULT_MAX_VERTEX_WT_FACTOR = 0.25
)

type VisitOrder uint8

const (
	INCREASING_ORDER VisitOrder = iota
	DECREASING_ORDER
	RANDOM_ORDER
	INCREASING_WEIGHT_ORDER
	DECREASING_WEIGHT_ORDER
)

func GetVisitOrder(order string) VisitOrder {
	switch order {
	case "increasing":
		return INCREASING_ORDER
	case "decreasing":
		return DECREASING_ORDER
	case "increasing-weight":
		return INCREASING_WEIGHT_ORDER
	case "decreasing-weight":
		return DECREASING_WEIGHT_ORDER
	default:
		return RANDOM_ORDER
	}
}

type RequestOrder uint8

const (
	ARRIVAL_REQUEST_ORDER RequestOrder = iota
	RANDOM_REQUEST_ORDER
)

func GetRequestOrder(order string) RequestOrder {
	if order == "random" {
		return RANDOM_REQUEST_ORDER
	}
	return ARRIVAL_REQUEST_ORDER
}

// connectivity metric: 0 plain, 1 divide by cluster weight, 2 divide by hyperedge length, 3 both
func ConnectivityMetric(metric int) (divByCluWt bool, divByHedgeLen bool) {
	return metric&1 == 1, metric&2 == 2
}
