package comm

import (
	"context"
)

// Communicator is one rank's handle on a fixed process group. Every method is a
// collective: all ranks must call it in the same order.
type Communicator interface {
	Rank() int
	Size() int

	// AllToAll sends send[dst] to every dst and returns recv[src].
	AllToAll(ctx context.Context, send [][]int) ([][]int, error)

	// AllGather returns every rank's data indexed by rank.
	AllGather(ctx context.Context, data []int) ([][]int, error)

	Barrier(ctx context.Context) error
	Close() error
}

func AllGatherInt(ctx context.Context, c Communicator, v int) ([]int, error) {
	recv, err := c.AllGather(ctx, []int{v})
	if err != nil {
		return nil, err
	}
	out := make([]int, len(recv))
	for r, data := range recv {
		out[r] = data[0]
	}
	return out, nil
}

func AllReduceSum(ctx context.Context, c Communicator, v int) (int, error) {
	vals, err := AllGatherInt(ctx, c, v)
	if err != nil {
		return 0, err
	}
	sum := 0
	for _, x := range vals {
		sum += x
	}
	return sum, nil
}

func AllReduceMax(ctx context.Context, c Communicator, v int) (int, error) {
	vals, err := AllGatherInt(ctx, c, v)
	if err != nil {
		return 0, err
	}
	max := vals[0]
	for _, x := range vals[1:] {
		if x > max {
			max = x
		}
	}
	return max, nil
}

// AllReduceSumSlice sums vals element-wise across ranks. every rank must pass the same length.
func AllReduceSumSlice(ctx context.Context, c Communicator, vals []int) ([]int, error) {
	recv, err := c.AllGather(ctx, vals)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for _, data := range recv {
		for i, x := range data {
			out[i] += x
		}
	}
	return out, nil
}

