package comm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAllToAll(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 4
	results := make([][][]int, n)
	err := Run(ctx, n, func(ctx context.Context, c Communicator) error {
		send := make([][]int, c.Size())
		for dst := range send {
			// rank r sends dst copies of r
			for i := 0; i < dst; i++ {
				send[dst] = append(send[dst], c.Rank())
			}
		}
		recv, err := c.AllToAll(ctx, send)
		if err != nil {
			return err
		}
		results[c.Rank()] = recv
		return nil
	})
	require.NoError(t, err)

	for dst := 0; dst < n; dst++ {
		for src := 0; src < n; src++ {
			assert.Len(t, results[dst][src], dst)
			for _, x := range results[dst][src] {
				assert.Equal(t, src, x)
			}
		}
	}
}

func TestLocalCollectives(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 3
	sums := make([]int, n)
	maxs := make([]int, n)
	slices := make([][]int, n)
	err := Run(ctx, n, func(ctx context.Context, c Communicator) error {
		var err error
		for i := 0; i < 10; i++ {
			if err = c.Barrier(ctx); err != nil {
				return err
			}
		}
		if sums[c.Rank()], err = AllReduceSum(ctx, c, c.Rank()+1); err != nil {
			return err
		}
		if maxs[c.Rank()], err = AllReduceMax(ctx, c, c.Rank()*10); err != nil {
			return err
		}
		slices[c.Rank()], err = AllReduceSumSlice(ctx, c, []int{1, c.Rank()})
		return err
	})
	require.NoError(t, err)

	for r := 0; r < n; r++ {
		assert.Equal(t, 6, sums[r])
		assert.Equal(t, 20, maxs[r])
		assert.Equal(t, []int{3, 3}, slices[r])
	}
}

func TestLocalPayloadIsCopied(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, 2, func(ctx context.Context, c Communicator) error {
		data := []int{c.Rank()}
		recv, err := c.AllGather(ctx, data)
		if err != nil {
			return err
		}
		data[0] = 99
		if err := c.Barrier(ctx); err != nil {
			return err
		}
		if recv[1-c.Rank()][0] != 1-c.Rank() {
			return errors.New("payload aliased across ranks")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLocalAbortCancelsGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	boom := errors.New("boom")
	err := Run(ctx, 3, func(ctx context.Context, c Communicator) error {
		if c.Rank() == 1 {
			return boom
		}
		return c.Barrier(ctx)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}
