package comm

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg/util"
	"golang.org/x/sync/errgroup"
)

const mailboxSize = 8

// LocalComm is a rank of an in-process group. ranks never share slices: every
// payload is copied on send.
type LocalComm struct {
	rank    int
	size    int
	inboxes [][]chan []int // inboxes[dst][src]
}

// NewLocalGroup creates the communicators of an n-rank in-process group.
func NewLocalGroup(n int) []*LocalComm {
	inboxes := make([][]chan []int, n)
	for dst := 0; dst < n; dst++ {
		inboxes[dst] = make([]chan []int, n)
		for src := 0; src < n; src++ {
			inboxes[dst][src] = make(chan []int, mailboxSize)
		}
	}

	group := make([]*LocalComm, n)
	for r := 0; r < n; r++ {
		group[r] = &LocalComm{rank: r, size: n, inboxes: inboxes}
	}
	return group
}

func (lc *LocalComm) Rank() int {
	return lc.rank
}

func (lc *LocalComm) Size() int {
	return lc.size
}

func (lc *LocalComm) AllToAll(ctx context.Context, send [][]int) ([][]int, error) {
	if len(send) != lc.size {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "all-to-all needs %d buffers, got %d",
			lc.size, len(send))
	}

	for dst := 0; dst < lc.size; dst++ {
		payload := make([]int, len(send[dst]))
		copy(payload, send[dst])
		select {
		case lc.inboxes[dst][lc.rank] <- payload:
		case <-ctx.Done():
			return nil, util.WrapErrorf(ctx.Err(), util.ErrTransport, "rank %d send to %d", lc.rank, dst)
		}
	}

	recv := make([][]int, lc.size)
	for src := 0; src < lc.size; src++ {
		select {
		case payload := <-lc.inboxes[lc.rank][src]:
			recv[src] = payload
		case <-ctx.Done():
			return nil, util.WrapErrorf(ctx.Err(), util.ErrTransport, "rank %d receive from %d", lc.rank, src)
		}
	}
	return recv, nil
}

func (lc *LocalComm) AllGather(ctx context.Context, data []int) ([][]int, error) {
	send := make([][]int, lc.size)
	for dst := range send {
		send[dst] = data
	}
	return lc.AllToAll(ctx, send)
}

func (lc *LocalComm) Barrier(ctx context.Context) error {
	_, err := lc.AllToAll(ctx, make([][]int, lc.size))
	return err
}

func (lc *LocalComm) Close() error {
	return nil
}

// Run starts n ranks as goroutines and waits for all of them. the first rank
// to fail cancels the context of every other rank.
func Run(ctx context.Context, n int, fn func(ctx context.Context, c Communicator) error) error {
	group := NewLocalGroup(n)
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < n; r++ {
		c := group[r]
		g.Go(func() error {
			defer c.Close()
			return fn(gctx, c)
		})
	}
	return g.Wait()
}
