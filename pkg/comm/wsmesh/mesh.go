package wsmesh

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	helloSeq     = -1
	inboxSize    = 16
	dialInterval = 200 * time.Millisecond
)

type frame struct {
	Seq  int   `msgpack:"s"`
	Data []int `msgpack:"d"`
}

type Config struct {
	Rank int
	// Addrs[r] is the listen address of rank r.
	Addrs []string
	// Listener overrides listening on Addrs[Rank].
	Listener net.Listener
}

type peer struct {
	rank   int
	conn   net.Conn
	rw     io.ReadWriter
	client bool // this side dialed
	wmu    sync.Mutex
	inbox  chan frame
	done   chan struct{} // closed by the read loop once the connection fails
	err    error
}

func newPeer(rank int, conn net.Conn, rw io.ReadWriter, client bool) *peer {
	return &peer{
		rank:   rank,
		conn:   conn,
		rw:     rw,
		client: client,
		inbox:  make(chan frame, inboxSize),
		done:   make(chan struct{}),
	}
}

func (p *peer) write(f frame) error {
	payload, err := msgpack.Marshal(&f)
	if err != nil {
		return err
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if p.client {
		return wsutil.WriteClientBinary(p.rw, payload)
	}
	return wsutil.WriteServerBinary(p.rw, payload)
}

func (p *peer) read() (frame, error) {
	var (
		payload []byte
		err     error
		f       frame
	)
	if p.client {
		payload, _, err = wsutil.ReadServerData(p.rw)
	} else {
		payload, _, err = wsutil.ReadClientData(p.rw)
	}
	if err != nil {
		return f, err
	}
	err = msgpack.Unmarshal(payload, &f)
	return f, err
}

// Mesh is a rank of a fully connected websocket process group. rank r dials
// every lower rank and accepts connections from every higher rank.
type Mesh struct {
	rank  int
	size  int
	peers []*peer
	seq   int
	ln    net.Listener
	log   *zap.Logger
}

// Dial connects this rank to every other rank of the group and returns once the mesh is complete.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Mesh, error) {
	size := len(cfg.Addrs)
	if cfg.Rank < 0 || cfg.Rank >= size {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "rank %d out of range [0,%d)", cfg.Rank, size)
	}

	m := &Mesh{
		rank:  cfg.Rank,
		size:  size,
		peers: make([]*peer, size),
		log:   log.With(zap.Int("rank", cfg.Rank)),
	}

	ln := cfg.Listener
	if ln == nil && cfg.Rank < size-1 {
		var err error
		ln, err = net.Listen("tcp", cfg.Addrs[cfg.Rank])
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrTransport, "listen on %s", cfg.Addrs[cfg.Rank])
		}
	}
	m.ln = ln

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	numAccept := size - 1 - cfg.Rank
	if numAccept > 0 {
		g.Go(func() error {
			for i := 0; i < numAccept; i++ {
				p, err := m.accept(gctx)
				if err != nil {
					return err
				}
				mu.Lock()
				m.peers[p.rank] = p
				mu.Unlock()
			}
			return nil
		})
	}

	for r := 0; r < cfg.Rank; r++ {
		g.Go(func() error {
			p, err := m.dial(gctx, r, cfg.Addrs[r])
			if err != nil {
				return err
			}
			mu.Lock()
			m.peers[r] = p
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.Close()
		return nil, err
	}

	for _, p := range m.peers {
		if p != nil {
			go m.readLoop(p)
		}
	}
	m.log.Info("websocket mesh ready", zap.Int("size", size))
	return m, nil
}

func (m *Mesh) accept(ctx context.Context) (*peer, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		conn, err := m.ln.Accept()
		accepted <- result{conn, err}
	}()

	var conn net.Conn
	select {
	case res := <-accepted:
		if res.err != nil {
			return nil, util.WrapErrorf(res.err, util.ErrTransport, "accept")
		}
		conn = res.conn
	case <-ctx.Done():
		m.ln.Close()
		return nil, util.WrapErrorf(ctx.Err(), util.ErrTransport, "accept")
	}

	br := bufio.NewReader(conn)
	rw := struct {
		io.Reader
		io.Writer
	}{br, conn}

	if _, err := ws.Upgrade(rw); err != nil {
		conn.Close()
		return nil, util.WrapErrorf(err, util.ErrTransport, "upgrade %s", conn.RemoteAddr())
	}

	p := newPeer(-1, conn, rw, false)
	hello, err := p.read()
	if err != nil || hello.Seq != helloSeq || len(hello.Data) != 1 {
		conn.Close()
		return nil, util.WrapErrorf(err, util.ErrTransport, "bad hello from %s", conn.RemoteAddr())
	}
	p.rank = hello.Data[0]
	if p.rank <= m.rank || p.rank >= m.size {
		conn.Close()
		return nil, util.WrapErrorf(nil, util.ErrTransport, "unexpected peer rank %d", p.rank)
	}
	m.log.Debug("accepted peer", zap.Int("peer", p.rank))
	return p, nil
}

func (m *Mesh) dial(ctx context.Context, rank int, addr string) (*peer, error) {
	url := fmt.Sprintf("ws://%s/", addr)
	for {
		conn, br, _, err := ws.Dial(ctx, url)
		if err == nil {
			var r io.Reader = conn
			if br != nil {
				r = io.MultiReader(br, conn)
			}
			p := newPeer(rank, conn, struct {
				io.Reader
				io.Writer
			}{r, conn}, true)
			if err := p.write(frame{Seq: helloSeq, Data: []int{m.rank}}); err != nil {
				conn.Close()
				return nil, util.WrapErrorf(err, util.ErrTransport, "hello to rank %d", rank)
			}
			m.log.Debug("dialed peer", zap.Int("peer", rank))
			return p, nil
		}

		select {
		case <-ctx.Done():
			return nil, util.WrapErrorf(err, util.ErrTransport, "dial rank %d at %s", rank, addr)
		case <-time.After(dialInterval):
		}
	}
}

func (m *Mesh) readLoop(p *peer) {
	for {
		f, err := p.read()
		if err != nil {
			p.err = util.WrapErrorf(err, util.ErrTransport, "read from rank %d", p.rank)
			close(p.done)
			return
		}
		p.inbox <- f
	}
}

// receive waits for the next frame of p. frames read before the connection failed are still delivered.
func (m *Mesh) receive(ctx context.Context, p *peer) (frame, error) {
	select {
	case f := <-p.inbox:
		return f, nil
	case <-p.done:
		select {
		case f := <-p.inbox:
			return f, nil
		default:
			return frame{}, p.err
		}
	case <-ctx.Done():
		return frame{}, util.WrapErrorf(ctx.Err(), util.ErrTransport, "receive from rank %d", p.rank)
	}
}

func (m *Mesh) Rank() int {
	return m.rank
}

func (m *Mesh) Size() int {
	return m.size
}

func (m *Mesh) AllToAll(ctx context.Context, send [][]int) ([][]int, error) {
	if len(send) != m.size {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "all-to-all needs %d buffers, got %d",
			m.size, len(send))
	}
	m.seq++
	seq := m.seq

	for dst, p := range m.peers {
		if dst == m.rank {
			continue
		}
		if err := p.write(frame{Seq: seq, Data: send[dst]}); err != nil {
			return nil, util.WrapErrorf(err, util.ErrTransport, "write to rank %d", dst)
		}
	}

	recv := make([][]int, m.size)
	recv[m.rank] = append([]int(nil), send[m.rank]...)
	for src, p := range m.peers {
		if src == m.rank {
			continue
		}
		f, err := m.receive(ctx, p)
		if err != nil {
			return nil, err
		}
		if f.Seq != seq {
			return nil, util.WrapErrorf(nil, util.ErrTransport, "rank %d sent frame %d, expected %d",
				src, f.Seq, seq)
		}
		recv[src] = f.Data
	}
	return recv, nil
}

func (m *Mesh) AllGather(ctx context.Context, data []int) ([][]int, error) {
	send := make([][]int, m.size)
	for dst := range send {
		send[dst] = data
	}
	return m.AllToAll(ctx, send)
}

func (m *Mesh) Barrier(ctx context.Context) error {
	_, err := m.AllToAll(ctx, make([][]int, m.size))
	return err
}

func (m *Mesh) Close() error {
	for _, p := range m.peers {
		if p != nil {
			p.conn.Close()
		}
	}
	if m.ln != nil {
		return m.ln.Close()
	}
	return nil
}
