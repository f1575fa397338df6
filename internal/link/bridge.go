package link

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"log"
	"sync"

	quic "github.com/quic-go/quic-go"
)

// Bridge relays frames between every connected QUIC peer: a frame read from
// one peer is forwarded to all others. Relaying is frame-aware so that two
// peers publishing at once cannot interleave bytes inside a frame.
type Bridge struct {
	log *log.Logger

	mu     sync.Mutex
	nextID int
	peers  map[int]*bridgePeer
}

type bridgePeer struct {
	wmu sync.Mutex
	st  quic.Stream
}

// NewBridge returns an empty bridge. nil logger means log.Default().
func NewBridge(logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{log: logger, peers: make(map[int]*bridgePeer)}
}

// Serve listens on addr and relays until ctx is canceled or the listener
// fails.
func (b *Bridge) Serve(ctx context.Context, addr string, tlsConf *tls.Config) error {
	l, err := quic.ListenAddr(addr, withALPN(tlsConf), &quic.Config{})
	if err != nil {
		return err
	}
	defer l.Close()

	errc := make(chan error, 1)
	go func() {
		for {
			conn, err := l.Accept(ctx)
			if err != nil {
				errc <- err
				return
			}
			go b.handleConn(ctx, conn)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

func (b *Bridge) handleConn(ctx context.Context, conn quic.Connection) {
	st, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "accept stream failed")
		return
	}
	peer := &bridgePeer{st: st}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.peers[id] = peer
	n := len(b.peers)
	b.mu.Unlock()
	b.log.Printf("bridge: peer %d connected (%d total)", id, n)

	defer func() {
		b.mu.Lock()
		delete(b.peers, id)
		n := len(b.peers)
		b.mu.Unlock()
		_ = conn.CloseWithError(0, "done")
		b.log.Printf("bridge: peer %d disconnected (%d total)", id, n)
	}()

	br := bufio.NewReader(st)
	for {
		frame, err := readFrame(br)
		if err != nil {
			if errors.Is(err, ErrBadDigest) {
				b.log.Printf("bridge: dropping corrupt frame from peer %d", id)
				continue
			}
			return
		}
		if len(frame) == 0 {
			continue // keepalive
		}
		b.relay(id, frame)
	}
}

// relay forwards frame to every peer except the source, each under its own
// write lock so concurrent sources cannot corrupt the destination framing.
func (b *Bridge) relay(from int, frame []byte) {
	b.mu.Lock()
	dests := make([]*bridgePeer, 0, len(b.peers))
	for id, p := range b.peers {
		if id != from {
			dests = append(dests, p)
		}
	}
	b.mu.Unlock()

	for _, p := range dests {
		p.wmu.Lock()
		err := writeFrame(p.st, frame)
		p.wmu.Unlock()
		if err != nil {
			b.log.Printf("bridge: relay from peer %d failed: %v", from, err)
		}
	}
}
