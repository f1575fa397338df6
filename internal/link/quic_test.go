package link_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mithrel/serialbus/internal/link"
)

// freeUDPAddr reserves an ephemeral localhost port. There is a small window
// between closing and rebinding, acceptable for tests.
func freeUDPAddr(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().(*net.UDPAddr)
	require.NoError(t, pc.Close())
	return fmt.Sprintf("127.0.0.1:%d", addr.Port)
}

func TestQUICPointToPoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	addr := freeUDPAddr(t)
	srvTLS, err := link.SelfSignedTLS()
	require.NoError(t, err)

	type acceptResult struct {
		l   link.Link
		err error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		l, err := link.AcceptQUIC(ctx, addr, srvTLS, testLogger(t))
		accepted <- acceptResult{l, err}
	}()

	dialer, err := link.DialQUIC(ctx, addr, link.InsecureClientTLS(), testLogger(t))
	require.NoError(t, err)
	defer dialer.Close()

	res := <-accepted
	require.NoError(t, res.err)
	defer res.l.Close()

	require.NoError(t, dialer.Send([]byte("over quic")))
	waitAvailable(t, res.l)
	f, err := res.l.Receive()
	require.NoError(t, err)
	require.Equal(t, "over quic", string(f))

	require.NoError(t, res.l.Send([]byte("and back")))
	waitAvailable(t, dialer)
	f, err = dialer.Receive()
	require.NoError(t, err)
	require.Equal(t, "and back", string(f))
}

func TestBridgeRelaysBetweenPeers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	addr := freeUDPAddr(t)
	srvTLS, err := link.SelfSignedTLS()
	require.NoError(t, err)

	b := link.NewBridge(testLogger(t))
	go func() { _ = b.Serve(ctx, addr, srvTLS) }()

	var p1, p2 link.Link
	require.Eventually(t, func() bool {
		var err error
		p1, err = link.DialQUIC(ctx, addr, link.InsecureClientTLS(), testLogger(t))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	defer p1.Close()

	p2, err = link.DialQUIC(ctx, addr, link.InsecureClientTLS(), testLogger(t))
	require.NoError(t, err)
	defer p2.Close()

	// Resend until the bridge has registered p2; stream acceptance on the
	// bridge side races the first publish.
	require.Eventually(t, func() bool {
		_ = p1.Send([]byte("fan out"))
		return p2.Available()
	}, 5*time.Second, 50*time.Millisecond)
	f, err := p2.Receive()
	require.NoError(t, err)
	require.Equal(t, "fan out", string(f))

	// The source never hears its own frame back.
	require.False(t, p1.Available())
}
