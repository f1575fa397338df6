package link_test

import (
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mithrel/serialbus/internal/link"
)

func TestMemoryPairFIFO(t *testing.T) {
	a, b := link.Pair()

	require.NoError(t, a.Send([]byte("one")))
	require.NoError(t, a.Send([]byte("two")))
	require.False(t, a.Available())
	require.True(t, b.Available())

	f, err := b.Receive()
	require.NoError(t, err)
	require.Equal(t, "one", string(f))
	f, err = b.Receive()
	require.NoError(t, err)
	require.Equal(t, "two", string(f))

	require.False(t, b.Available())
	_, err = b.Receive()
	require.ErrorIs(t, err, link.ErrNoFrame)
}

func TestMemoryLoopback(t *testing.T) {
	m := link.Loopback()
	require.NoError(t, m.Send([]byte("echo")))
	require.True(t, m.Available())
	f, err := m.Receive()
	require.NoError(t, err)
	require.Equal(t, "echo", string(f))
}

func TestMemoryClosed(t *testing.T) {
	a, b := link.Pair()
	require.NoError(t, b.Close())
	require.ErrorIs(t, a.Send([]byte("x")), link.ErrClosed)
	_, err := b.Receive()
	require.ErrorIs(t, err, link.ErrClosed)
}

func TestStreamRoundTrip(t *testing.T) {
	ca, cb := net.Pipe()
	a := link.NewStream(ca, testLogger(t))
	b := link.NewStream(cb, testLogger(t))
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send([]byte("hello")))
	require.NoError(t, a.Send([]byte("world")))

	waitAvailable(t, b)
	f, err := b.Receive()
	require.NoError(t, err)
	require.Equal(t, "hello", string(f))

	waitAvailable(t, b)
	f, err = b.Receive()
	require.NoError(t, err)
	require.Equal(t, "world", string(f))
}

func TestStreamSurvivesCorruptFrame(t *testing.T) {
	ca, cb := net.Pipe()
	b := link.NewStream(cb, testLogger(t))
	defer b.Close()

	go func() {
		// A frame with a deliberately wrong digest trailer, then a good one.
		_, _ = ca.Write([]byte{3, 'b', 'a', 'd', 0, 0, 0, 0})
		a := link.NewStream(ca, nil)
		_ = a.Send([]byte("good"))
	}()

	waitAvailable(t, b)
	f, err := b.Receive()
	require.NoError(t, err)
	require.Equal(t, "good", string(f))
	require.False(t, b.Available())
}

func TestStreamKeepaliveInvisible(t *testing.T) {
	ca, cb := net.Pipe()
	a := link.NewStream(ca, testLogger(t))
	b := link.NewStream(cb, testLogger(t))
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send(nil)) // keepalive
	require.NoError(t, a.Send([]byte("real")))

	waitAvailable(t, b)
	f, err := b.Receive()
	require.NoError(t, err)
	require.Equal(t, "real", string(f))
}

func waitAvailable(t *testing.T, l link.Link) {
	t.Helper()
	require.Eventually(t, l.Available, time.Second, time.Millisecond)
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(testWriter{t}, "", 0)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
