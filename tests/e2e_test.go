package tests

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/serialbus/internal/bus"
	"github.com/mithrel/serialbus/internal/config"
	"github.com/mithrel/serialbus/internal/db"
	"github.com/mithrel/serialbus/internal/link"
	"github.com/mithrel/serialbus/pkg/api"
)

// startBus wires a bus over l with fast polling and stops it on cleanup.
func startBus(t *testing.T, l link.Link, opts ...bus.Option) *bus.Bus {
	t.Helper()
	opts = append([]bus.Option{bus.WithPollInterval(time.Millisecond)}, opts...)
	b := bus.New(l, opts...)
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

// TestPublishSubscribeAcrossStreamLink runs two full stacks on either end
// of a byte pipe: peer A publishes, peer B's subscriber observes exactly
// one delivery and the value is consumed afterwards.
func TestPublishSubscribeAcrossStreamLink(t *testing.T) {
	connA, connB := net.Pipe()
	peerA := startBus(t, link.NewStream(connA, nil))
	peerB := startBus(t, link.NewStream(connB, nil))

	var mu sync.Mutex
	var seen [][]int64
	peerB.Subscribe("bar", func() {
		f, err := peerB.Current("bar")
		require.NoError(t, err)
		mu.Lock()
		seen = append(seen, f.Rows[0].Ints)
		mu.Unlock()
	})

	_, err := peerA.Publish("bar", []api.Row{api.IntRow(1, 65535, 32768)}, api.U16)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	require.Equal(t, [][]int64{{1, 65535, 32768}}, seen)
	mu.Unlock()

	_, err = peerB.Current("bar")
	require.ErrorIs(t, err, bus.ErrNoData)
}

// TestBidirectionalTraffic checks both directions of one stream pair.
func TestBidirectionalTraffic(t *testing.T) {
	connA, connB := net.Pipe()
	peerA := startBus(t, link.NewStream(connA, nil))
	peerB := startBus(t, link.NewStream(connB, nil))

	fromA := make(chan string, 1)
	fromB := make(chan string, 1)
	peerB.Subscribe("a2b", func() {
		if f, err := peerB.Current("a2b"); err == nil {
			fromA <- f.Text()
		}
	})
	peerA.Subscribe("b2a", func() {
		if f, err := peerA.Current("b2a"); err == nil {
			fromB <- f.Text()
		}
	})

	_, err := peerA.PublishText("a2b", "ping")
	require.NoError(t, err)
	_, err = peerB.PublishText("b2a", "pong")
	require.NoError(t, err)

	require.Equal(t, "ping", recv(t, fromA))
	require.Equal(t, "pong", recv(t, fromB))
}

// TestRecorderObservesIngestedFrames wires the recorder the way the app
// does (bus observer) and checks the frame log after traffic.
func TestRecorderObservesIngestedFrames(t *testing.T) {
	ctx := context.Background()

	v := viper.New()
	v.Set("data_dir", t.TempDir())
	require.NoError(t, config.Load(ctx, v))

	rec, err := db.Open(ctx, config.RecordDBPath(v))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	recorded := make(chan struct{}, 2)
	b := startBus(t, link.Loopback(), bus.WithObserver(func(f api.Frame) {
		require.NoError(t, rec.Append(ctx, f))
		recorded <- struct{}{}
	}))

	_, err = b.Publish("temp", []api.Row{api.IntRow(-12, 40)}, api.S8)
	require.NoError(t, err)
	_, err = b.PublishText("note", "calibrated")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-recorded:
		case <-time.After(2 * time.Second):
			t.Fatal("frame never recorded")
		}
	}

	recs, err := rec.List(ctx, "temp", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, []int64{-12, 40}, recs[0].Frame.Rows[0].Ints)

	topics, err := rec.Topics(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 2)
}

func recv(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return ""
	}
}
