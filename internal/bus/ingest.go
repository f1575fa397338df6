package bus

import (
	"context"
	"errors"
	"time"

	"github.com/mithrel/serialbus/internal/codec"
	"github.com/mithrel/serialbus/internal/link"
)

// Run executes the ingest loop until ctx is canceled or the link dies:
// drain every frame the link has buffered, then sleep one poll interval and
// look again. The stop signal is observed between frames, never mid-decode.
// A frame that fails to decode is reported and skipped; it must not stall
// the frames behind it. A closed link terminates the loop with ErrClosed.
func (b *Bus) Run(ctx context.Context) error {
	for {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			raw, err := b.link.Receive()
			if err != nil {
				if errors.Is(err, link.ErrNoFrame) {
					break // drained
				}
				return err
			}
			if err := b.ingestOne(raw); err != nil {
				b.log.Printf("bus: %v", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.poll):
		}
	}
}

// ingestOne decodes one frame, stores the value, and dispatches that
// frame's topic only.
func (b *Bus) ingestOne(raw []byte) error {
	f, err := codec.Decode(raw)
	if err != nil {
		return err
	}
	b.store(f.Topic, f)
	b.takeAndDispatch(f.Topic)
	b.notifyObservers(f)
	return nil
}

// Start launches the ingest loop on a background goroutine. It is the
// worker that owns all dispatching; start it once per bus.
func (b *Bus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return // already running
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.stop = cancel
	b.stopped = make(chan struct{})
	done := b.stopped
	go func() {
		defer close(done)
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.log.Printf("bus: ingest loop stopped: %v", err)
		}
	}()
}

// Stop signals the ingest loop and waits for it to observe the signal.
// In-flight frame dispatch is never interrupted.
func (b *Bus) Stop() {
	b.mu.Lock()
	cancel, done := b.stop, b.stopped
	b.stop, b.stopped = nil, nil
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
