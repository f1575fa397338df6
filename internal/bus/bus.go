// Package bus is the dispatch engine: it routes published frames onto the
// link and delivers ingested frames to topic subscribers. One mutex guards
// the topic store and the subscriber registry together; a single background
// worker runs the ingest loop.
package bus

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/mithrel/serialbus/internal/codec"
	"github.com/mithrel/serialbus/internal/link"
	"github.com/mithrel/serialbus/pkg/api"
)

var (
	// ErrNotFound is returned by Unsubscribe when the topic has no
	// registered subscriber list, or the subscription is already gone.
	ErrNotFound = errors.New("subscription not found")

	// ErrNoData is returned by Current when the topic has no stored value.
	ErrNoData = errors.New("no data for topic")
)

// DefaultPollInterval paces the idle wait between drain sweeps.
const DefaultPollInterval = 2 * time.Millisecond

// Subscription identifies one registered callback for Unsubscribe.
type Subscription struct {
	topic string
	id    int
}

// Topic returns the topic the subscription was registered under.
func (s Subscription) Topic() string { return s.topic }

type subscriber struct {
	id int
	fn func()
}

// Observer sees every frame the ingest loop decodes, after dispatch.
// Feeds the recorder and the TUI monitor.
type Observer func(api.Frame)

// Bus ties a link to the codec and the subscriber registry. All state is
// per-instance; two buses on one process share nothing.
type Bus struct {
	link link.Link
	log  *log.Logger
	poll time.Duration

	mu        sync.Mutex
	nextID    int
	values    map[string]api.Frame
	subs      map[string][]subscriber
	observers []Observer
	stop      context.CancelFunc
	stopped   chan struct{}
}

// Option adjusts Bus construction.
type Option func(*Bus)

// WithLogger routes ingest reports to logger instead of log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(b *Bus) { b.log = logger }
}

// WithPollInterval sets the idle wait between drain sweeps.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.poll = d
		}
	}
}

// WithObserver registers fn to observe every decoded frame.
func WithObserver(fn Observer) Option {
	return func(b *Bus) { b.observers = append(b.observers, fn) }
}

// New builds a bus over l. Call Start to begin ingesting.
func New(l link.Link, opts ...Option) *Bus {
	b := &Bus{
		link:   l,
		log:    log.Default(),
		poll:   DefaultPollInterval,
		values: make(map[string]api.Frame),
		subs:   make(map[string][]subscriber),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish encodes rows under topic and hands the frame to the link. The
// format list defaults to a single String specifier, matching the most
// common text-payload case. Returns the encoded bytes.
func (b *Bus) Publish(topic string, rows []api.Row, formats ...api.Format) ([]byte, error) {
	if len(formats) == 0 {
		formats = []api.Format{api.String}
	}
	msg, err := codec.Encode(topic, rows, formats)
	if err != nil {
		return nil, err
	}
	if err := b.link.Send(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// PublishText publishes a plain string payload under topic.
func (b *Bus) PublishText(topic, text string) ([]byte, error) {
	return b.Publish(topic, []api.Row{api.TextRow(text)})
}

// AddObserver registers fn after construction; monitors attach here.
func (b *Bus) AddObserver(fn Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// notifyObservers is called by the ingest worker after dispatch.
func (b *Bus) notifyObservers(f api.Frame) {
	b.mu.Lock()
	obs := make([]Observer, len(b.observers))
	copy(obs, b.observers)
	b.mu.Unlock()
	for _, fn := range obs {
		fn(f)
	}
}

// Subscribe appends fn to topic's callback list, creating the list if
// absent. Duplicate registrations are allowed and fire once each. The
// callback receives no payload: it reads the stored value back through
// Current while dispatch holds it live.
func (b *Bus) Subscribe(topic string, fn func()) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[topic] = append(b.subs[topic], subscriber{id: b.nextID, fn: fn})
	return Subscription{topic: topic, id: b.nextID}
}

// Unsubscribe removes the matching callback. The topic entry disappears
// once its list is empty.
func (b *Bus) Unsubscribe(sub Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	list, ok := b.subs[sub.topic]
	if !ok {
		return ErrNotFound
	}
	for i := range list {
		if list[i].id == sub.id {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(b.subs, sub.topic)
			} else {
				b.subs[sub.topic] = list
			}
			return nil
		}
	}
	return ErrNotFound
}

// Current returns the decoded value stored for topic. Outside a dispatch
// window this fails with ErrNoData: values are consumed the moment their
// subscribers return.
func (b *Bus) Current(topic string) (api.Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.values[topic]
	if !ok {
		return api.Frame{}, ErrNoData
	}
	return f, nil
}

// store sets or overwrites the current decoded value for topic.
func (b *Bus) store(topic string, f api.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[topic] = f
}

// takeAndDispatch delivers the stored value for topic and then discards it.
// Topics without subscribers are discarded silently. Callbacks run outside
// the lock so they can call Current (and Subscribe/Unsubscribe) without
// deadlocking; the value stays stored until every callback has returned.
func (b *Bus) takeAndDispatch(topic string) {
	b.mu.Lock()
	list := b.subs[topic]
	if len(list) == 0 {
		delete(b.values, topic)
		b.mu.Unlock()
		return
	}
	fns := make([]func(), len(list))
	for i, s := range list {
		fns[i] = s.fn
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}

	b.mu.Lock()
	delete(b.values, topic)
	b.mu.Unlock()
}
