// Package event provides a small broadcast bus for change notification.
//
// Each subscriber gets its own ordered channel; events published after a
// subscription begins are delivered in publication order, and nothing is
// replayed to late subscribers. Slow subscribers that fill their buffer
// lose events rather than blocking publishers.
package event

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const defaultBuffer = 64

// Bus broadcasts values of type T to all active subscriptions.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription[T]
	buffer int
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Subscription is one subscriber's view of a Bus.
type Subscription[T any] struct {
	id      string
	ch      chan T
	dropped atomic.Uint64
	once    sync.Once
}

// C returns the subscription's event channel. It is closed when the
// subscription is cancelled or the bus shuts down.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Dropped returns the number of events lost to a full buffer.
func (s *Subscription[T]) Dropped() uint64 { return s.dropped.Load() }

// Option configures a Bus.
type Option func(*busConfig)

type busConfig struct {
	buffer int
}

// WithBuffer sets the per-subscription channel buffer size.
func WithBuffer(n int) Option {
	return func(c *busConfig) {
		c.buffer = n
	}
}

// NewBus creates a new broadcast bus.
func NewBus[T any](opts ...Option) *Bus[T] {
	cfg := busConfig{buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.buffer <= 0 {
		cfg.buffer = defaultBuffer
	}
	return &Bus[T]{
		subs:   make(map[string]*Subscription[T]),
		buffer: cfg.buffer,
	}
}

// Subscribe registers a new subscription. Subscribing to a closed bus
// yields a subscription whose channel is already closed.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub := &Subscription[T]{
			id: uuid.NewString(),
			ch: make(chan T),
		}
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	sub := &Subscription[T]{
		id: uuid.NewString(),
		ch: make(chan T, b.buffer),
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe cancels a subscription and closes its channel.
func (b *Bus[T]) Unsubscribe(sub *Subscription[T]) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	_, ok := b.subs[sub.id]
	delete(b.subs, sub.id)
	b.mu.Unlock()

	if ok {
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Publish delivers an event to every active subscription. Delivery to each
// subscriber preserves publication order.
func (b *Bus[T]) Publish(ev T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subs, id)
	}
}

// Stats reports publish and drop counters.
func (b *Bus[T]) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// Subscribers returns the number of active subscriptions.
func (b *Bus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
