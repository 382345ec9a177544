package queue

import (
	"sync"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 64

// Broadcaster fans published values out to subscribers. Every subscriber owns
// a buffered channel drained by its own goroutine, so a slow subscriber never
// blocks the publisher and each subscriber sees values in publish order.
//
// When a subscriber's buffer is full the oldest pending value is dropped.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber[T]
	nextID uint64
	closed bool
	log    zerolog.Logger
}

type subscriber[T any] struct {
	ch   chan T
	done chan struct{}
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster[T any](log zerolog.Logger) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs: make(map[uint64]*subscriber[T]),
		log:  log,
	}
}

// Subscribe registers fn and starts its worker. Seed values are delivered
// before anything published afterwards. The returned func unsubscribes; values
// already buffered are still delivered.
func (b *Broadcaster[T]) Subscribe(fn func(T), seed ...T) (unsubscribe func()) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.nextID
	b.nextID++
	s := &subscriber[T]{
		ch:   make(chan T, subscriberBuffer),
		done: make(chan struct{}),
	}
	for _, v := range seed {
		b.offer(id, s, v)
	}
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		defer close(s.done)
		for v := range s.ch {
			fn(v)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers v to every current subscriber without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, s := range b.subs {
		b.offer(id, s, v)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close unsubscribes everyone and waits for the workers to drain.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscriber[T])
	for _, s := range subs {
		close(s.ch)
	}
	b.mu.Unlock()

	for _, s := range subs {
		<-s.done
	}
}

// offer must be called with b.mu held.
func (b *Broadcaster[T]) offer(id uint64, s *subscriber[T], v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
		b.log.Warn().Uint64("subscriber_id", id).Msg("subscriber buffer full, dropped oldest value")
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}
