package broadcast

import (
	"sync"

	"secsync/internal/metrics"
)

// Topic is a multicast value holder that replays its current value to new
// subscribers. Each subscriber has a single-slot mailbox, so a slow
// subscriber only ever sees the latest value and never blocks Publish.
type Topic[T any] struct {
	name    string
	mu      sync.Mutex
	current T
	nextID  uint64
	subs    map[uint64]*Subscription[T]
}

// NewTopic creates a topic holding initial.
func NewTopic[T any](name string, initial T) *Topic[T] {
	return &Topic[T]{
		name:    name,
		current: initial,
		subs:    make(map[uint64]*Subscription[T]),
	}
}

// Name returns the channel name.
func (t *Topic[T]) Name() string {
	return t.name
}

// Value returns the current value.
func (t *Topic[T]) Value() T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Publish replaces the current value and notifies every subscriber.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = v
	for _, s := range t.subs {
		s.offer(v)
	}
}

// Subscribe registers fn and immediately delivers the current value to it.
// fn runs on a goroutine owned by the subscription.
func (t *Topic[T]) Subscribe(fn func(T)) *Subscription[T] {
	s := &Subscription[T]{
		topic:  t,
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	t.nextID++
	s.id = t.nextID
	t.subs[s.id] = s
	s.offer(t.current)
	t.mu.Unlock()

	metrics.Subscribers.WithLabelValues(t.name).Inc()
	go s.run()
	return s
}

// Subscribers returns the number of active subscriptions.
func (t *Topic[T]) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (t *Topic[T]) remove(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[id]; !ok {
		return false
	}
	delete(t.subs, id)
	return true
}

// Subscription is a registered topic listener.
type Subscription[T any] struct {
	id     uint64
	topic  *Topic[T]
	fn     func(T)
	signal chan struct{}
	done   chan struct{}
	once   sync.Once

	mu         sync.Mutex
	pending    T
	hasPending bool
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		if s.topic.remove(s.id) {
			metrics.Subscribers.WithLabelValues(s.topic.name).Dec()
		}
		close(s.done)
	})
}

func (s *Subscription[T]) offer(v T) {
	s.mu.Lock()
	s.pending = v
	s.hasPending = true
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.pending, s.hasPending
	var zero T
	s.pending = zero
	s.hasPending = false
	return v, ok
}

func (s *Subscription[T]) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
			v, ok := s.take()
			if !ok {
				continue
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(v)
		}
	}
}
