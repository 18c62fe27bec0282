package upload

import (
	"sync"

	"github.com/akademi-crypto/vidhub/pkg/metrics"
)

// Broadcaster fans progress events out to the observers of each upload.
// Every subscription has its own unbounded queue drained by a goroutine, so
// a slow observer never holds up the session publishing events.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[string]map[uint64]*Subscription
	nextID  uint64
	metrics *metrics.UploadMetrics
}

func NewBroadcaster(m *metrics.UploadMetrics) *Broadcaster {
	return &Broadcaster{
		subs:    make(map[string]map[uint64]*Subscription),
		metrics: m,
	}
}

func (b *Broadcaster) subscribe(uploadID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscription{
		UploadID: uploadID,
		id:       b.nextID,
		b:        b,
		wake:     make(chan struct{}, 1),
		events:   make(chan Event),
		done:     make(chan struct{}),
	}

	if b.subs[uploadID] == nil {
		b.subs[uploadID] = make(map[uint64]*Subscription)
	}
	b.subs[uploadID][s.id] = s

	b.metrics.ObserverAttached()
	go s.run()

	return s
}

// publish queues r for every observer of its upload. Observers are detached
// here once they have been handed a terminal event.
func (b *Broadcaster) publish(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[r.UploadID]
	if len(subs) == 0 {
		return
	}

	ev := progressEvent(r)
	for id, s := range subs {
		s.push(ev)
		if ev.IsTerminal() {
			s.finish()
			delete(subs, id)
		}
	}

	if len(subs) == 0 {
		delete(b.subs, r.UploadID)
	}
}

// detach stops delivering new events to s. Queued events are still drained.
func (b *Broadcaster) detach(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[s.UploadID]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(b.subs, s.UploadID)
		}
	}
}

// Count returns the number of attached observers across all uploads.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}

	return n
}

// Subscription is one observer of one upload. Events is closed after the
// terminal event has been received or after Close.
type Subscription struct {
	UploadID string

	id     uint64
	b      *Broadcaster
	mu     sync.Mutex
	queue  []Event
	final  bool
	wake   chan struct{}
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close detaches the observer. It is safe to call more than once and after
// the subscription finished on its own.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.detach(s)
		close(s.done)
	})
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if !s.final {
		s.queue = append(s.queue, ev)
	}
	s.mu.Unlock()

	s.signal()
}

func (s *Subscription) finish() {
	s.mu.Lock()
	s.final = true
	s.mu.Unlock()

	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer s.b.metrics.ObserverDetached()
	defer close(s.events)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			final := s.final
			s.mu.Unlock()

			if final {
				return
			}

			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
