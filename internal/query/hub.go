package query

import (
	"sync"

	"github.com/593496637/onchain-data-system/internal/model"
)

// Hub fans newly committed entities out to subscribers. Delivery per
// subscriber is ordered by arrival (commit order as seen by the hub), not by
// chain order; consumers needing chain order sort by (blockNumber, logIndex).
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]*Subscription)}
}

// Subscribe registers for entities of the given types. An empty type list
// subscribes to everything. The caller reads from C until it is closed and
// calls Cancel when done; queued undelivered entities are dropped on cancel.
func (h *Hub) Subscribe(types ...model.EntityType) *Subscription {
	sub := &Subscription{
		hub:   h,
		types: make(map[model.EntityType]struct{}, len(types)),
		ch:    make(chan model.Entity),
		done:  make(chan struct{}),
	}
	sub.C = sub.ch
	sub.cond = sync.NewCond(&sub.mu)
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	h.mu.Lock()
	sub.id = h.nextID
	h.nextID++
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go sub.run()
	return sub
}

// Publish enqueues an entity for every matching subscriber. It never blocks
// on slow consumers; each subscription buffers its own queue.
func (h *Hub) Publish(e model.Entity) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(e)
	}
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is a live feed of newly committed entities.
type Subscription struct {
	C <-chan model.Entity

	hub   *Hub
	id    int
	types map[model.EntityType]struct{}
	ch    chan model.Entity
	done  chan struct{}

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []model.Entity
	closed bool
}

func (s *Subscription) wants(t model.EntityType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

func (s *Subscription) enqueue(e model.Entity) {
	s.mu.Lock()
	if !s.closed && s.wants(e.Type()) {
		s.queue = append(s.queue, e)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// Cancel stops delivery. In-flight entities queued for this subscriber are
// dropped, not delivered. C is closed afterwards.
func (s *Subscription) Cancel() {
	s.hub.remove(s.id)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	close(s.done)
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Subscription) run() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- next:
		case <-s.done:
			return
		}
	}
}
