package core

import (
	"context"
	"sync"

	"provcore/pkg/domain"
)

// Dispatcher fans events out to subscribers in registration order. The
// store publishes while still holding the mutated product's lock, so
// every subscriber sees a product's events in exactly the order the
// mutations committed. Handlers therefore must return quickly and must
// not call back into the store or service.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id      int
	handler func(domain.Event)
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers handler and returns a cancel function. Cancel is
// idempotent.
func (d *Dispatcher) Subscribe(handler func(domain.Event)) func() {
	if handler == nil {
		return func() {}
	}
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscriber{id: id, handler: handler})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.subs {
				if s.id == id {
					d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers event to every current subscriber synchronously.
func (d *Dispatcher) Publish(_ context.Context, event domain.Event) {
	d.mu.RLock()
	subs := d.subs
	d.mu.RUnlock()
	for _, s := range subs {
		s.handler(event)
	}
}

var _ domain.EventSink = (*Dispatcher)(nil)
