package api

import (
	"sync"
)

// Event is one progress or lifecycle notification for an optimization run,
// fanned out to stream subscribers of the owning tenant.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Broker is the in-process event fanout, keyed by tenant. Sends never block:
// a slow subscriber drops events instead of stalling the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // tenant -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(tenant string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[tenant] == nil {
		b.subs[tenant] = map[chan Event]struct{}{}
	}
	b.subs[tenant][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(tenant string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[tenant]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, tenant)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(tenant string, evt Event) {
	b.mu.Lock()
	for ch := range b.subs[tenant] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
