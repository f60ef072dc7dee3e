package store

import (
	"sync"

	"github.com/agrobook/agrobook/models"
)

// subscriberBuffer bounds each subscription channel. A consumer that stops
// draining loses events rather than blocking store writers.
const subscriberBuffer = 64

// observer fans committed change events out to per-table subscribers.
type observer struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan models.ChangeEvent
}

func newObserver() *observer {
	return &observer{subs: make(map[string]map[int]chan models.ChangeEvent)}
}

// Subscribe registers a new consumer for one table's change events and
// returns the event channel plus a cancel function. Cancel is idempotent
// and closes the channel; a consumer may simply resubscribe to restart the
// stream.
func (o *observer) Subscribe(table string) (<-chan models.ChangeEvent, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.subs[table] == nil {
		o.subs[table] = make(map[int]chan models.ChangeEvent)
	}
	id := o.nextID
	o.nextID++

	ch := make(chan models.ChangeEvent, subscriberBuffer)
	o.subs[table][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs[table], id)
			close(ch)
		})
	}
	return ch, cancel
}

// publish delivers an event to all subscribers of its table without ever
// blocking: full channels drop the event.
func (o *observer) publish(ev models.ChangeEvent) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, ch := range o.subs[ev.Table] {
		select {
		case ch <- ev:
		default:
		}
	}
}
