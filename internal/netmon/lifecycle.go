package netmon

import (
	"sync"
	"time"
)

// AppState is the embedding application's lifecycle state.
type AppState int

const (
	StateForeground AppState = iota
	StateBackground
)

// AppEvent is emitted on every lifecycle transition.
type AppEvent struct {
	State AppState
	At    time.Time
}

// Lifecycle relays foreground/background transitions from the embedding
// application to the sync job. The app shell calls Foreground and Background
// from its own lifecycle hooks; repeated calls in the same state are ignored.
type Lifecycle struct {
	mu     sync.Mutex
	state  AppState
	events chan AppEvent
}

// NewLifecycle returns a Lifecycle starting in the foreground state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{events: make(chan AppEvent, eventBuffer)}
}

// Foreground records a transition to the foreground.
func (l *Lifecycle) Foreground() {
	l.transition(StateForeground)
}

// Background records a transition to the background.
func (l *Lifecycle) Background() {
	l.transition(StateBackground)
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() AppState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Events returns the transition channel. Events are dropped, not queued,
// when the consumer lags.
func (l *Lifecycle) Events() <-chan AppEvent {
	return l.events
}

func (l *Lifecycle) transition(to AppState) {
	l.mu.Lock()
	if l.state == to {
		l.mu.Unlock()
		return
	}
	l.state = to
	l.mu.Unlock()

	select {
	case l.events <- AppEvent{State: to, At: time.Now()}:
	default:
	}
}
