// Package netmon tracks connectivity to the remote backend.
//
// The device has no reliable OS-level signal for "the backend is reachable",
// so [NewProbeMonitor] derives connectivity from periodic cheap probes and
// reports transitions on an event channel. [Lifecycle] carries
// foreground/background transitions from the embedding application so the
// sync job can suspend its loops while backgrounded.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/agrobook/agrobook/internal/logger"
)

//go:generate mockgen -source=netmon.go -destination=../mock/netmon_mock.go -package=mock

// Status is the probed connectivity state.
type Status int

const (
	StatusOffline Status = iota
	StatusOnline
)

func (s Status) String() string {
	if s == StatusOnline {
		return "online"
	}
	return "offline"
}

// Event is emitted on every connectivity transition. Steady states produce
// no events.
type Event struct {
	Status Status
	At     time.Time
}

// Pinger is the probe target. The backend adapter satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor reports backend connectivity.
type Monitor interface {
	// Start launches the probe loop. It returns immediately; the loop stops
	// when ctx is cancelled or Stop is called.
	Start(ctx context.Context)

	// Stop terminates the probe loop and blocks until it has exited. Safe to
	// call when not running.
	Stop()

	// Online reports the last probed state.
	Online() bool

	// Events returns the transition channel. Events are dropped, not
	// queued, when the consumer lags.
	Events() <-chan Event
}

const eventBuffer = 8

type probeMonitor struct {
	pinger   Pinger
	interval time.Duration
	logger   *logger.Logger

	events chan Event

	mu     sync.Mutex
	online bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProbeMonitor builds a probe-driven [Monitor] that pings the backend
// every interval. The monitor starts pessimistic: it reports offline until
// the first probe succeeds.
func NewProbeMonitor(pinger Pinger, interval time.Duration, log *logger.Logger) Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &probeMonitor{
		pinger:   pinger,
		interval: interval,
		logger:   log,
		events:   make(chan Event, eventBuffer),
	}
}

// Start implements [Monitor]. A previous loop, if any, is stopped first.
func (m *probeMonitor) Start(ctx context.Context) {
	m.Stop()

	m.mu.Lock()
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		m.probe(loopCtx)

		t := time.NewTicker(m.interval)
		defer t.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-t.C:
				m.probe(loopCtx)
			}
		}
	}()
}

// Stop implements [Monitor].
func (m *probeMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Online implements [Monitor].
func (m *probeMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Events implements [Monitor].
func (m *probeMonitor) Events() <-chan Event {
	return m.events
}

func (m *probeMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	now := time.Now()
	online := err == nil

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	status := StatusOffline
	if online {
		status = StatusOnline
	}
	m.logger.Info().Str("status", status.String()).Msg("connectivity changed")

	select {
	case m.events <- Event{Status: status, At: now}:
	default:
	}
}
