// Package heartbeat runs one recurring liveness probe per connection. The
// monitor holds no business data; it is pure timer management with the same
// lifecycle as the connection it watches.
package heartbeat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/livewire/internal/metrics"
)

// Monitor owns the per-connection heartbeat timers for one process instance.
type Monitor struct {
	clock    clockwork.Clock
	interval time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]chan struct{}
}

func NewMonitor(interval time.Duration, clock clockwork.Clock) *Monitor {
	return &Monitor{
		clock:    clock,
		interval: interval,
		timers:   make(map[uuid.UUID]chan struct{}),
	}
}

// Start begins a repeating probe for the connection. A second Start for the
// same connection replaces the previous timer. The probe is a one-way
// liveness signal; if it reports the connection dead, the timer stops itself
// instead of waiting for external cleanup.
func (m *Monitor) Start(connID uuid.UUID, probe func() error) {
	stopCh := make(chan struct{})

	m.mu.Lock()
	if old, ok := m.timers[connID]; ok {
		close(old)
		metrics.HeartbeatTimersActive.Dec()
	}
	m.timers[connID] = stopCh
	m.mu.Unlock()

	metrics.HeartbeatTimersActive.Inc()

	go m.run(connID, stopCh, probe)
}

func (m *Monitor) run(connID uuid.UUID, stopCh chan struct{}, probe func() error) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			if err := probe(); err != nil {
				slog.Debug("Heartbeat probe failed, stopping timer",
					"connection_id", connID, "error", err)
				m.remove(connID, stopCh)
				return
			}
			metrics.HeartbeatsSent.Inc()
		}
	}
}

// Stop cancels the timer for the connection. Safe to call multiple times and
// safe for a connection that was never started.
func (m *Monitor) Stop(connID uuid.UUID) {
	m.mu.Lock()
	stopCh, ok := m.timers[connID]
	if ok {
		delete(m.timers, connID)
		close(stopCh)
	}
	m.mu.Unlock()

	if ok {
		metrics.HeartbeatTimersActive.Dec()
	}
}

// remove drops the timer entry, but only while stopCh is still the current
// one; a replaced timer must not remove its successor.
func (m *Monitor) remove(connID uuid.UUID, stopCh chan struct{}) {
	m.mu.Lock()
	current, ok := m.timers[connID]
	if ok && current == stopCh {
		delete(m.timers, connID)
	} else {
		ok = false
	}
	m.mu.Unlock()

	if ok {
		metrics.HeartbeatTimersActive.Dec()
	}
}

// Active returns the number of running timers.
func (m *Monitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
