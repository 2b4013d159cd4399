// Package connectivity tracks whether the authority is reachable and
// announces transitions.
//
// Only transitions are announced. Listeners that react to "came back
// online" (the drain scheduler, the catalog refresher) therefore run once
// per outage, however often the state is re-asserted.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the reachability of the authority.
type State string

const (
	Unknown State = "unknown"
	Online  State = "online"
	Offline State = "offline"
)

// Monitor holds the current State.
//
// Thread-safety: safe for concurrent use. Listeners are called without the
// monitor lock held, in registration order, on the goroutine that caused
// the transition.
type Monitor struct {
	mu        sync.Mutex
	state     State
	changedAt time.Time
	now       func() time.Time
	next      int
	listeners map[int]func(from, to State)
	order     []int
	logger    *slog.Logger
}

// NewMonitor creates a monitor in the Unknown state.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		state:     Unknown,
		now:       time.Now,
		listeners: make(map[int]func(from, to State)),
		logger:    logger,
	}
}

// State returns the current state and when it was entered.
func (m *Monitor) State() (State, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.changedAt
}

// Online reports whether the last observation was Online.
func (m *Monitor) Online() bool {
	s, _ := m.State()
	return s == Online
}

// Set records an observation. Listeners run only if the state changed.
// Returns whether it changed.
func (m *Monitor) Set(to State) bool {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return false
	}
	m.state = to
	m.changedAt = m.now()
	fns := make([]func(from, to State), 0, len(m.order))
	for _, id := range m.order {
		fns = append(fns, m.listeners[id])
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "from", string(from), "to", string(to))
	for _, fn := range fns {
		fn(from, to)
	}
	return true
}

// NotifyOnline records that the authority answered.
func (m *Monitor) NotifyOnline() bool { return m.Set(Online) }

// NotifyOffline records that the authority did not answer.
func (m *Monitor) NotifyOffline() bool { return m.Set(Offline) }

// Subscribe registers fn for every transition. The returned func
// unregisters it and is safe to call more than once.
func (m *Monitor) Subscribe(fn func(from, to State)) (cancel func()) {
	m.mu.Lock()
	id := m.next
	m.next++
	m.listeners[id] = fn
	m.order = append(m.order, id)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
			for i, v := range m.order {
				if v == id {
					m.order = append(m.order[:i], m.order[i+1:]...)
					break
				}
			}
		})
	}
}

// OnOnline registers fn for transitions into Online.
func (m *Monitor) OnOnline(fn func()) (cancel func()) {
	return m.Subscribe(func(_, to State) {
		if to == Online {
			fn()
		}
	})
}

// Pinger reports whether the authority is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober feeds a Monitor from periodic pings.
type Prober struct {
	pinger   Pinger
	monitor  *Monitor
	interval time.Duration
	logger   *slog.Logger
}

// NewProber creates a prober. interval <= 0 means 15s.
func NewProber(p Pinger, m *Monitor, interval time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{pinger: p, monitor: m, interval: interval, logger: logger}
}

// Probe pings once and records the result.
func (p *Prober) Probe(ctx context.Context) State {
	if err := p.pinger.Ping(ctx); err != nil {
		if ctx.Err() != nil {
			s, _ := p.monitor.State()
			return s
		}
		p.logger.Debug("authority unreachable", "error", err)
		p.monitor.NotifyOffline()
		return Offline
	}
	p.monitor.NotifyOnline()
	return Online
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	p.Probe(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.Probe(ctx)
		}
	}
}
