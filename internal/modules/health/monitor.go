package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/clock"
)

const DefaultInterval = 30 * time.Second

type State string

const (
	StateChecking     State = "checking"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Status is the last known connectivity of the API
type Status struct {
	State       State
	LastChecked time.Time
	Err         error
}

type Probe interface {
	Check(ctx context.Context) error
}

var _ Probe = (*Checker)(nil)

// Monitor runs a Probe periodically and keeps the latest result
type Monitor struct {
	probe    Probe
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
	// settled is the state of the last finished check, never StateChecking
	// once one has finished. Overlapping checks compare against it.
	settled  State
	observer func(Status)
}

func NewMonitor(probe Probe, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		clock:    clk,
		logger:   logger,
		status:   Status{State: StateChecking},
		settled:  StateChecking,
	}
}

// OnCheck registers fn to receive the status of every completed check.
// Call it before Run.
func (m *Monitor) OnCheck(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// Run checks immediately, then once per interval until ctx is done. The
// interval is driven by the monitor's clock when it implements clock.Ticker.
func (m *Monitor) Run(ctx context.Context) {
	ticks, stop := m.newTicker()
	defer stop()

	m.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			m.CheckNow(ctx)
		}
	}
}

func (m *Monitor) newTicker() (<-chan time.Time, func()) {
	if tk, ok := m.clock.(clock.Ticker); ok {
		return tk.NewTicker(m.interval)
	}
	t := time.NewTicker(m.interval)
	return t.C, t.Stop
}

// CheckNow runs one probe and returns the resulting status
func (m *Monitor) CheckNow(ctx context.Context) Status {
	m.mu.Lock()
	m.status.State = StateChecking
	m.mu.Unlock()

	err := m.probe.Check(ctx)

	next := Status{State: StateConnected, LastChecked: m.clock.Now()}
	if err != nil {
		next.State = StateDisconnected
		next.Err = err
	}

	m.mu.Lock()
	prev := m.settled
	m.settled = next.State
	m.status = next
	observer := m.observer
	m.mu.Unlock()

	if next.State != prev && prev != StateChecking {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "API_CONNECTIVITY_CHANGED",
			slog.String("from", string(prev)),
			slog.String("to", string(next.State)))
	}
	if observer != nil {
		observer(next)
	}
	return next
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
