/*
scheduler.go - Periodic red flag sweep

PURPOSE:
  Periodically lists every shift whose headline over/short is non-zero and
  not marked explained, publishes the count as a gauge and logs the
  offending shifts so they surface without anyone opening the dashboard.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Sweeps once immediately on Start, then on every tick
  - Read-only: never changes a shift

CONFIGURATION:
  - Interval: How often to sweep (SHIFTS_RED_FLAG_INTERVAL, 0 disables)

USAGE:
  monitor := NewRedFlagMonitor(manager, metrics, logger, 15*time.Minute)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - metrics.go: shifts_red_flag_shifts gauge
  - shift/manager.go: List with RedFlagOnly
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/shift-engine/shift"
)

// sweepTimeout bounds a single sweep.
const sweepTimeout = 30 * time.Second

// maxLoggedShifts caps how many shift ids one sweep logs.
const maxLoggedShifts = 20

// RedFlagMonitor sweeps for red-flagged shifts on a timer.
type RedFlagMonitor struct {
	Manager  *shift.Manager
	Metrics  *Metrics
	Logger   *zap.Logger
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRedFlagMonitor creates a monitor. metrics may be nil.
func NewRedFlagMonitor(manager *shift.Manager, metrics *Metrics, logger *zap.Logger, interval time.Duration) *RedFlagMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedFlagMonitor{
		Manager:  manager,
		Metrics:  metrics,
		Logger:   logger.Named("red_flag_monitor"),
		Interval: interval,
	}
}

// Start begins sweeping. It does nothing when Interval is zero or the
// monitor is already running.
func (m *RedFlagMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Interval <= 0 {
		m.Logger.Info("disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.Interval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run(m.ticker, m.stop)

	m.Logger.Info("started", zap.Duration("interval", m.Interval))
}

// Stop halts the monitor and waits for an in-flight sweep to finish.
func (m *RedFlagMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.Logger.Info("stopped")
}

func (m *RedFlagMonitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()

	m.sweepLogged()

	for {
		select {
		case <-ticker.C:
			m.sweepLogged()
		case <-stop:
			return
		}
	}
}

func (m *RedFlagMonitor) sweepLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := m.Sweep(ctx); err != nil {
		m.Logger.Error("sweep failed", zap.Error(err))
	}
}

// Sweep runs one pass and returns the red-flagged shifts, newest first.
func (m *RedFlagMonitor) Sweep(ctx context.Context) ([]shift.Summary, error) {
	flagged, err := m.Manager.List(ctx, shift.ListFilter{RedFlagOnly: true})
	if err != nil {
		return nil, err
	}
	if m.Metrics != nil {
		m.Metrics.SetRedFlags(len(flagged))
	}
	if len(flagged) == 0 {
		m.Logger.Debug("no red flags")
		return flagged, nil
	}

	ids := make([]string, 0, min(len(flagged), maxLoggedShifts))
	for _, s := range flagged[:min(len(flagged), maxLoggedShifts)] {
		ids = append(ids, s.Shift.Date.String()+" "+string(s.Shift.Label)+" ("+string(s.Shift.ID)+")")
	}
	m.Logger.Warn("red-flagged shifts",
		zap.Int("count", len(flagged)),
		zap.Strings("shifts", ids),
	)
	return flagged, nil
}
