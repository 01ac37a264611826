package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trend-monitor-go/infrastructure/logger"
	"trend-monitor-go/market"
	"trend-monitor-go/metrics"
)

// BarSource supplies the bounded candle window for one series. Implementations
// live in the gateway package; the monitor only ever sees one successful
// window or a typed failure.
type BarSource interface {
	Fetch(ctx context.Context, key market.SeriesKey, limit int) ([]market.Bar, error)
}

// AlertSink consumes confirmed transitions. Fire-and-forget: the monitor
// calls Notify exactly once per event and does not retry.
type AlertSink interface {
	Notify(ev TransitionEvent)
}

// AlertFunc adapts a function to the AlertSink interface.
type AlertFunc func(ev TransitionEvent)

// Notify calls f(ev).
func (f AlertFunc) Notify(ev TransitionEvent) { f(ev) }

// Config drives the monitoring loop.
type Config struct {
	Interval      time.Duration // cadence between rounds
	FetchLimit    int           // bars requested per cycle
	Confirmations int           // debounce streak length N
}

// Validate rejects configurations the loop cannot run with. Validation
// failures are fatal at startup; the configuration is immutable once the
// loop starts (thresholds excepted, see SetThresholds).
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %v", c.Interval)
	}
	if c.FetchLimit < 1 {
		return fmt.Errorf("fetchLimit must be >= 1, got %d", c.FetchLimit)
	}
	if c.Confirmations < 1 {
		return fmt.Errorf("confirmations must be >= 1, got %d", c.Confirmations)
	}
	return nil
}

// Monitor drives the fetch -> indicators -> classifier -> tracker pipeline
// for every configured series on a fixed cadence. Per-series state is
// partitioned by key: each round fans out one goroutine per key and joins
// before the next tick, so a slow or failing series never blocks the others.
type Monitor struct {
	cfg        Config
	source     BarSource
	sink       AlertSink
	indicators *market.Indicators
	classifier *market.Classifier
	log        *logger.Logger

	trackers map[market.SeriesKey]*Tracker // fixed at construction

	mu         sync.RWMutex // guards thresholds (hot reload) and running
	thresholds market.Thresholds
	running    bool
}

// New builds a monitor for the given series keys. The key set and config are
// fixed for the lifetime of the monitor.
func New(cfg Config, keys []market.SeriesKey, source BarSource, sink AlertSink,
	indicators *market.Indicators, classifier *market.Classifier,
	thresholds market.Thresholds, log *logger.Logger) (*Monitor, error) {

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("monitor config: %w", err)
	}
	if len(keys) == 0 {
		return nil, errors.New("monitor config: no series keys configured")
	}
	if source == nil {
		return nil, errors.New("monitor config: bar source is required")
	}

	trackers := make(map[market.SeriesKey]*Tracker, len(keys))
	for _, k := range keys {
		trackers[k] = NewTracker(k, cfg.Confirmations)
	}

	return &Monitor{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		indicators: indicators,
		classifier: classifier,
		log:        log,
		trackers:   trackers,
		thresholds: thresholds,
	}, nil
}

// Run executes monitoring rounds until ctx is cancelled. The first round
// starts immediately. Cancellation is clean: the in-flight round finishes
// (including any event emission) before Run returns.
func (m *Monitor) Run(ctx context.Context) error {
	m.setRunning(true)
	defer m.setRunning(false)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.runRound(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runRound(ctx)
		}
	}
}

// runRound fans out one cycle per series key and waits for all of them.
func (m *Monitor) runRound(ctx context.Context) {
	var wg sync.WaitGroup
	for key, tr := range m.trackers {
		wg.Add(1)
		go func(key market.SeriesKey, tr *Tracker) {
			defer wg.Done()
			m.runCycle(ctx, key, tr)
		}(key, tr)
	}
	wg.Wait()
}

// runCycle performs one classification cycle for one series. All failures
// are contained here: they skip this key's cycle and never propagate to
// other keys or abort the loop.
func (m *Monitor) runCycle(ctx context.Context, key market.SeriesKey, tr *Tracker) {
	bars, err := m.source.Fetch(ctx, key, m.cfg.FetchLimit)
	if err != nil {
		metrics.FetchErrorsTotal.WithLabelValues(key.Symbol, key.Timeframe).Inc()
		metrics.RecordCycle(key.Symbol, key.Timeframe, "fetch_error")
		if m.log != nil {
			m.log.LogSkip(key.Symbol, key.Timeframe, "fetch_failed", err)
		}
		return
	}

	snap, err := m.indicators.Compute(bars)
	if err != nil {
		// Short window is a normal warm-up condition, not a failure.
		metrics.RecordCycle(key.Symbol, key.Timeframe, "skipped")
		if m.log != nil && !errors.Is(err, market.ErrInsufficientData) {
			m.log.LogSkip(key.Symbol, key.Timeframe, "compute_failed", err)
		}
		return
	}

	regime := m.classifier.Classify(snap, m.Thresholds())
	metrics.RecordCycle(key.Symbol, key.Timeframe, "ok")
	if m.log != nil {
		m.log.LogCycle(key.Symbol, key.Timeframe, regime.String(), map[string]interface{}{
			"close":     snap.Close,
			"rsi":       snap.RSI,
			"vol_ratio": snap.VolRatio,
		})
	}

	ev := tr.Observe(regime, bars[len(bars)-1].Ts, snap)
	if ev == nil {
		return
	}

	metrics.RecordTransition(key.Symbol, key.Timeframe, ev.To.String(), int(ev.To))
	if m.log != nil {
		m.log.LogTransition(key.Symbol, key.Timeframe, ev.From.String(), ev.To.String(), map[string]interface{}{
			"price": ev.Snapshot.Close,
			"at":    ev.At,
		})
	}
	if m.sink != nil {
		m.sink.Notify(*ev)
	}
}

// Thresholds returns the classifier thresholds currently in effect.
func (m *Monitor) Thresholds() market.Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// SetThresholds swaps the classifier thresholds at runtime (config hot
// reload). Trackers and debounce state are untouched.
func (m *Monitor) SetThresholds(th market.Thresholds) {
	m.mu.Lock()
	m.thresholds = th
	m.mu.Unlock()
}

// Status is a point-in-time view of the monitor for status reporting.
type Status struct {
	Running bool
	Regimes map[market.SeriesKey]market.Regime
}

// Status reports whether the loop is running and the confirmed regime per
// series.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()

	regimes := make(map[market.SeriesKey]market.Regime, len(m.trackers))
	for key, tr := range m.trackers {
		regimes[key] = tr.Confirmed()
	}
	return Status{Running: running, Regimes: regimes}
}

func (m *Monitor) setRunning(v bool) {
	m.mu.Lock()
	m.running = v
	m.mu.Unlock()
}
