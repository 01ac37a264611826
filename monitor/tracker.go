package monitor

import (
	"sync"
	"time"

	"trend-monitor-go/market"
)

// TransitionEvent is the sole output artifact of the monitor: one confirmed
// regime change for one series. It is created once and handed to the alert
// sink; the monitor does not retain it.
type TransitionEvent struct {
	Key      market.SeriesKey
	From     market.Regime
	To       market.Regime
	At       time.Time
	Snapshot market.Snapshot
}

// Tracker debounces candidate regimes for one series. A candidate that
// differs from the confirmed regime must be observed for N consecutive
// cycles before it is confirmed and exactly one TransitionEvent is emitted;
// single noisy bars therefore never flap the alert stream.
//
// Each tracker is owned by its series key; the mutex only covers the
// cross-goroutine Confirmed/LastUpdate reads used for status reporting.
type Tracker struct {
	key           market.SeriesKey
	confirmations int

	mu         sync.Mutex
	confirmed  market.Regime
	candidate  market.Regime
	streak     int
	lastUpdate time.Time
}

// NewTracker creates a tracker requiring confirmations consecutive cycles
// before accepting a regime change. The tracker starts in the UNKNOWN
// pseudo-state: the first successful classification confirms silently so a
// fresh series never produces a synthetic transition.
func NewTracker(key market.SeriesKey, confirmations int) *Tracker {
	if confirmations < 1 {
		confirmations = 1
	}
	return &Tracker{
		key:           key,
		confirmations: confirmations,
	}
}

// Observe applies one classification cycle. It returns a TransitionEvent
// exactly when a regime change is confirmed, nil otherwise. Observations
// whose timestamp is not strictly after the previous one are rejected
// outright: the debounce streak is only meaningful under causal ordering.
func (t *Tracker) Observe(candidate market.Regime, at time.Time, snap market.Snapshot) *TransitionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastUpdate.IsZero() && !at.After(t.lastUpdate) {
		return nil
	}
	t.lastUpdate = at

	// First successful classification initializes the confirmed regime
	// without an event.
	if t.confirmed == market.RegimeUnknown {
		t.confirmed = candidate
		return nil
	}

	// Agreement with the confirmed regime resets any opposing streak.
	if candidate == t.confirmed {
		t.candidate = market.RegimeUnknown
		t.streak = 0
		return nil
	}

	// Streaks are not cumulative across different candidates: a wobble
	// restarts the count at one.
	if candidate != t.candidate {
		t.candidate = candidate
		t.streak = 1
	} else {
		t.streak++
	}

	if t.streak < t.confirmations {
		return nil
	}

	from := t.confirmed
	t.confirmed = candidate
	t.candidate = market.RegimeUnknown
	t.streak = 0

	return &TransitionEvent{
		Key:      t.key,
		From:     from,
		To:       candidate,
		At:       at,
		Snapshot: snap,
	}
}

// Confirmed returns the currently confirmed regime.
func (t *Tracker) Confirmed() market.Regime {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.confirmed
}

// LastUpdate returns the timestamp of the last accepted observation.
func (t *Tracker) LastUpdate() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUpdate
}
