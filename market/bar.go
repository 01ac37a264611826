package market

import "time"

// Bar represents one OHLCV aggregation over a fixed time slice.
type Bar struct {
	Ts     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SeriesKey identifies one independently monitored (symbol, timeframe) stream.
type SeriesKey struct {
	Symbol    string
	Timeframe string
}

func (k SeriesKey) String() string {
	return k.Symbol + "_" + k.Timeframe
}

// Window is a bounded, append-only series of bars ordered by timestamp.
type Window struct {
	size int
	bars []Bar
}

// NewWindow creates a window that keeps at most size bars.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{
		size: size,
		bars: make([]Bar, 0, size),
	}
}

// Append adds a bar and drops the oldest one when the window is full.
// Bars whose timestamp is not strictly after the last one are rejected,
// so the window stays causally ordered and free of duplicates.
func (w *Window) Append(b Bar) bool {
	if n := len(w.bars); n > 0 && !b.Ts.After(w.bars[n-1].Ts) {
		return false
	}
	w.bars = append(w.bars, b)
	if len(w.bars) > w.size {
		w.bars = w.bars[1:]
	}
	return true
}

// Bars returns a copy of the current window contents.
func (w *Window) Bars() []Bar {
	out := make([]Bar, len(w.bars))
	copy(out, w.bars)
	return out
}

// Len returns the number of bars currently held.
func (w *Window) Len() int {
	return len(w.bars)
}

// Last returns the most recent bar, or false if the window is empty.
func (w *Window) Last() (Bar, bool) {
	if len(w.bars) == 0 {
		return Bar{}, false
	}
	return w.bars[len(w.bars)-1], true
}
