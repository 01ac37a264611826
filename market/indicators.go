package market

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData is returned when the bar window is shorter than the
// slowest indicator requires. Callers treat it as recoverable: accumulate
// more bars and retry on the next cycle.
var ErrInsufficientData = errors.New("insufficient data for indicator window")

// IndicatorConfig holds the lookback periods for every derived feature.
type IndicatorConfig struct {
	BandPeriod     int     // Bollinger band SMA/stddev period
	BandStdDev     float64 // band width multiplier k
	RSIPeriod      int
	ShortMAPeriod  int
	LongMAPeriod   int
	ATRShortPeriod int // recent realized volatility lookback
	ATRLongPeriod  int // longer-run volatility baseline
}

// DefaultIndicatorConfig mirrors the periods the monitor ships with.
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		BandPeriod:     20,
		BandStdDev:     2.0,
		RSIPeriod:      14,
		ShortMAPeriod:  10,
		LongMAPeriod:   30,
		ATRShortPeriod: 5,
		ATRLongPeriod:  20,
	}
}

// Validate rejects period combinations the engine cannot compute.
func (c IndicatorConfig) Validate() error {
	if c.BandPeriod < 2 {
		return fmt.Errorf("bandPeriod must be >= 2, got %d", c.BandPeriod)
	}
	if c.BandStdDev <= 0 {
		return fmt.Errorf("bandStdDev must be > 0, got %f", c.BandStdDev)
	}
	if c.RSIPeriod < 1 {
		return fmt.Errorf("rsiPeriod must be >= 1, got %d", c.RSIPeriod)
	}
	if c.ShortMAPeriod < 1 || c.LongMAPeriod < 1 {
		return fmt.Errorf("ma periods must be >= 1, got %d/%d", c.ShortMAPeriod, c.LongMAPeriod)
	}
	if c.ShortMAPeriod >= c.LongMAPeriod {
		return fmt.Errorf("shortMAPeriod %d must be < longMAPeriod %d", c.ShortMAPeriod, c.LongMAPeriod)
	}
	if c.ATRShortPeriod < 1 || c.ATRLongPeriod < 1 {
		return fmt.Errorf("atr periods must be >= 1, got %d/%d", c.ATRShortPeriod, c.ATRLongPeriod)
	}
	if c.ATRShortPeriod >= c.ATRLongPeriod {
		return fmt.Errorf("atrShortPeriod %d must be < atrLongPeriod %d", c.ATRShortPeriod, c.ATRLongPeriod)
	}
	return nil
}

// Snapshot is the feature set one classification cycle runs on. It is derived
// solely from the bar window passed to Compute; nothing is carried over.
type Snapshot struct {
	Close     float64
	BandUpper float64
	BandMid   float64
	BandLower float64
	RSI       float64
	ShortMA   float64
	LongMA    float64
	VolRatio  float64 // recent ATR over longer-run ATR; ~1 means stable
}

// Indicators computes feature snapshots from bar windows. It holds no state
// between calls: every snapshot is recomputed from the given window, so the
// same window always yields the same snapshot.
type Indicators struct {
	cfg IndicatorConfig
}

// NewIndicators creates an engine for the given periods.
func NewIndicators(cfg IndicatorConfig) *Indicators {
	return &Indicators{cfg: cfg}
}

// MinBars returns the minimum window length Compute accepts. RSI and ATR need
// one extra bar for the first delta / true range.
func (in *Indicators) MinBars() int {
	w := in.cfg.BandPeriod
	if n := in.cfg.RSIPeriod + 1; n > w {
		w = n
	}
	if in.cfg.LongMAPeriod > w {
		w = in.cfg.LongMAPeriod
	}
	if n := in.cfg.ATRLongPeriod + 1; n > w {
		w = n
	}
	return w
}

// Compute derives a snapshot from the window. Returns ErrInsufficientData
// when the window is shorter than MinBars; it never returns a partial
// snapshot.
func (in *Indicators) Compute(bars []Bar) (Snapshot, error) {
	if len(bars) < in.MinBars() {
		return Snapshot{}, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientData, len(bars), in.MinBars())
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	mid := sma(closes, in.cfg.BandPeriod)
	sd := sampleStdDev(closes, in.cfg.BandPeriod)

	snap := Snapshot{
		Close:     closes[len(closes)-1],
		BandMid:   mid,
		BandUpper: mid + in.cfg.BandStdDev*sd,
		BandLower: mid - in.cfg.BandStdDev*sd,
		RSI:       rsi(closes, in.cfg.RSIPeriod),
		ShortMA:   sma(closes, in.cfg.ShortMAPeriod),
		LongMA:    sma(closes, in.cfg.LongMAPeriod),
		VolRatio:  volRatio(bars, in.cfg.ATRShortPeriod, in.cfg.ATRLongPeriod),
	}
	return snap, nil
}

// sma averages the last period values.
func sma(vals []float64, period int) float64 {
	tail := vals[len(vals)-period:]
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	return sum / float64(period)
}

// sampleStdDev computes the sample standard deviation of the last period values.
func sampleStdDev(vals []float64, period int) float64 {
	tail := vals[len(vals)-period:]
	mean := sma(vals, period)
	sumSq := 0.0
	for _, v := range tail {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(period-1))
}

// rsi is the standard average-gain/average-loss oscillator scaled to [0,100].
// A window with no losses reads 100, no gains reads 0, and a completely flat
// window reads 50 (no directional evidence either way).
func rsi(closes []float64, period int) float64 {
	tail := closes[len(closes)-period-1:]
	var gain, loss float64
	for i := 1; i < len(tail); i++ {
		delta := tail[i] - tail[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// atr averages the true range of the last period bars.
func atr(bars []Bar, period int) float64 {
	tail := bars[len(bars)-period-1:]
	sum := 0.0
	for i := 1; i < len(tail); i++ {
		tr := tail[i].High - tail[i].Low
		if hc := math.Abs(tail[i].High - tail[i-1].Close); hc > tr {
			tr = hc
		}
		if lc := math.Abs(tail[i].Low - tail[i-1].Close); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

// volRatio relates recent realized volatility to its longer-run average.
// A dead-flat baseline yields 1 rather than a division blowup.
func volRatio(bars []Bar, short, long int) float64 {
	longATR := atr(bars, long)
	if longATR == 0 {
		return 1
	}
	return atr(bars, short) / longATR
}
