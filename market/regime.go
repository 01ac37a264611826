package market

import "math"

// Regime classifies the prevailing market condition for one series.
type Regime int

const (
	// RegimeUnknown is the pre-initialization pseudo-state; the classifier
	// never produces it, only a tracker that has not seen a snapshot yet.
	RegimeUnknown Regime = iota
	RegimeRanging
	RegimeTrendUp
	RegimeTrendDown
)

// String returns the regime name.
func (r Regime) String() string {
	switch r {
	case RegimeRanging:
		return "RANGING"
	case RegimeTrendUp:
		return "TRENDING_UP"
	case RegimeTrendDown:
		return "TRENDING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// Thresholds drives the classifier rules. All values come from configuration;
// the classifier itself is a pure function of (snapshot, thresholds).
type Thresholds struct {
	NeutralLow     float64 // RSI neutral zone lower bound
	NeutralHigh    float64 // RSI neutral zone upper bound
	ConvergenceTol float64 // max |shortMA-longMA|/longMA still considered converged
}

// DefaultThresholds returns the stock rule thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NeutralLow:     30,
		NeutralHigh:    70,
		ConvergenceTol: 0.02,
	}
}

// rule is one named predicate in the classifier's precedence list.
type rule struct {
	name  string
	match func(Snapshot, Thresholds) bool
	label Regime
}

// Classifier maps feature snapshots onto regimes via an ordered rule list.
// The first matching rule wins; order matters because the labels are not
// mutually exclusive on raw indicator values. Neutral-zone bounds are
// inclusive, so an RSI sitting exactly on a bound still counts as neutral
// and the series leans RANGING, the least committal label.
type Classifier struct {
	rules []rule
}

// NewClassifier builds the fixed rule list:
//  1. price inside the band, RSI neutral, MAs converged -> RANGING
//  2. short MA above long MA and RSI above the neutral zone -> TRENDING_UP
//  3. short MA below long MA and RSI below the neutral zone -> TRENDING_DOWN
//  4. anything ambiguous -> RANGING
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []rule{
			{
				name: "ranging",
				match: func(s Snapshot, th Thresholds) bool {
					return s.Close >= s.BandLower && s.Close <= s.BandUpper &&
						s.RSI >= th.NeutralLow && s.RSI <= th.NeutralHigh &&
						masConverged(s, th)
				},
				label: RegimeRanging,
			},
			{
				name: "trend_up",
				match: func(s Snapshot, th Thresholds) bool {
					return s.ShortMA > s.LongMA && s.RSI > th.NeutralHigh
				},
				label: RegimeTrendUp,
			},
			{
				name: "trend_down",
				match: func(s Snapshot, th Thresholds) bool {
					return s.ShortMA < s.LongMA && s.RSI < th.NeutralLow
				},
				label: RegimeTrendDown,
			},
		},
	}
}

// Classify evaluates the rules in order and returns the first match, or
// RANGING when no rule fires.
func (c *Classifier) Classify(snap Snapshot, th Thresholds) Regime {
	for _, r := range c.rules {
		if r.match(snap, th) {
			return r.label
		}
	}
	return RegimeRanging
}

func masConverged(s Snapshot, th Thresholds) bool {
	if s.LongMA == 0 {
		return false
	}
	return math.Abs(s.ShortMA-s.LongMA)/math.Abs(s.LongMA) <= th.ConvergenceTol
}
