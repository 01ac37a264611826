package market

import "testing"

func TestRegime_String(t *testing.T) {
	cases := map[Regime]string{
		RegimeUnknown:   "UNKNOWN",
		RegimeRanging:   "RANGING",
		RegimeTrendUp:   "TRENDING_UP",
		RegimeTrendDown: "TRENDING_DOWN",
	}
	for r, want := range cases {
		if r.String() != want {
			t.Errorf("%d.String() = %s, want %s", r, r.String(), want)
		}
	}
}

func TestClassifier_Ranging(t *testing.T) {
	c := NewClassifier()
	snap := Snapshot{
		Close:     100,
		BandUpper: 105,
		BandMid:   100,
		BandLower: 95,
		RSI:       50,
		ShortMA:   100.5,
		LongMA:    100,
	}
	if got := c.Classify(snap, DefaultThresholds()); got != RegimeRanging {
		t.Errorf("expected RANGING, got %v", got)
	}
}

func TestClassifier_TrendUp(t *testing.T) {
	c := NewClassifier()
	snap := Snapshot{
		Close:     110,
		BandUpper: 108,
		BandMid:   100,
		BandLower: 92,
		RSI:       78,
		ShortMA:   106,
		LongMA:    100,
	}
	if got := c.Classify(snap, DefaultThresholds()); got != RegimeTrendUp {
		t.Errorf("expected TRENDING_UP, got %v", got)
	}
}

func TestClassifier_TrendDown(t *testing.T) {
	c := NewClassifier()
	snap := Snapshot{
		Close:     90,
		BandUpper: 108,
		BandMid:   100,
		BandLower: 92,
		RSI:       22,
		ShortMA:   94,
		LongMA:    100,
	}
	if got := c.Classify(snap, DefaultThresholds()); got != RegimeTrendDown {
		t.Errorf("expected TRENDING_DOWN, got %v", got)
	}
}

// Ambiguous snapshots fall through every rule and default to RANGING: price
// sits outside the band but neither trend rule fires because the RSI is
// neutral.
func TestClassifier_AmbiguousDefaultsToRanging(t *testing.T) {
	c := NewClassifier()
	snap := Snapshot{
		Close:     120, // above the band, ranging rule cannot match
		BandUpper: 108,
		BandMid:   100,
		BandLower: 92,
		RSI:       50, // neutral, trend rules cannot match
		ShortMA:   110,
		LongMA:    100,
	}
	if got := c.Classify(snap, DefaultThresholds()); got != RegimeRanging {
		t.Errorf("expected default RANGING, got %v", got)
	}
}

// An RSI sitting exactly on the neutral-zone bound is inclusive: the ranging
// rule wins even though the short MA is above the long MA.
func TestClassifier_NeutralBoundInclusive(t *testing.T) {
	c := NewClassifier()
	th := DefaultThresholds()
	snap := Snapshot{
		Close:     100,
		BandUpper: 105,
		BandMid:   100,
		BandLower: 95,
		RSI:       th.NeutralHigh, // exactly on the bound
		ShortMA:   101.5,          // within 2% convergence tolerance
		LongMA:    100,
	}
	if got := c.Classify(snap, th); got != RegimeRanging {
		t.Errorf("boundary RSI should favor RANGING, got %v", got)
	}
}

// Diverged MAs keep the ranging rule from matching even inside the band.
func TestClassifier_DivergedMAsNotRanging(t *testing.T) {
	c := NewClassifier()
	snap := Snapshot{
		Close:     100,
		BandUpper: 115,
		BandMid:   100,
		BandLower: 85,
		RSI:       72,
		ShortMA:   108, // 8% apart, well outside tolerance
		LongMA:    100,
	}
	if got := c.Classify(snap, DefaultThresholds()); got != RegimeTrendUp {
		t.Errorf("expected TRENDING_UP, got %v", got)
	}
}

func TestClassifier_Pure(t *testing.T) {
	c := NewClassifier()
	th := DefaultThresholds()
	snaps := []Snapshot{
		{Close: 100, BandUpper: 105, BandLower: 95, RSI: 50, ShortMA: 100, LongMA: 100},
		{Close: 110, BandUpper: 108, BandLower: 92, RSI: 78, ShortMA: 106, LongMA: 100},
		{Close: 90, BandUpper: 108, BandLower: 92, RSI: 22, ShortMA: 94, LongMA: 100},
	}

	want := make([]Regime, len(snaps))
	for i, s := range snaps {
		want[i] = c.Classify(s, th)
	}
	// Same inputs, any call order, same labels.
	for round := 0; round < 5; round++ {
		for i := len(snaps) - 1; i >= 0; i-- {
			if got := c.Classify(snaps[i], th); got != want[i] {
				t.Fatalf("snapshot %d: label changed from %v to %v", i, want[i], got)
			}
		}
	}
}
