package gateway

import (
	"context"
	"fmt"

	"trend-monitor-go/market"
)

// FallbackSource tries the primary source first and falls back on failure.
// The monitoring loop never sees which provider answered: it gets one
// successful window or a typed failure covering both.
type FallbackSource struct {
	Primary  BarSource
	Fallback BarSource
}

// Fetch returns the primary result when available. A cancelled context is
// returned as-is: switching providers cannot help a caller that is gone.
func (s *FallbackSource) Fetch(ctx context.Context, key market.SeriesKey, limit int) ([]market.Bar, error) {
	bars, primaryErr := s.Primary.Fetch(ctx, key, limit)
	if primaryErr == nil {
		return bars, nil
	}
	if ctx.Err() != nil {
		return nil, primaryErr
	}
	if s.Fallback == nil {
		return nil, primaryErr
	}

	bars, fallbackErr := s.Fallback.Fetch(ctx, key, limit)
	if fallbackErr != nil {
		return nil, sourceErr("fallback", fmt.Errorf("primary: %v; fallback: %w", primaryErr, fallbackErr))
	}
	return bars, nil
}
