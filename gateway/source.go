package gateway

import (
	"context"
	"fmt"

	"trend-monitor-go/market"
)

// BarSource supplies a bounded window of bars for one series. Implementations
// must return bars with strictly increasing timestamps and surface gaps as
// fewer bars, never interpolated ones.
type BarSource interface {
	Fetch(ctx context.Context, key market.SeriesKey, limit int) ([]market.Bar, error)
}

// DataSourceError labels a supply failure with the source that produced it,
// so the monitoring loop can log and count it per provider.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

func sourceErr(source string, err error) *DataSourceError {
	return &DataSourceError{Source: source, Err: err}
}
