package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trend-monitor-go/market"
)

var testKey = market.SeriesKey{Symbol: "BTCUSDT", Timeframe: "1h"}

const klinesBody = `[
  [1700000000000, "100.0", "105.0", "99.0", "104.0", "1200.5", 1700003599999],
  [1700003600000, "104.0", "106.0", "103.0", "105.5", "900.1", 1700007199999]
]`

func TestBinanceRESTClient_Fetch(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(klinesBody))
	}))
	defer srv.Close()

	c := &BinanceRESTClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	bars, err := c.Fetch(context.Background(), testKey, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/api/v3/klines" {
		t.Errorf("path = %s, want /api/v3/klines", gotPath)
	}
	if gotQuery != "interval=1h&limit=100&symbol=BTCUSDT" {
		t.Errorf("unexpected query: %s", gotQuery)
	}

	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	first := bars[0]
	if !first.Ts.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Errorf("first bar ts = %v", first.Ts)
	}
	if first.Open != 100 || first.High != 105 || first.Low != 99 || first.Close != 104 || first.Volume != 1200.5 {
		t.Errorf("first bar parsed wrong: %+v", first)
	}
	if !bars[1].Ts.After(bars[0].Ts) {
		t.Error("bars must be ordered by timestamp")
	}
}

func TestBinanceRESTClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &BinanceRESTClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := c.Fetch(context.Background(), testKey, 100)
	if err == nil {
		t.Fatal("expected error on 429")
	}

	var dsErr *DataSourceError
	if !errors.As(err, &dsErr) {
		t.Fatalf("expected DataSourceError, got %T", err)
	}
	if dsErr.Source != "binance" {
		t.Errorf("source = %s, want binance", dsErr.Source)
	}
}

func TestBinanceRESTClient_RejectsNonMonotonic(t *testing.T) {
	// Duplicate open time in the batch.
	body := `[
	  [1700000000000, "100", "101", "99", "100", "1", 0],
	  [1700000000000, "100", "101", "99", "100", "1", 0]
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := &BinanceRESTClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := c.Fetch(context.Background(), testKey, 100); err == nil {
		t.Fatal("duplicate timestamps must be rejected")
	}
}

func TestBinanceRESTClient_NoHTTPClient(t *testing.T) {
	c := &BinanceRESTClient{BaseURL: "http://example.invalid"}
	if _, err := c.Fetch(context.Background(), testKey, 10); err == nil {
		t.Fatal("expected error without http client")
	}
}

func TestTokenBucketLimiter_CancelledContext(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1)
	// Drain the single burst token.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first wait should pass: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
