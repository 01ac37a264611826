package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trend-monitor-go/market"
)

// BinanceRESTClient 通过 /api/v3/klines 拉取K线；HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    RateLimiter
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// Fetch 拉取指定 (symbol, timeframe) 最近 limit 根K线。
// 返回的序列保证时间戳严格递增；否则视为数据源错误。
func (c *BinanceRESTClient) Fetch(ctx context.Context, key market.SeriesKey, limit int) ([]market.Bar, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, sourceErr("binance", fmt.Errorf("http client not set"))
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, sourceErr("binance", err)
		}
	}

	q := url.Values{}
	q.Set("symbol", key.Symbol)
	q.Set("interval", key.Timeframe)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.BaseURL + "/api/v3/klines?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, sourceErr("binance", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, sourceErr("binance", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, sourceErr("binance", fmt.Errorf("klines status %d", resp.StatusCode))
	}

	var raw [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, sourceErr("binance", fmt.Errorf("decode klines: %w", err))
	}

	bars, err := parseKlines(raw)
	if err != nil {
		return nil, sourceErr("binance", err)
	}
	return bars, nil
}

// parseKlines 把交易所返回的混合类型数组转成 Bar 序列。
// 布局: [openTime, open, high, low, close, volume, closeTime, ...]
func parseKlines(raw [][]interface{}) ([]market.Bar, error) {
	bars := make([]market.Bar, 0, len(raw))
	for i, k := range raw {
		if len(k) < 6 {
			return nil, fmt.Errorf("kline %d: want >= 6 fields, got %d", i, len(k))
		}
		openMs, err := asFloat(k[0])
		if err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		b := market.Bar{Ts: time.UnixMilli(int64(openMs)).UTC()}
		for j, dst := range []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume} {
			v, err := asFloat(k[j+1])
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			*dst = v
		}
		// 时间戳必须严格递增；重复或乱序说明上游数据损坏
		if n := len(bars); n > 0 && !b.Ts.After(bars[n-1].Ts) {
			return nil, fmt.Errorf("kline %d: non-increasing timestamp %v", i, b.Ts)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// asFloat 兼容数字和字符串两种编码（价格字段是字符串）。
func asFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	case json.Number:
		return x.Float64()
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
