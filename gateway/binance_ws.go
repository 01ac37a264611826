package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trend-monitor-go/market"
)

// BinanceSpotWSEndpoint 现货 combined stream 入口
const BinanceSpotWSEndpoint = "wss://stream.binance.com:9443"

// KlineStreamer 订阅 <symbol>@kline_<timeframe> combined stream，
// 把已闭合的K线推进每个序列的滚动窗口。它同时实现 BarSource：
// Fetch 直接从内存窗口取数，监测循环无需感知推/拉的差别。
type KlineStreamer struct {
	Endpoint string
	Dialer   *websocket.Dialer

	keys       []market.SeriesKey
	windowSize int

	mu      sync.RWMutex
	windows map[market.SeriesKey]*market.Window
}

// NewKlineStreamer 为固定的序列集合创建流式数据源。
// windowSize 应不小于指标引擎所需的最小窗口。
func NewKlineStreamer(keys []market.SeriesKey, windowSize int) *KlineStreamer {
	windows := make(map[market.SeriesKey]*market.Window, len(keys))
	for _, k := range keys {
		windows[k] = market.NewWindow(windowSize)
	}
	return &KlineStreamer{
		Endpoint:   BinanceSpotWSEndpoint,
		Dialer:     websocket.DefaultDialer,
		keys:       keys,
		windowSize: windowSize,
		windows:    windows,
	}
}

// Fetch 返回该序列当前窗口中最近 limit 根已闭合K线。
// 窗口尚空（流刚建立）时返回数据源错误，调用方按跳过周期处理。
func (s *KlineStreamer) Fetch(_ context.Context, key market.SeriesKey, limit int) ([]market.Bar, error) {
	s.mu.RLock()
	w, ok := s.windows[key]
	var bars []market.Bar
	if ok {
		bars = w.Bars()
	}
	s.mu.RUnlock()

	if !ok {
		return nil, sourceErr("binance_ws", fmt.Errorf("series %s not subscribed", key))
	}
	if len(bars) == 0 {
		return nil, sourceErr("binance_ws", fmt.Errorf("no closed klines yet for %s", key))
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// Run 建立 combined stream 连接并持续读取；连接断开后退避重连，
// 直到 ctx 取消。
func (s *KlineStreamer) Run(ctx context.Context) error {
	if len(s.keys) == 0 {
		return fmt.Errorf("no streams subscribed")
	}

	backoff := time.Second
	for {
		err := s.readLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = err // 断线原因已由重连覆盖，周期数据照常从 REST 侧校验

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *KlineStreamer) readLoop(ctx context.Context) error {
	streams := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		streams = append(streams, strings.ToLower(k.Symbol)+"@kline_"+k.Timeframe)
	}
	u := url.URL{
		Scheme: "wss",
		Host:   strings.TrimPrefix(s.Endpoint, "wss://"),
		Path:   "/stream",
	}
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()

	conn, _, err := s.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(message)
	}
}

// combinedKlineMsg combined stream 外层信封
type combinedKlineMsg struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string `json:"e"`
		Kline     struct {
			OpenTime int64  `json:"t"`
			Symbol   string `json:"s"`
			Interval string `json:"i"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Closed   bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// handleMessage 解析一条消息；只有已闭合的K线才进入窗口，
// 进行中的K线会在每次成交时重复推送，不能参与分类。
func (s *KlineStreamer) handleMessage(raw []byte) {
	var msg combinedKlineMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	k := msg.Data.Kline
	if msg.Data.EventType != "kline" || !k.Closed {
		return
	}

	bar := market.Bar{Ts: time.UnixMilli(k.OpenTime).UTC()}
	for _, f := range []struct {
		dst *float64
		src string
	}{
		{&bar.Open, k.Open},
		{&bar.High, k.High},
		{&bar.Low, k.Low},
		{&bar.Close, k.Close},
		{&bar.Volume, k.Volume},
	} {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return
		}
		*f.dst = v
	}

	key := market.SeriesKey{Symbol: k.Symbol, Timeframe: k.Interval}
	s.mu.Lock()
	if w, ok := s.windows[key]; ok {
		// Append 自带乱序/重复时间戳保护
		w.Append(bar)
	}
	s.mu.Unlock()
}
