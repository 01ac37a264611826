package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"trend-monitor-go/config"
	"trend-monitor-go/gateway"
	"trend-monitor-go/market"
)

// 一次性分析工具：拉取最近K线，计算指标并输出当前走势判定。
func main() {
	symbol := flag.String("symbol", "BTCUSDT", "交易对")
	timeframe := flag.String("timeframe", "1h", "K线周期")
	cfgPath := flag.String("config", "", "可选配置文件，覆盖默认指标参数")
	baseURL := flag.String("baseURL", "https://api.binance.com", "行情 REST 地址")
	flag.Parse()

	indCfg := market.DefaultIndicatorConfig()
	thresholds := market.DefaultThresholds()
	limit := 100
	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}
		indCfg = cfg.Analysis.IndicatorConfig()
		thresholds = cfg.Analysis.Thresholds()
		limit = cfg.Source.FetchLimit
		if cfg.Source.BaseURL != "" {
			*baseURL = cfg.Source.BaseURL
		}
	}

	client := &gateway.BinanceRESTClient{
		BaseURL:    *baseURL,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    gateway.NewTokenBucketLimiter(5, 10),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := market.SeriesKey{Symbol: *symbol, Timeframe: *timeframe}
	bars, err := client.Fetch(ctx, key, limit)
	if err != nil {
		log.Fatalf("拉取K线失败: %v", err)
	}

	indicators := market.NewIndicators(indCfg)
	snap, err := indicators.Compute(bars)
	if err != nil {
		log.Fatalf("指标计算失败 (%d bars): %v", len(bars), err)
	}

	regime := market.NewClassifier().Classify(snap, thresholds)

	fmt.Printf("series:     %s\n", key)
	fmt.Printf("bars:       %d (latest %s)\n", len(bars),
		bars[len(bars)-1].Ts.UTC().Format(time.RFC3339))
	fmt.Printf("close:      %.4f\n", snap.Close)
	fmt.Printf("bollinger:  upper=%.4f mid=%.4f lower=%.4f\n",
		snap.BandUpper, snap.BandMid, snap.BandLower)
	fmt.Printf("rsi:        %.2f\n", snap.RSI)
	fmt.Printf("ma:         short=%.4f long=%.4f\n", snap.ShortMA, snap.LongMA)
	fmt.Printf("vol ratio:  %.4f\n", snap.VolRatio)
	fmt.Printf("regime:     %s\n", regime)
}
