package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trend-monitor-go/config"
	"trend-monitor-go/gateway"
	"trend-monitor-go/infrastructure/alert"
	"trend-monitor-go/infrastructure/logger"
	"trend-monitor-go/market"
	"trend-monitor-go/metrics"
	"trend-monitor-go/monitor"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus metrics 监听地址，覆盖配置文件")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	zlog, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Outputs:    loggingOutputs(cfg.Logging),
		OutputFile: cfg.Logging.OutputFile,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	alertMgr, err := buildAlertManager(cfg.Alerts)
	if err != nil {
		log.Fatalf("初始化告警失败: %v", err)
	}

	if cfg.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keys := cfg.SeriesKeys()
	indicators := market.NewIndicators(cfg.Analysis.IndicatorConfig())
	source := buildSource(ctx, cfg, keys)

	sink := monitor.AlertFunc(func(ev monitor.TransitionEvent) {
		if err := alertMgr.SendTransition(ev.Key.Symbol, ev.Key.Timeframe,
			ev.From.String(), ev.To.String(), ev.Snapshot.Close); err != nil {
			zlog.LogError(err, map[string]interface{}{"stage": "alert"})
		}
	})

	mon, err := monitor.New(
		monitor.Config{
			Interval:      time.Duration(cfg.Analysis.IntervalSec) * time.Second,
			FetchLimit:    cfg.Source.FetchLimit,
			Confirmations: cfg.Analysis.Confirmations,
		},
		keys,
		source,
		sink,
		indicators,
		market.NewClassifier(),
		cfg.Analysis.Thresholds(),
		zlog,
	)
	if err != nil {
		log.Fatalf("初始化监测器失败: %v", err)
	}

	// 阈值支持热更新；周期/序列集合保持不可变
	reloader, err := config.NewHotReloader(*cfgPath, 5*time.Second, func(newCfg config.AppConfig) {
		mon.SetThresholds(newCfg.Analysis.Thresholds())
		_ = alertMgr.SendSystem("INFO", "analysis thresholds reloaded")
	})
	if err != nil {
		zlog.LogError(err, map[string]interface{}{"stage": "hot_reload"})
	} else {
		go func() { _ = reloader.Run(ctx) }()
	}

	_ = alertMgr.SendSystem("INFO", "trend monitoring started")
	zlog.Info("monitor starting")

	err = mon.Run(ctx)

	_ = alertMgr.SendSystem("INFO", "trend monitoring stopped")
	if err != nil && err != context.Canceled {
		zlog.LogError(err, map[string]interface{}{"stage": "run"})
		os.Exit(1)
	}
	zlog.Info("monitor stopped")
}

func loggingOutputs(lc config.LoggingConfig) []string {
	outputs := []string{"stdout"}
	if lc.OutputFile != "" {
		outputs = append(outputs, "file")
	}
	return outputs
}

func buildAlertManager(ac config.AlertsConfig) (*alert.Manager, error) {
	channels := make([]alert.Channel, 0, 3)
	if ac.Console {
		channels = append(channels, alert.NewConsoleChannel("console"))
	}
	if ac.LogFile != "" {
		f, err := os.OpenFile(ac.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		channels = append(channels, alert.NewLogChannel("logfile", f))
	}
	if ac.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookChannel("webhook", ac.WebhookURL))
	}
	if len(channels) == 0 {
		channels = append(channels, alert.NewLogChannel("stdout", os.Stdout))
	}
	return alert.NewManager(channels, time.Duration(ac.ThrottleSec)*time.Second), nil
}

// buildSource 根据配置选择 REST 轮询或 WS 流式数据源。
func buildSource(ctx context.Context, cfg config.AppConfig, keys []market.SeriesKey) monitor.BarSource {
	if cfg.Source.Mode == "ws" {
		streamer := gateway.NewKlineStreamer(keys, cfg.Source.FetchLimit)
		if cfg.Source.WSEndpoint != "" {
			streamer.Endpoint = cfg.Source.WSEndpoint
		}
		go func() { _ = streamer.Run(ctx) }()
		return streamer
	}

	primary := &gateway.BinanceRESTClient{
		BaseURL:    cfg.Source.BaseURL,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    gateway.NewTokenBucketLimiter(cfg.Source.RateLimit, cfg.Source.RateBurst),
	}
	if cfg.Source.FallbackURL == "" {
		return primary
	}
	return &gateway.FallbackSource{
		Primary: primary,
		Fallback: &gateway.BinanceRESTClient{
			BaseURL:    cfg.Source.FallbackURL,
			HTTPClient: gateway.NewDefaultHTTPClient(),
			Limiter:    gateway.NewTokenBucketLimiter(cfg.Source.RateLimit, cfg.Source.RateBurst),
		},
	}
}
