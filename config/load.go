package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trend-monitor-go/market"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string         `yaml:"env"`
	Symbols     []string       `yaml:"symbols"`
	Timeframes  []string       `yaml:"timeframes"`
	Source      SourceConfig   `yaml:"source"`
	Analysis    AnalysisConfig `yaml:"analysis"`
	Alerts      AlertsConfig   `yaml:"alerts"`
	Logging     LoggingConfig  `yaml:"logging"`
	MetricsAddr string         `yaml:"metricsAddr"`
}

// SourceConfig 数据源配置
type SourceConfig struct {
	Mode        string  `yaml:"mode"`        // rest 或 ws
	BaseURL     string  `yaml:"baseURL"`     // 主数据源
	FallbackURL string  `yaml:"fallbackURL"` // 备用数据源，留空则不启用
	WSEndpoint  string  `yaml:"wsEndpoint"`  // ws 模式入口
	FetchLimit  int     `yaml:"fetchLimit"`  // 每周期拉取的K线数量
	RateLimit   float64 `yaml:"rateLimit"`   // REST 限流：每秒令牌数
	RateBurst   int     `yaml:"rateBurst"`   // REST 限流：最大突发令牌数
}

// AnalysisConfig 指标周期与分类阈值
type AnalysisConfig struct {
	BandPeriod     int     `yaml:"bandPeriod"`
	BandStdDev     float64 `yaml:"bandStdDev"`
	RSIPeriod      int     `yaml:"rsiPeriod"`
	RSINeutralLow  float64 `yaml:"rsiNeutralLow"`
	RSINeutralHigh float64 `yaml:"rsiNeutralHigh"`
	ShortMAPeriod  int     `yaml:"shortMAPeriod"`
	LongMAPeriod   int     `yaml:"longMAPeriod"`
	ATRShortPeriod int     `yaml:"atrShortPeriod"`
	ATRLongPeriod  int     `yaml:"atrLongPeriod"`
	ConvergenceTol float64 `yaml:"convergenceTol"`
	Confirmations  int     `yaml:"confirmations"` // 确认转换所需的连续周期数
	IntervalSec    int     `yaml:"intervalSec"`   // 监测周期（秒）
}

// AlertsConfig 告警配置
type AlertsConfig struct {
	Console     bool   `yaml:"console"`
	LogFile     string `yaml:"logFile"`
	WebhookURL  string `yaml:"webhookURL"`
	ThrottleSec int    `yaml:"throttleSec"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputFile string `yaml:"outputFile"`
}

// Load reads YAML config from path, fills defaults and validates.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env
// vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("TM_ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alerts.WebhookURL = v
	}
	return cfg, Validate(cfg)
}

// applyDefaults fills zero values with the stock parameters so a minimal
// config (just symbols and timeframes) runs out of the box.
func applyDefaults(cfg *AppConfig) {
	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Source.Mode == "" {
		cfg.Source.Mode = "rest"
	}
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = "https://api.binance.com"
	}
	if cfg.Source.FetchLimit == 0 {
		cfg.Source.FetchLimit = 100
	}
	if cfg.Source.RateLimit == 0 {
		cfg.Source.RateLimit = 5
	}
	if cfg.Source.RateBurst == 0 {
		cfg.Source.RateBurst = 10
	}

	a := &cfg.Analysis
	def := market.DefaultIndicatorConfig()
	if a.BandPeriod == 0 {
		a.BandPeriod = def.BandPeriod
	}
	if a.BandStdDev == 0 {
		a.BandStdDev = def.BandStdDev
	}
	if a.RSIPeriod == 0 {
		a.RSIPeriod = def.RSIPeriod
	}
	if a.RSINeutralLow == 0 {
		a.RSINeutralLow = 30
	}
	if a.RSINeutralHigh == 0 {
		a.RSINeutralHigh = 70
	}
	if a.ShortMAPeriod == 0 {
		a.ShortMAPeriod = def.ShortMAPeriod
	}
	if a.LongMAPeriod == 0 {
		a.LongMAPeriod = def.LongMAPeriod
	}
	if a.ATRShortPeriod == 0 {
		a.ATRShortPeriod = def.ATRShortPeriod
	}
	if a.ATRLongPeriod == 0 {
		a.ATRLongPeriod = def.ATRLongPeriod
	}
	if a.ConvergenceTol == 0 {
		a.ConvergenceTol = 0.02
	}
	if a.Confirmations == 0 {
		a.Confirmations = 3
	}
	if a.IntervalSec == 0 {
		a.IntervalSec = 60
	}

	if cfg.Alerts.ThrottleSec == 0 {
		cfg.Alerts.ThrottleSec = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate ensures required fields are present and the analysis parameters
// are computable. Any error here is fatal at startup: the configuration is
// immutable once the monitoring loop starts.
func Validate(cfg AppConfig) error {
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols list is required")
	}
	if len(cfg.Timeframes) == 0 {
		return errors.New("timeframes list is required")
	}
	if cfg.Source.Mode != "rest" && cfg.Source.Mode != "ws" {
		return fmt.Errorf("source.mode must be rest or ws, got %q", cfg.Source.Mode)
	}
	if cfg.Source.FetchLimit < 1 {
		return fmt.Errorf("source.fetchLimit must be >= 1, got %d", cfg.Source.FetchLimit)
	}

	if err := cfg.Analysis.IndicatorConfig().Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	a := cfg.Analysis
	if a.RSINeutralLow < 0 || a.RSINeutralHigh > 100 || a.RSINeutralLow >= a.RSINeutralHigh {
		return fmt.Errorf("analysis: rsi neutral zone [%f, %f] is invalid", a.RSINeutralLow, a.RSINeutralHigh)
	}
	if a.ConvergenceTol < 0 {
		return fmt.Errorf("analysis: convergenceTol must be >= 0, got %f", a.ConvergenceTol)
	}
	if a.Confirmations < 1 {
		return fmt.Errorf("analysis: confirmations must be >= 1, got %d", a.Confirmations)
	}
	if a.IntervalSec < 1 {
		return fmt.Errorf("analysis: intervalSec must be >= 1, got %d", a.IntervalSec)
	}

	// The fetch window must cover the slowest indicator or every cycle
	// would be skipped as insufficient.
	minBars := market.NewIndicators(cfg.Analysis.IndicatorConfig()).MinBars()
	if cfg.Source.FetchLimit < minBars {
		return fmt.Errorf("source.fetchLimit %d is below the minimum indicator window %d", cfg.Source.FetchLimit, minBars)
	}
	return nil
}

// SeriesKeys expands the symbols × timeframes matrix into the monitoring
// domain.
func (c AppConfig) SeriesKeys() []market.SeriesKey {
	keys := make([]market.SeriesKey, 0, len(c.Symbols)*len(c.Timeframes))
	for _, s := range c.Symbols {
		for _, tf := range c.Timeframes {
			keys = append(keys, market.SeriesKey{Symbol: s, Timeframe: tf})
		}
	}
	return keys
}

// IndicatorConfig maps the analysis section onto the indicator engine config.
func (a AnalysisConfig) IndicatorConfig() market.IndicatorConfig {
	return market.IndicatorConfig{
		BandPeriod:     a.BandPeriod,
		BandStdDev:     a.BandStdDev,
		RSIPeriod:      a.RSIPeriod,
		ShortMAPeriod:  a.ShortMAPeriod,
		LongMAPeriod:   a.LongMAPeriod,
		ATRShortPeriod: a.ATRShortPeriod,
		ATRLongPeriod:  a.ATRLongPeriod,
	}
}

// Thresholds maps the analysis section onto the classifier thresholds.
func (a AnalysisConfig) Thresholds() market.Thresholds {
	return market.Thresholds{
		NeutralLow:     a.RSINeutralLow,
		NeutralHigh:    a.RSINeutralHigh,
		ConvergenceTol: a.ConvergenceTol,
	}
}
