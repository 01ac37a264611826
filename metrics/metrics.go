// Package metrics provides Prometheus metrics for the trend monitor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal 分类周期计数（按结果区分：ok / skipped / fetch_error）
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tm",
		Name:      "cycles_total",
		Help:      "Classification cycles per series and outcome",
	}, []string{"symbol", "timeframe", "result"})

	// TransitionsTotal 确认的走势转换计数
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tm",
		Name:      "transitions_total",
		Help:      "Confirmed regime transitions per series",
	}, []string{"symbol", "timeframe", "to"})

	// RegimeState 当前确认的走势（0=unknown 1=ranging 2=up 3=down）
	RegimeState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tm",
		Name:      "regime_state",
		Help:      "Currently confirmed regime per series (0=unknown 1=ranging 2=trend_up 3=trend_down)",
	}, []string{"symbol", "timeframe"})

	// FetchErrorsTotal 数据源拉取失败计数
	FetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tm",
		Name:      "fetch_errors_total",
		Help:      "Bar supply failures per series",
	}, []string{"symbol", "timeframe"})
)

// RecordCycle 记录一次周期结果
func RecordCycle(symbol, timeframe, result string) {
	CyclesTotal.WithLabelValues(symbol, timeframe, result).Inc()
}

// RecordTransition 记录一次确认的转换并更新当前状态
func RecordTransition(symbol, timeframe, to string, state int) {
	TransitionsTotal.WithLabelValues(symbol, timeframe, to).Inc()
	RegimeState.WithLabelValues(symbol, timeframe).Set(float64(state))
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
