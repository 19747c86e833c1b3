// Package metrics 提供 Prometheus helper，包含 HTTP 模板指标与业务指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 准入结果计数（approved/pending/rejected/blocked）
	AdmissionsTotal *prometheus.CounterVec
	// 风控拦截计数
	SecurityBlocksTotal prometheus.Counter
	// 评分引擎耗时
	ScoringDuration *prometheus.HistogramVec
	// 信号降级计数
	SignalDegradedTotal *prometheus.CounterVec
	// 当前待审队列深度
	QueueDepth prometheus.Gauge
	// 社区举报计数
	ReportsTotal prometheus.Counter
	// 举报升级计数
	EscalationsTotal prometheus.Counter
	// 奖励发放计数
	RewardsGrantedTotal prometheus.Counter
}

// New 创建指标实例并注册到默认 registry
func New(serviceName string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		AdmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "admissions_total",
			Help:      "Admission decisions by outcome",
		}, []string{"status"}),
		SecurityBlocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "security_blocks_total",
			Help:      "Submissions blocked by the risk engine",
		}),
		ScoringDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "scoring_duration_seconds",
			Help:      "Scoring engine call duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
		SignalDegradedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "signal_degraded_total",
			Help:      "Sub-signal lookups degraded to neutral contribution",
		}, []string{"signal"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "review_queue_depth",
			Help:      "Open review queue entries",
		}),
		ReportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "community_reports_total",
			Help:      "Community reports submitted",
		}),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "report_escalations_total",
			Help:      "Queue entries force-escalated by report volume",
		}),
		RewardsGrantedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: serviceName,
			Name:      "rewards_granted_total",
			Help:      "Reporter rewards granted",
		}),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AdmissionsTotal,
		m.SecurityBlocksTotal,
		m.ScoringDuration,
		m.SignalDegradedTotal,
		m.QueueDepth,
		m.ReportsTotal,
		m.EscalationsTotal,
		m.RewardsGrantedTotal,
	)
	return m
}

// Handler 返回 /metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
