// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 上流API呼び出しの種別
const (
	APIAuthLogin    = "auth_login"
	APIAuthRegister = "auth_register"
	APITrainLookup  = "train_lookup"
)

// Recorder はメトリクス記録のインターフェース。
// セッション、ガード、上流クライアントから利用する。
type Recorder interface {
	RecordUpstreamRequest(api, outcome string, duration time.Duration)
	RecordSessionEvent(event string)
	RecordGuardDecision(decision string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	sessionEvents    *prometheus.CounterVec
	guardDecisions   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainchecker_upstream_requests_total",
			Help: "上流API呼び出しの結果別件数",
		}, []string{"api", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trainchecker_upstream_latency_seconds",
			Help:    "上流API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"api"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainchecker_session_events_total",
			Help: "セッションの状態遷移の件数",
		}, []string{"event"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainchecker_guard_decisions_total",
			Help: "ルートガードの判定結果別件数",
		}, []string{"decision"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.sessionEvents,
		c.guardDecisions,
	)

	return c
}

// RecordUpstreamRequest は上流API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstreamRequest(api, outcome string, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(api, outcome).Inc()
	c.upstreamLatency.WithLabelValues(api).Observe(duration.Seconds())
}

// RecordSessionEvent はセッションイベントを記録する。
func (c *Collector) RecordSessionEvent(event string) {
	c.sessionEvents.WithLabelValues(event).Inc()
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// Nop は何も記録しないRecorder。
type Nop struct{}

func (Nop) RecordUpstreamRequest(string, string, time.Duration) {}
func (Nop) RecordSessionEvent(string)                           {}
func (Nop) RecordGuardDecision(string)                          {}

// NewRegistry はGoランタイムとプロセスのコレクターを登録済みのレジストリを返す。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
