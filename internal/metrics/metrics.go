// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハブやサービス層から利用する。
type MetricsCollector interface {
	RecordMessagePosted()
	RecordSnapshotBroadcast(clientCount int)
	RecordWSConnect()
	RecordWSDisconnect()
	RecordAuthFailure(reason string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	messagesPosted     prometheus.Counter
	snapshotBroadcasts prometheus.Counter
	snapshotReceivers  prometheus.Counter
	wsConnections      prometheus.Gauge
	authFailures       *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messagesPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_messages_posted_total",
			Help: "投稿されたメッセージの合計数",
		}),
		snapshotBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_snapshot_broadcasts_total",
			Help: "スナップショット配信の合計数",
		}),
		snapshotReceivers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_snapshot_receivers_total",
			Help: "スナップショットを受信したクライアントの延べ数",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatman_ws_connections",
			Help: "現在のWebSocket接続数",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatman_auth_failures_total",
			Help: "認証失敗の合計数（理由別）",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.messagesPosted,
		c.snapshotBroadcasts,
		c.snapshotReceivers,
		c.wsConnections,
		c.authFailures,
		c.httpStatus,
	)

	return c
}

// RecordMessagePosted はメッセージ投稿を記録する。
func (c *Collector) RecordMessagePosted() {
	c.messagesPosted.Inc()
}

// RecordSnapshotBroadcast はスナップショット配信と受信クライアント数を記録する。
func (c *Collector) RecordSnapshotBroadcast(clientCount int) {
	c.snapshotBroadcasts.Inc()
	c.snapshotReceivers.Add(float64(clientCount))
}

// RecordWSConnect はWebSocket接続の確立を記録する。
func (c *Collector) RecordWSConnect() {
	c.wsConnections.Inc()
}

// RecordWSDisconnect はWebSocket接続の切断を記録する。
func (c *Collector) RecordWSDisconnect() {
	c.wsConnections.Dec()
}

// RecordAuthFailure は認証失敗を理由付きで記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Noop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Noop struct{}

func (Noop) RecordMessagePosted()                    {}
func (Noop) RecordSnapshotBroadcast(clientCount int) {}
func (Noop) RecordWSConnect()                        {}
func (Noop) RecordWSDisconnect()                     {}
func (Noop) RecordAuthFailure(reason string)         {}
func (Noop) RecordHTTPStatus(statusCode int)         {}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = Noop{}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
