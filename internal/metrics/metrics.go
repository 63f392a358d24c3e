// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーとワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSymptomReport()
	RecordPredictionQuery(disease string)
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordNewsFetchSuccess()
	RecordNewsFetchFailure()
	RecordNewsItemsUpserted(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
	symptomReports    prometheus.Counter
	predictionQueries *prometheus.CounterVec
	loginSuccess      prometheus.Counter
	loginFail         prometheus.Counter
	newsFetchSuccess  prometheus.Counter
	newsFetchFail     prometheus.Counter
	newsItemsUpserted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epimap_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "epimap_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		symptomReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epimap_symptom_reports_total",
			Help: "受理された症状レポートの合計数",
		}),
		predictionQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epimap_prediction_queries_total",
			Help: "疾病フィルタ別の予測問い合わせ数",
		}, []string{"disease"}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epimap_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epimap_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		newsFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epimap_news_fetch_success_total",
			Help: "ニュースフィード取得成功の合計数",
		}),
		newsFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epimap_news_fetch_fail_total",
			Help: "ニュースフィード取得失敗の合計数",
		}),
		newsItemsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epimap_news_items_upserted_total",
			Help: "アップサートされたニュース記事の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.symptomReports,
		c.predictionQueries,
		c.loginSuccess,
		c.loginFail,
		c.newsFetchSuccess,
		c.newsFetchFail,
		c.newsItemsUpserted,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSymptomReport は症状レポートの受理を記録する。
func (c *Collector) RecordSymptomReport() {
	c.symptomReports.Inc()
}

// RecordPredictionQuery は疾病フィルタ別の予測問い合わせを記録する。
func (c *Collector) RecordPredictionQuery(disease string) {
	c.predictionQueries.WithLabelValues(disease).Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordNewsFetchSuccess はニュースフィード取得成功を記録する。
func (c *Collector) RecordNewsFetchSuccess() {
	c.newsFetchSuccess.Inc()
}

// RecordNewsFetchFailure はニュースフィード取得失敗を記録する。
func (c *Collector) RecordNewsFetchFailure() {
	c.newsFetchFail.Inc()
}

// RecordNewsItemsUpserted はアップサートされたニュース記事数を記録する。
func (c *Collector) RecordNewsItemsUpserted(count int) {
	c.newsItemsUpserted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
