package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
	OutcomeRetried = "retried"
)

// Metrics reúne os coletores Prometheus da sincronização
type Metrics struct {
	// Chamadas às plataformas
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	RateLimitHits    *prometheus.CounterVec
	SessionRefreshes *prometheus.CounterVec

	// Execuções
	Units        *prometheus.CounterVec
	RowsUpserted *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	RunsActive   *prometheus.GaugeVec
}

// NewMetrics cria e registra os coletores no registerer informado
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total de chamadas às plataformas de anúncios",
			},
			[]string{"platform", "endpoint", "outcome"},
		),
		UpstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Latência das chamadas às plataformas de anúncios",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"platform", "endpoint"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Respostas de limite de requisições recebidas",
			},
			[]string{"platform"},
		),
		SessionRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_refreshes_total",
				Help:      "Trocas de token de sessão realizadas",
			},
			[]string{"platform", "reason"},
		),
		Units: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_units_total",
				Help:      "Unidades de sincronização por resultado",
			},
			[]string{"run", "platform", "outcome"},
		),
		RowsUpserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "daily_stats_upserted_total",
				Help:      "Linhas diárias gravadas",
			},
			[]string{"run", "platform"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duração das execuções de sincronização",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"run"},
		),
		RunsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runs_in_progress",
				Help:      "Execuções em andamento",
			},
			[]string{"run"},
		),
	}
}

// NewNop cria coletores em um registro descartável
func NewNop() *Metrics {
	return NewMetrics("nop", prometheus.NewRegistry())
}

// Handler expõe o registro padrão
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordUpstream(platform, endpoint string, started time.Time, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	m.UpstreamRequests.WithLabelValues(platform, endpoint, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(platform, endpoint).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordRateLimit(platform string) {
	m.RateLimitHits.WithLabelValues(platform).Inc()
}

func (m *Metrics) RecordSessionRefresh(platform, reason string) {
	m.SessionRefreshes.WithLabelValues(platform, reason).Inc()
}

func (m *Metrics) RecordUnit(run, platform, outcome string) {
	m.Units.WithLabelValues(run, platform, outcome).Inc()
}

func (m *Metrics) RecordUpsert(run, platform string) {
	m.RowsUpserted.WithLabelValues(run, platform).Inc()
}

// TrackRun marca a execução como ativa e devolve a função que a encerra
func (m *Metrics) TrackRun(run string) func() {
	started := time.Now()
	m.RunsActive.WithLabelValues(run).Inc()

	return func() {
		m.RunsActive.WithLabelValues(run).Dec()
		m.RunDuration.WithLabelValues(run).Observe(time.Since(started).Seconds())
	}
}
