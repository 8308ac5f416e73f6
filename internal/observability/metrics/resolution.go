package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

const namespace = "catalog"

// ResolutionMetrics records resolver outcomes per tier.
type ResolutionMetrics struct {
	service string

	resolutions  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	ragPaths     *prometheus.CounterVec
	strategies   *prometheus.CounterVec
	documents    *prometheus.HistogramVec
	tierFailures *prometheus.CounterVec
}

func NewResolutionMetrics(service string, registerer prometheus.Registerer) *ResolutionMetrics {
	m := &ResolutionMetrics{
		service: service,
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "resolutions_total",
				Help:      "Resolved queries by answering tier.",
			},
			[]string{"service", "source"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "resolution_duration_seconds",
				Help:      "End-to-end resolution duration by answering tier.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"service", "source"},
		),
		ragPaths: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rag",
				Name:      "path_total",
				Help:      "RAG answers by generation path.",
			},
			[]string{"service", "path"},
		),
		strategies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rag",
				Name:      "optimization_strategy_total",
				Help:      "Query optimization strategies chosen on the professional path.",
			},
			[]string{"service", "strategy"},
		),
		documents: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rag",
				Name:      "retrieved_documents",
				Help:      "Fused documents handed to generation.",
				Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
			},
			[]string{"service"},
		),
		tierFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "tier_failures_total",
				Help:      "Degraded tier lookups and side effects.",
			},
			[]string{"service", "tier"},
		),
	}
	registerer.MustRegister(m.resolutions, m.duration, m.ragPaths, m.strategies, m.documents, m.tierFailures)
	return m
}

func (m *ResolutionMetrics) ObserveResolution(source domain.Source, path domain.RAGPath, strategy domain.Strategy, documents int, duration time.Duration) {
	m.resolutions.WithLabelValues(m.service, string(source)).Inc()
	m.duration.WithLabelValues(m.service, string(source)).Observe(duration.Seconds())
	if source != domain.SourceRAG {
		return
	}
	if path != "" {
		m.ragPaths.WithLabelValues(m.service, string(path)).Inc()
	}
	if strategy != "" {
		m.strategies.WithLabelValues(m.service, string(strategy)).Inc()
	}
	m.documents.WithLabelValues(m.service).Observe(float64(documents))
}

func (m *ResolutionMetrics) ObserveTierFailure(tier string) {
	m.tierFailures.WithLabelValues(m.service, tier).Inc()
}
