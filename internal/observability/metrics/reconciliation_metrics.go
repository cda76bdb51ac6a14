package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics tracks provider report processing.
type ReconciliationMetrics struct {
	reportsProcessed     *prometheus.CounterVec
	transactionsResolved *prometheus.CounterVec
	reportDuration       *prometheus.HistogramVec
}

var (
	reconciliationMetricsOnce sync.Once
	reconciliationMetrics     *ReconciliationMetrics
)

func Reconciliation() *ReconciliationMetrics {
	return ReconciliationWithConfig(Config{})
}

func ReconciliationWithConfig(cfg Config) *ReconciliationMetrics {
	reconciliationMetricsOnce.Do(func() {
		reconciliationMetrics = newReconciliationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconciliationMetrics
}

func ResetReconciliationMetricsForTest() {
	reconciliationMetricsOnce = sync.Once{}
	reconciliationMetrics = nil
}

func newReconciliationMetrics(registerer prometheus.Registerer, cfg Config) *ReconciliationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "effekt"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	reportsProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "effekt_reconciliation_reports_total",
			Help:        "Total provider reports reconciled.",
			ConstLabels: constLabels,
		},
		[]string{"provider"},
	)

	transactionsResolved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "effekt_reconciliation_transactions_total",
			Help:        "Total report transactions by resolution outcome.",
			ConstLabels: constLabels,
		},
		[]string{"provider", "result"}, // valid | invalid
	)

	reportDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "effekt_reconciliation_report_duration_seconds",
			Help: "Wall time spent reconciling one report.",
			Buckets: []float64{
				0.1,
				0.5,
				1,
				5,
				15,
				60,
				300,
			},
			ConstLabels: constLabels,
		},
		[]string{"provider"},
	)

	registerer.MustRegister(
		reportsProcessed,
		transactionsResolved,
		reportDuration,
	)

	return &ReconciliationMetrics{
		reportsProcessed:     reportsProcessed,
		transactionsResolved: transactionsResolved,
		reportDuration:       reportDuration,
	}
}

func (m *ReconciliationMetrics) IncReportProcessed(provider string) {
	if m == nil {
		return
	}
	m.reportsProcessed.WithLabelValues(provider).Inc()
}

func (m *ReconciliationMetrics) IncTransactionResolved(provider, result string) {
	if m == nil {
		return
	}
	m.transactionsResolved.WithLabelValues(provider, result).Inc()
}

func (m *ReconciliationMetrics) ObserveReportDuration(provider string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}
