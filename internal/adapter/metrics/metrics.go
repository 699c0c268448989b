// Package metrics contains the default [domain.Metrics] implementation,
// backed by Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "gedbq"

// Metrics implements domain.Metrics.
type Metrics struct {
	scanned  *prometheus.CounterVec
	queries  *prometheus.CounterVec
	affected *prometheus.CounterVec
}

// NewMetrics returns a new implementation of domain.Metrics. Collectors are
// only registered when a registerer is given.
func NewMetrics(opts ...domain.MetricsOption) (domain.Metrics, error) {
	options := domain.MetricsOptions{
		Namespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(&options)
	}

	m := &Metrics{
		scanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: options.Namespace,
				Name:      "documents_scanned_total",
				Help:      "Total number of documents read by collection scans",
			},
			[]string{"collection"},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: options.Namespace,
				Name:      "queries_total",
				Help:      "Total number of executed queries",
			},
			[]string{"outcome"},
		),
		affected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: options.Namespace,
				Name:      "rows_affected_total",
				Help:      "Total number of documents written by saves",
			},
			[]string{"kind"},
		),
	}

	if options.Registerer != nil {
		for _, c := range []prometheus.Collector{m.scanned, m.queries, m.affected} {
			if err := options.Registerer.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// DocumentsScanned implements domain.Metrics.
func (m *Metrics) DocumentsScanned(collection string, n int) {
	m.scanned.WithLabelValues(collection).Add(float64(n))
}

// QueryExecuted implements domain.Metrics.
func (m *Metrics) QueryExecuted(outcome string) {
	m.queries.WithLabelValues(outcome).Inc()
}

// RowsAffected implements domain.Metrics.
func (m *Metrics) RowsAffected(kind domain.ChangeKind, n int) {
	m.affected.WithLabelValues(kind.String()).Add(float64(n))
}

// Nop implements domain.Metrics discarding every count.
type Nop struct{}

// DocumentsScanned implements domain.Metrics.
func (Nop) DocumentsScanned(string, int) {}

// QueryExecuted implements domain.Metrics.
func (Nop) QueryExecuted(string) {}

// RowsAffected implements domain.Metrics.
func (Nop) RowsAffected(domain.ChangeKind, int) {}
