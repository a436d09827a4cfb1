// Package metrics exposes Prometheus instrumentation for the request
// workflow. Collectors are registered on a private registry so tests can
// create as many Metrics values as they like without duplicate
// registration panics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsCreated  prometheus.Counter
	Transitions      *prometheus.CounterVec
	TransitionErrors *prometheus.CounterVec
	VersionConflicts prometheus.Counter
	PublishDeferred  prometheus.Counter
	PublishRetries   prometheus.Counter
	ReviewersFound   prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "eventgate",
			Name:      "requests_created_total",
			Help:      "Event requests submitted.",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventgate",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions applied, by action and resulting status.",
		}, []string{"action", "status"}),
		TransitionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventgate",
			Name:      "transition_errors_total",
			Help:      "Rejected transition attempts, by error kind.",
		}, []string{"kind"}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "eventgate",
			Name:      "version_conflicts_total",
			Help:      "Transitions lost to a concurrent writer.",
		}),
		PublishDeferred: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "eventgate",
			Name:      "publish_deferred_total",
			Help:      "Approved requests whose downstream publish failed and was deferred.",
		}),
		PublishRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "eventgate",
			Name:      "publish_retries_total",
			Help:      "Publish retry attempts for deferred requests.",
		}),
		ReviewersFound: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventgate",
			Name:      "reviewers_found",
			Help:      "Number of eligible reviewers discovered per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25},
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
