// Package metrics holds the Prometheus instruments of the book review service.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bookreview"

// Metrics groups every collector the service records into.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ReviewMutations     *prometheus.CounterVec
	RecomputesTotal     *prometheus.CounterVec
	RecomputeDuration   prometheus.Histogram
}

// New creates the collectors and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ReviewMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "review_mutations_total",
				Help:      "Review create/update/delete attempts by outcome",
			},
			[]string{"operation", "outcome"},
		),
		RecomputesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rating",
				Name:      "recomputes_total",
				Help:      "Rating recomputations by outcome",
			},
			[]string{"outcome"},
		),
		RecomputeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rating",
				Name:      "recompute_duration_seconds",
				Help:      "Time spent rescanning reviews and writing a book's rating",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
	}
}

// ObserveRecompute implements rating.Observer.
func (m *Metrics) ObserveRecompute(outcome string, took time.Duration) {
	m.RecomputesTotal.WithLabelValues(outcome).Inc()
	m.RecomputeDuration.Observe(took.Seconds())
}

// ReviewMutation counts one review lifecycle call.
func (m *Metrics) ReviewMutation(operation, outcome string) {
	m.ReviewMutations.WithLabelValues(operation, outcome).Inc()
}

// StatsFunc reports the current number of books and reviews.
type StatsFunc func(ctx context.Context) (books, reviews int64, err error)

// RegisterCatalogGauges exposes book and review totals, read at scrape time.
func RegisterCatalogGauges(reg prometheus.Registerer, stats StatsFunc) {
	read := func(pick func(books, reviews int64) int64) func() float64 {
		return func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			books, reviews, err := stats(ctx)
			if err != nil {
				return 0
			}
			return float64(pick(books, reviews))
		}
	}

	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "books",
		Help:      "Number of books in the catalog",
	}, read(func(books, _ int64) int64 { return books }))
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reviews",
		Help:      "Number of stored reviews",
	}, read(func(_, reviews int64) int64 { return reviews }))
}
