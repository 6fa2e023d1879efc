// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dc_classifications_total",
			Help: "Classification requests by outcome",
		},
		[]string{"outcome"}, // discriminatory, clean, error
	)

	Sentences = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dc_sentences_total",
			Help: "Classified sentences by binary label",
		},
		[]string{"label"},
	)

	ClassificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dc_classification_duration_seconds",
			Help:    "Time spent classifying one submission",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dc_cache_lookups_total",
			Help: "Result cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dc_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
