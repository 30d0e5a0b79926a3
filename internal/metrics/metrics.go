// Package metrics provides Prometheus metrics for trashbin.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trashbin"

// Rollover results.
const (
	RolloverArchived     = "archived"
	RolloverFresh        = "fresh"
	RolloverRaceLost     = "race_lost"
	RolloverInconsistent = "inconsistent"
	RolloverError        = "error"
)

var (
	// IngestedTotal counts detection events accepted by the ingest worker.
	IngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_events_total",
			Help:      "Total number of detection events stored",
		},
		[]string{"category"},
	)

	// BatchDuration measures how long the worker takes to store a batch.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of ingest batch processing in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// AggregationsTotal counts served aggregations by granularity and status.
	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Total number of aggregation requests",
		},
		[]string{"granularity", "status"},
	)

	// FetchDuration measures event store queries.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of event store queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	// ExportsTotal counts CSV exports by granularity and status.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total number of CSV export requests",
		},
		[]string{"granularity", "status"},
	)

	// RolloverTotal counts rollover attempts by outcome.
	RolloverTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollover_total",
			Help:      "Total number of live counter rollover attempts",
		},
		[]string{"category", "result"},
	)

	// LiveCount exposes the last observed live counter value.
	LiveCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_count",
			Help:      "Current day running total per category",
		},
		[]string{"category"},
	)
)
