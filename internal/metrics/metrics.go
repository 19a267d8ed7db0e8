package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan workflow metrics
var (
	// ScansStartedTotal tracks scan sessions entering the scanning phase.
	ScansStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capscan_scans_started_total",
			Help: "Total number of scan sessions started",
		},
	)

	// ScansFinishedTotal tracks finished scans by outcome.
	ScansFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capscan_scans_finished_total",
			Help: "Total number of finished scan sessions by outcome",
		},
		[]string{"outcome"},
	)

	// ScanDuration tracks end-to-end batch run duration.
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capscan_scan_duration_seconds",
			Help:    "Scan batch run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// ScansInProgress tracks currently running batch executors.
	ScansInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capscan_scans_in_progress",
			Help: "Number of scan batch executors currently running",
		},
	)
)

// Per-item metrics
var (
	// ItemsProcessedTotal tracks processed items by result.
	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capscan_items_processed_total",
			Help: "Total number of items processed by result",
		},
		[]string{"result"},
	)

	// ItemDuration tracks per-item inference duration, which is dominated
	// by the classification service round trip.
	ItemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capscan_item_duration_seconds",
			Help:    "Per-item inference duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// IndexWritesTotal tracks semantic index writes by status.
	IndexWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capscan_index_writes_total",
			Help: "Total number of semantic index writes by status",
		},
		[]string{"status"},
	)
)
