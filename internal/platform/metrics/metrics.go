package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	FullScans        prometheus.Counter
	FullScanFailures prometheus.Counter
	TargetedRefresh  prometheus.Counter
	MetadataBatches  prometheus.Counter
	ScanDuration     prometheus.Histogram

	TxSubmitted prometheus.Counter
	TxConfirmed prometheus.Counter
	TxFailed    prometheus.Counter
	ConfirmMs   prometheus.Histogram

	EventsDecoded  prometheus.Counter
	EventsFallback prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		FullScans: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_full_scans_total",
			Help: "Total number of full vault collection scans",
		}),
		FullScanFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_full_scan_failures_total",
			Help: "Full scans that failed and left the previous collection in place",
		}),
		TargetedRefresh: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_targeted_refresh_total",
			Help: "Single-vault refreshes triggered by confirmations or events",
		}),
		MetadataBatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_metadata_batches_total",
			Help: "Metadata enrichment batches fetched from the asset API",
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fracvault_full_scan_duration_seconds",
			Help:    "Latency of full vault collection scans",
			Buckets: prometheus.DefBuckets,
		}),
		TxSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_tx_submitted_total",
			Help: "Reclaim transactions submitted to the ledger",
		}),
		TxConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_tx_confirmed_total",
			Help: "Reclaim transactions confirmed on the ledger",
		}),
		TxFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_tx_failed_total",
			Help: "Reclaim transactions that failed or were rejected",
		}),
		ConfirmMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fracvault_tx_confirm_duration_ms",
			Help:    "Time from submission to confirmation in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}),
		EventsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_events_decoded_total",
			Help: "Program log events decoded with a vault address",
		}),
		EventsFallback: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fracvault_events_fallback_total",
			Help: "Program log batches that fell back to a full rescan",
		}),
	}
}

// ObserveConfirm records submission-to-confirmation latency.
func (m *Metrics) ObserveConfirm(d time.Duration) {
	m.ConfirmMs.Observe(float64(d.Microseconds()) / 1000.0)
}
