// Package metrics records scan activity as Prometheus metrics on a private
// registry, exported as a node-exporter textfile by the CLI.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hejijunhao/sleuth/internal/model"
)

// Metrics holds the scan counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	FilesTotal     *prometheus.CounterVec
	LinesTotal     prometheus.Counter
	BytesTotal     prometheus.Counter
	EventsTotal    *prometheus.CounterVec
	AnomaliesTotal *prometheus.CounterVec
	ScanDuration   prometheus.Histogram
	Chains         prometheus.Gauge
	RunDuration    prometheus.Gauge
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		FilesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sleuth_files_total",
			Help: "Files processed, by component and final status",
		}, []string{"component", "status"}),

		LinesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sleuth_lines_scanned_total",
			Help: "Log lines read",
		}),

		BytesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sleuth_bytes_scanned_total",
			Help: "Decoded bytes read",
		}),

		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sleuth_events_total",
			Help: "Match events emitted, by severity",
		}, []string{"severity"}),

		AnomaliesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sleuth_anomalies_total",
			Help: "Lines skipped or repaired during scanning, by kind",
		}, []string{"kind"}),

		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleuth_file_scan_duration_seconds",
			Help:    "Time to classify and scan one file",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
		}),

		Chains: f.NewGauge(prometheus.GaugeOpts{
			Name: "sleuth_chains",
			Help: "Correlation chains in the last report",
		}),

		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "sleuth_last_run_duration_seconds",
			Help: "Wall time of the last analysis run",
		}),
	}
}

// Registry returns the registry holding every sleuth metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFile records the outcome of one file scan.
func (m *Metrics) ObserveFile(st model.FileStats, events []model.MatchEvent, d time.Duration) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(st.LogType.Component, string(st.Status)).Inc()
	m.LinesTotal.Add(float64(st.Lines))
	m.BytesTotal.Add(float64(st.Bytes))
	m.AnomaliesTotal.WithLabelValues("oversize").Add(float64(st.Anomalies.Oversize))
	m.AnomaliesTotal.WithLabelValues("decode").Add(float64(st.Anomalies.Decode))
	for _, e := range events {
		m.EventsTotal.WithLabelValues(e.Severity.String()).Inc()
	}
	m.ScanDuration.Observe(d.Seconds())
}

// ObserveRun records run-level results.
func (m *Metrics) ObserveRun(r model.Report, d time.Duration) {
	if m == nil {
		return
	}
	m.Chains.Set(float64(len(r.Chains)))
	m.RunDuration.Set(d.Seconds())
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
