// Package metrics records build outcomes as Prometheus metrics.
//
// Collectors live on an isolated registry so tests and repeated builds in one
// process (watch mode) never collide with the global default registry. The
// registry is written as a node-exporter textfile; there is no HTTP endpoint.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corey/autolink/internal/domain/report"
)

// Metrics holds the autolink collectors.
type Metrics struct {
	Registry *prometheus.Registry

	BuildsTotal          prometheus.Counter
	DocumentsTotal       *prometheus.CounterVec
	LinksInsertedTotal   prometheus.Counter
	IndexEntries         prometheus.Gauge
	IndexWarnings        *prometheus.GaugeVec
	BuildDurationSeconds prometheus.Histogram
	LastBuildTimestamp   prometheus.Gauge
	BuildInfo            *prometheus.GaugeVec
}

// New registers every collector on a fresh registry. version and goVersion
// are recorded as labels on autolink_info.
func New(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		BuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autolink_builds_total",
			Help: "Total number of completed builds.",
		}),
		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autolink_documents_total",
				Help: "Documents processed, by outcome.",
			},
			[]string{"outcome"},
		),
		LinksInsertedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autolink_links_inserted_total",
			Help: "Total links inserted across all builds.",
		}),
		IndexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autolink_index_entries",
			Help: "Entries in the term index of the latest build.",
		}),
		IndexWarnings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "autolink_index_warnings",
				Help: "Index entries dropped in the latest build, by kind.",
			},
			[]string{"kind"},
		),
		BuildDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autolink_build_duration_seconds",
			Help:    "Wall time of a build.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastBuildTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autolink_last_build_timestamp_seconds",
			Help: "Unix time the latest build finished.",
		}),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "autolink_info",
				Help: "Build information.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.BuildsTotal,
		m.DocumentsTotal,
		m.LinksInsertedTotal,
		m.IndexEntries,
		m.IndexWarnings,
		m.BuildDurationSeconds,
		m.LastBuildTimestamp,
		m.BuildInfo,
	)
	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// Outcome labels for autolink_documents_total.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeDisabled  = "disabled"
	OutcomeFailed    = "failed"
	OutcomeCached    = "cached"
)

// ObserveBuild folds one build report into the collectors. Cached documents
// are counted under both their outcome and "cached".
func (m *Metrics) ObserveBuild(r *report.Report, finished time.Time) {
	if m == nil || r == nil {
		return
	}
	m.BuildsTotal.Inc()

	unchanged := r.Documents - r.Changed - r.Disabled - r.Failed
	if unchanged < 0 {
		unchanged = 0
	}
	m.DocumentsTotal.WithLabelValues(OutcomeChanged).Add(float64(r.Changed))
	m.DocumentsTotal.WithLabelValues(OutcomeUnchanged).Add(float64(unchanged))
	m.DocumentsTotal.WithLabelValues(OutcomeDisabled).Add(float64(r.Disabled))
	m.DocumentsTotal.WithLabelValues(OutcomeFailed).Add(float64(r.Failed))
	m.DocumentsTotal.WithLabelValues(OutcomeCached).Add(float64(r.Cached))

	m.LinksInsertedTotal.Add(float64(r.LinksInserted))
	m.IndexEntries.Set(float64(r.IndexEntries))

	m.IndexWarnings.Reset()
	for _, w := range r.Warnings {
		m.IndexWarnings.WithLabelValues(w.Kind).Inc()
	}

	m.BuildDurationSeconds.Observe(float64(r.DurationMS) / 1000)
	m.LastBuildTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the text exposition format, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
