// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus collectors for classification,
// linking, registry access, and batch runs. Collectors live on a private
// registry; batch commands write it out as a node-exporter textfile.
//
// All recording methods are safe on a nil *Metrics so components can run
// without instrumentation.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evidence_engine"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeSkipped  = "skipped"
	OutcomeNotFound = "not_found"
	OutcomeCached   = "cached"
)

// DefaultRunDurationBuckets spans single-paper runs up to multi-hour backfills.
var DefaultRunDurationBuckets = []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200}

// Metrics holds all collectors.
type Metrics struct {
	registry *prometheus.Registry

	PapersProcessed  *prometheus.CounterVec
	LabelsAssigned   *prometheus.CounterVec
	IdentifiersFound *prometheus.CounterVec
	LinksCreated     *prometheus.CounterVec
	RegistryFetches  *prometheus.CounterVec
	RegistryLatency  prometheus.Histogram
	RunDuration      *prometheus.HistogramVec
	RunsTotal        *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PapersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_processed_total",
			Help:      "Papers processed by batch runs, by run kind and outcome.",
		}, []string{"kind", "outcome"}),
		LabelsAssigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_assigned_total",
			Help:      "Study design labels assigned after conflict resolution.",
		}, []string{"label"}),
		IdentifiersFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifiers_found_total",
			Help:      "Distinct identifiers extracted per record, by family.",
		}, []string{"family"}),
		LinksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Paper-trial links created, by extraction method.",
		}, []string{"method"}),
		RegistryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_fetches_total",
			Help:      "Trial record lookups, by registry and outcome.",
		}, []string{"registry", "outcome"}),
		RegistryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_fetch_duration_seconds",
			Help:      "Latency of registry requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of batch runs.",
			Buckets:   DefaultRunDurationBuckets,
		}, []string{"kind"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs, by kind and final status.",
		}, []string{"kind", "status"}),
	}
	m.registry.MustRegister(
		m.PapersProcessed,
		m.LabelsAssigned,
		m.IdentifiersFound,
		m.LinksCreated,
		m.RegistryFetches,
		m.RegistryLatency,
		m.RunDuration,
		m.RunsTotal,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// PaperProcessed counts one paper of a run.
func (m *Metrics) PaperProcessed(kind, outcome string) {
	if m == nil {
		return
	}
	m.PapersProcessed.WithLabelValues(kind, outcome).Inc()
}

// LabelsAssignedTo counts the labels of a resolved classification set.
func (m *Metrics) LabelsAssignedTo(labels []string) {
	if m == nil {
		return
	}
	for _, l := range labels {
		m.LabelsAssigned.WithLabelValues(l).Inc()
	}
}

// Identifiers counts n identifiers of a family.
func (m *Metrics) Identifiers(family string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IdentifiersFound.WithLabelValues(family).Add(float64(n))
}

// LinkCreated counts one new link.
func (m *Metrics) LinkCreated(method string) {
	if m == nil {
		return
	}
	m.LinksCreated.WithLabelValues(method).Inc()
}

// RegistryFetch records one registry lookup. A zero elapsed means the lookup
// never reached the network.
func (m *Metrics) RegistryFetch(registry, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RegistryFetches.WithLabelValues(registry, outcome).Inc()
	if elapsed > 0 {
		m.RegistryLatency.Observe(elapsed.Seconds())
	}
}

// RunFinished records a completed or failed run.
func (m *Metrics) RunFinished(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
