// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunStarted    RunStatus = "started"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s RunStatus) Finished() bool {
	return s == RunCompleted || s == RunFailed
}

// RunKind selects the work a batch run performs on each paper.
type RunKind string

const (
	RunClassify   RunKind = "classify"
	RunLink       RunKind = "link"
	RunAll        RunKind = "all"
	RunReferences RunKind = "references"
)

// Valid reports whether k is a known run kind.
func (k RunKind) Valid() bool {
	switch k {
	case RunClassify, RunLink, RunAll, RunReferences:
		return true
	}
	return false
}

// RunCounters accumulates per-paper outcomes over a batch run.
type RunCounters struct {
	// Total is the number of papers (or trials, for reference runs) in scope.
	Total int `json:"total" yaml:"total"`

	// Processed counts items whose processing finished, successfully or not.
	Processed int `json:"processed" yaml:"processed"`

	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`

	// Skipped counts papers left alone because they were already processed.
	Skipped int `json:"skipped" yaml:"skipped"`

	// Classified counts papers that received a non-empty label set.
	Classified int `json:"classified" yaml:"classified"`

	// PapersWithIdentifiers counts papers mentioning at least one trial.
	PapersWithIdentifiers int `json:"papers_with_identifiers" yaml:"papers_with_identifiers"`

	// IdentifiersFound counts distinct trial identifiers summed over papers.
	IdentifiersFound int `json:"identifiers_found" yaml:"identifiers_found"`

	// LinksCreated counts links that did not exist before this run.
	LinksCreated int `json:"links_created" yaml:"links_created"`
}

// Add merges o into c.
func (c *RunCounters) Add(o RunCounters) {
	c.Total += o.Total
	c.Processed += o.Processed
	c.Succeeded += o.Succeeded
	c.Failed += o.Failed
	c.Skipped += o.Skipped
	c.Classified += o.Classified
	c.PapersWithIdentifiers += o.PapersWithIdentifiers
	c.IdentifiersFound += o.IdentifiersFound
	c.LinksCreated += o.LinksCreated
}

// RunRecord is the persisted audit record of one batch run.
type RunRecord struct {
	ID     string    `json:"id" yaml:"id"`
	Kind   RunKind   `json:"kind" yaml:"kind"`
	Status RunStatus `json:"status" yaml:"status"`

	// YearFilter restricts the run to papers published in this year (0 = all).
	YearFilter int `json:"year_filter,omitempty" yaml:"year_filter,omitempty"`

	Counters RunCounters `json:"counters" yaml:"counters"`

	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}
