// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry fetches trial registrations from public trial registries
// and normalizes them into TrialRecords.
package registry

import (
	"context"
	"errors"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrNotFound is returned when the registry has no usable record for an
// identifier. Empty and unparsable responses count as not found.
var ErrNotFound = errors.New("trial not found in registry")

// ErrUnavailable wraps transport failures, timeouts, and unexpected HTTP
// statuses. Callers may retry later.
var ErrUnavailable = errors.New("registry unavailable")

// Registry looks up a single trial registration by identifier.
type Registry interface {
	// Name identifies the registry in logs and metrics.
	Name() string

	// FetchTrial returns the normalized record for a canonical trial
	// identifier.
	FetchTrial(ctx context.Context, nctID string) (*types.TrialRecord, error)
}
