// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trials resolves trial identifiers to stored trial records,
// fetching from a registry on a cache miss.
package trials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/evidence-engine/internal/identifier"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/registry"
	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrInvalidIdentifier is returned for identifiers that are not of the form
// NCT followed by eight digits. No lookup is attempted.
var ErrInvalidIdentifier = errors.New("invalid trial identifier")

// Store is the persistence the resolver needs. GetTrial must return an error
// wrapping store.ErrNotFound for unknown identifiers.
type Store interface {
	GetTrial(ctx context.Context, nctID string) (*types.TrialRecord, error)
	UpsertTrial(ctx context.Context, t *types.TrialRecord) error
}

// Resolver returns trial records from the store, fetching and persisting
// them on a miss. Concurrent resolutions of one identifier share a single
// registry request.
type Resolver struct {
	registry registry.Registry
	store    Store
	maxAge   time.Duration
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewResolver creates a resolver. A zero cfg.MaxAge trusts stored records
// indefinitely. m and logger may be nil.
func NewResolver(reg registry.Registry, st Store, cfg types.TrialCacheConfig, m *metrics.Metrics, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		registry: reg,
		store:    st,
		maxAge:   cfg.MaxAge,
		metrics:  m,
		logger:   logger.Named("trials"),
		now:      time.Now,
	}
}

// Resolve returns the record for id. A stored record is returned when it is
// fresh; otherwise the registry is queried and the result persisted. When a
// stale record exists and the registry fails, the stale record is returned.
func (r *Resolver) Resolve(ctx context.Context, id string) (*types.TrialRecord, error) {
	nct, ok := identifier.NormalizeTrialID(id)
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrInvalidIdentifier)
	}

	if rec, err := r.store.GetTrial(ctx, nct); err == nil && r.fresh(rec) {
		r.metrics.RegistryFetch(r.registry.Name(), metrics.OutcomeCached, 0)
		return rec, nil
	}

	return r.do(ctx, nct, nct, func(fctx context.Context) (*types.TrialRecord, error) {
		return r.lookup(fctx, nct)
	})
}

// Refresh re-fetches id from the registry regardless of what is stored.
// Unlike Resolve, a registry failure is returned even if a stored record
// exists.
func (r *Resolver) Refresh(ctx context.Context, id string) (*types.TrialRecord, error) {
	nct, ok := identifier.NormalizeTrialID(id)
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrInvalidIdentifier)
	}
	return r.do(ctx, "refresh:"+nct, nct, func(fctx context.Context) (*types.TrialRecord, error) {
		return r.fetch(fctx, nct)
	})
}

// do runs fn once per key across concurrent callers. The flight is detached
// from the cancellation of the caller that started it, so one caller giving
// up never fails the others; each caller stops waiting when its own ctx ends.
// The registry client bounds the flight with its request timeout.
func (r *Resolver) do(ctx context.Context, key, nct string, fn func(context.Context) (*types.TrialRecord, error)) (*types.TrialRecord, error) {
	fctx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return fn(fctx)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Shared {
		r.logger.Debug("shared in-flight lookup", zap.String("nct_id", nct))
	}
	if res.Err != nil {
		return nil, res.Err
	}
	// Each caller gets its own copy of the shared record.
	rec := *res.Val.(*types.TrialRecord)
	return &rec, nil
}

// lookup runs inside the flight. The store is checked again because another
// flight may have persisted the record since the caller's first check.
func (r *Resolver) lookup(ctx context.Context, nct string) (*types.TrialRecord, error) {
	stored, err := r.store.GetTrial(ctx, nct)
	switch {
	case err == nil && r.fresh(stored):
		r.metrics.RegistryFetch(r.registry.Name(), metrics.OutcomeCached, 0)
		return stored, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		r.logger.Warn("reading stored trial", zap.String("nct_id", nct), zap.Error(err))
		stored = nil
	case err != nil:
		stored = nil
	}

	rec, err := r.fetch(ctx, nct)
	if err != nil && stored != nil {
		r.logger.Warn("registry lookup failed, using stale record",
			zap.String("nct_id", nct),
			zap.Time("fetched_at", stored.FetchedAt),
			zap.Error(err))
		return stored, nil
	}
	return rec, err
}

func (r *Resolver) fetch(ctx context.Context, nct string) (*types.TrialRecord, error) {
	rec, err := r.registry.FetchTrial(ctx, nct)
	if err != nil {
		return nil, fmt.Errorf("fetching %s from %s: %w", nct, r.registry.Name(), err)
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = r.now()
	}
	if err := r.store.UpsertTrial(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing trial %s: %w", nct, err)
	}
	r.logger.Info("stored trial", zap.String("nct_id", nct), zap.String("title", rec.Title()))
	return rec, nil
}

func (r *Resolver) fresh(rec *types.TrialRecord) bool {
	if r.maxAge <= 0 {
		return true
	}
	return r.now().Sub(rec.FetchedAt) <= r.maxAge
}
