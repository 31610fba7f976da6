// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const runColumns = `id, kind, status, year_filter, counters, error_message,
	started_at, completed_at, duration_ms`

// CreateRun inserts a new run record, assigning an ID and start time when
// they are unset.
func (s *Store) CreateRun(ctx context.Context, r *types.RunRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = s.now()
	}
	if r.Status == "" {
		r.Status = types.RunStarted
	}
	counters, err := json.Marshal(r.Counters)
	if err != nil {
		return fmt.Errorf("encoding counters: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), string(r.Status), r.YearFilter, string(counters), r.ErrorMessage,
		formatTime(r.StartedAt), formatTimePtr(r.CompletedAt), r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// UpdateRun stores the run's status, counters, and completion fields.
func (s *Store) UpdateRun(ctx context.Context, r *types.RunRecord) error {
	counters, err := json.Marshal(r.Counters)
	if err != nil {
		return fmt.Errorf("encoding counters: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, counters = ?, error_message = ?, completed_at = ?, duration_ms = ?
		 WHERE id = ?`,
		string(r.Status), string(counters), r.ErrorMessage, formatTimePtr(r.CompletedAt),
		r.Duration.Milliseconds(), r.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", r.ID, err)
	}
	return expectRow(res, "run "+r.ID)
}

// GetRun returns the run with the given ID or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*types.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.RunRecord, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanRun(row scanner) (*types.RunRecord, error) {
	var (
		r                      types.RunRecord
		kind, status, counters string
		startedAt              string
		completedAt            sql.NullString
		durationMS             int64
	)
	if err := row.Scan(&r.ID, &kind, &status, &r.YearFilter, &counters, &r.ErrorMessage,
		&startedAt, &completedAt, &durationMS); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(counters), &r.Counters); err != nil {
		return nil, fmt.Errorf("decoding counters of run %s: %w", r.ID, err)
	}
	r.Kind = types.RunKind(kind)
	r.Status = types.RunStatus(status)
	r.StartedAt = parseTime(startedAt)
	r.CompletedAt = parseTimePtr(completedAt)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return &r, nil
}
