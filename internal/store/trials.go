// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// UpsertTrial stores a normalized trial record together with the raw
// registry payload. UpdatedAt is set to the current time.
func (s *Store) UpsertTrial(ctx context.Context, t *types.TrialRecord) error {
	if t.NCTID == "" {
		return errors.New("trial record has no nct_id")
	}
	t.UpdatedAt = s.now()
	if t.FetchedAt.IsZero() {
		t.FetchedAt = t.UpdatedAt
	}

	record, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding trial %s: %w", t.NCTID, err)
	}
	var raw sql.NullString
	if len(t.Raw) > 0 {
		raw = sql.NullString{String: string(t.Raw), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trials (nct_id, brief_title, overall_status, study_type, start_date,
			record, raw_data, fetched_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(nct_id) DO UPDATE SET
			brief_title=excluded.brief_title, overall_status=excluded.overall_status,
			study_type=excluded.study_type, start_date=excluded.start_date,
			record=excluded.record, raw_data=excluded.raw_data,
			fetched_at=excluded.fetched_at, updated_at=excluded.updated_at`,
		t.NCTID, t.BriefTitle, t.OverallStatus, t.StudyType, t.StartDate.Date,
		string(record), raw, formatTime(t.FetchedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting trial %s: %w", t.NCTID, err)
	}
	return nil
}

// GetTrial returns the stored record for nctID or ErrNotFound.
func (s *Store) GetTrial(ctx context.Context, nctID string) (*types.TrialRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record, raw_data, fetched_at, updated_at FROM trials WHERE nct_id = ?`, nctID)
	t, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trial %s: %w", nctID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading trial %s: %w", nctID, err)
	}
	return t, nil
}

// ListTrials returns every stored trial ordered by identifier.
func (s *Store) ListTrials(ctx context.Context) ([]types.TrialRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record, raw_data, fetched_at, updated_at FROM trials ORDER BY nct_id`)
	if err != nil {
		return nil, fmt.Errorf("querying trials: %w", err)
	}
	defer rows.Close()

	var trials []types.TrialRecord
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trial: %w", err)
		}
		trials = append(trials, *t)
	}
	return trials, rows.Err()
}

func scanTrial(row scanner) (*types.TrialRecord, error) {
	var (
		record             string
		raw                sql.NullString
		fetched, updatedAt string
	)
	if err := row.Scan(&record, &raw, &fetched, &updatedAt); err != nil {
		return nil, err
	}
	var t types.TrialRecord
	if err := json.Unmarshal([]byte(record), &t); err != nil {
		return nil, fmt.Errorf("decoding trial record: %w", err)
	}
	if raw.Valid {
		t.Raw = json.RawMessage(raw.String)
	}
	t.FetchedAt = parseTime(fetched)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}
