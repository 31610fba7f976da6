// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const linkColumns = `id, paper_id, nct_id, extraction_method, confidence, context_snippet,
	notes, verified, verified_by, verified_at, created_at`

// CreateLink inserts l unless a link for the same paper and trial already
// exists. It reports whether a row was created. When the pair is already
// linked, l is overwritten with the stored link, which keeps its original
// method and confidence.
func (s *Store) CreateLink(ctx context.Context, l *types.PaperTrialLink) (bool, error) {
	if l.PaperID == "" || l.NCTID == "" {
		return false, errors.New("link needs both paper_id and nct_id")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	snippet := l.ContextSnippet
	if r := []rune(snippet); len(r) > types.MaxSnippetLen {
		snippet = string(r[:types.MaxSnippetLen])
	}
	l.ContextSnippet = snippet

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO paper_trial_links (`+linkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(paper_id, nct_id) DO NOTHING`,
		l.ID, l.PaperID, l.NCTID, string(l.Method), string(l.Confidence), l.ContextSnippet,
		l.Notes, l.Verified, l.VerifiedBy, formatTimePtr(l.VerifiedAt), formatTime(l.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("creating link %s/%s: %w", l.PaperID, l.NCTID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	existing, err := s.GetLink(ctx, l.PaperID, l.NCTID)
	if err != nil {
		return false, err
	}
	*l = *existing
	return false, nil
}

// GetLink returns the link between a paper and a trial or ErrNotFound.
func (s *Store) GetLink(ctx context.Context, pmid, nctID string) (*types.PaperTrialLink, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM paper_trial_links WHERE paper_id = ? AND nct_id = ?`,
		pmid, nctID)
	l, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link %s/%s: %w", pmid, nctID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading link %s/%s: %w", pmid, nctID, err)
	}
	return l, nil
}

// LinkFilter narrows ListLinks. Zero values select everything.
type LinkFilter struct {
	PaperID    string
	NCTID      string
	Method     types.ExtractionMethod
	Unverified bool
}

// ListLinks returns links matching f, oldest first.
func (s *Store) ListLinks(ctx context.Context, f LinkFilter) ([]types.PaperTrialLink, error) {
	q := `SELECT ` + linkColumns + ` FROM paper_trial_links WHERE 1=1`
	var args []any
	if f.PaperID != "" {
		q += " AND paper_id = ?"
		args = append(args, f.PaperID)
	}
	if f.NCTID != "" {
		q += " AND nct_id = ?"
		args = append(args, f.NCTID)
	}
	if f.Method != "" {
		q += " AND extraction_method = ?"
		args = append(args, string(f.Method))
	}
	if f.Unverified {
		q += " AND verified = 0"
	}
	q += " ORDER BY created_at, paper_id, nct_id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()

	var links []types.PaperTrialLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// LinkedPaperIDs returns the set of PMIDs already linked to a trial.
func (s *Store) LinkedPaperIDs(ctx context.Context, nctID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT paper_id FROM paper_trial_links WHERE nct_id = ?`, nctID)
	if err != nil {
		return nil, fmt.Errorf("querying links for %s: %w", nctID, err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// VerifyLink marks a link as verified by a curator.
func (s *Store) VerifyLink(ctx context.Context, pmid, nctID, by string) (*types.PaperTrialLink, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE paper_trial_links SET verified = 1, verified_by = ?, verified_at = ?
		 WHERE paper_id = ? AND nct_id = ?`,
		by, formatTime(now), pmid, nctID)
	if err != nil {
		return nil, fmt.Errorf("verifying link %s/%s: %w", pmid, nctID, err)
	}
	if err := expectRow(res, "link "+pmid+"/"+nctID); err != nil {
		return nil, err
	}
	return s.GetLink(ctx, pmid, nctID)
}

func scanLink(row scanner) (*types.PaperTrialLink, error) {
	var (
		l                  types.PaperTrialLink
		method, confidence string
		verifiedAt         sql.NullString
		createdAt          string
	)
	if err := row.Scan(&l.ID, &l.PaperID, &l.NCTID, &method, &confidence, &l.ContextSnippet,
		&l.Notes, &l.Verified, &l.VerifiedBy, &verifiedAt, &createdAt); err != nil {
		return nil, err
	}
	l.Method = types.ExtractionMethod(method)
	l.Confidence = types.ConfidenceTier(confidence)
	l.VerifiedAt = parseTimePtr(verifiedAt)
	l.CreatedAt = parseTime(createdAt)
	return &l, nil
}
