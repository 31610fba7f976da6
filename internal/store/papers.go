// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const paperColumns = `pmid, title, abstract, doi, journal, publication_year,
	publication_types, classifications, classified_at, linked_at`

// UpsertPaper inserts or updates a paper's bibliographic fields. When the
// title, abstract, or publication types change, the cached classification
// and link timestamps are cleared so the paper is processed again. It
// reports whether the paper was newly inserted.
func (s *Store) UpsertPaper(ctx context.Context, p *types.Paper) (bool, error) {
	if p.PMID == "" {
		return false, errors.New("paper has no pmid")
	}
	pubTypes, err := json.Marshal(nonNil(p.PublicationTypes))
	if err != nil {
		return false, fmt.Errorf("encoding publication types: %w", err)
	}
	now := formatTime(s.now())

	var created bool
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT count(*) FROM papers WHERE pmid = ?`, p.PMID,
		).Scan(&n); err != nil {
			return fmt.Errorf("checking paper %s: %w", p.PMID, err)
		}
		created = n == 0

		_, err := tx.ExecContext(ctx,
			`INSERT INTO papers (pmid, title, abstract, doi, journal, publication_year,
				publication_types, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(pmid) DO UPDATE SET
				classifications = CASE WHEN `+unchanged+` THEN papers.classifications ELSE '[]' END,
				classified_at = CASE WHEN `+unchanged+` THEN papers.classified_at ELSE NULL END,
				linked_at = CASE WHEN `+unchanged+` THEN papers.linked_at ELSE NULL END,
				title=excluded.title, abstract=excluded.abstract, doi=excluded.doi,
				journal=excluded.journal, publication_year=excluded.publication_year,
				publication_types=excluded.publication_types, updated_at=excluded.updated_at`,
			p.PMID, p.Title, p.Abstract, p.DOI, p.Journal, p.PublicationYear,
			string(pubTypes), now, now,
		)
		if err != nil {
			return fmt.Errorf("upserting paper %s: %w", p.PMID, err)
		}
		return nil
	})
	return created, err
}

// unchanged compares the stored text fields with the incoming row.
const unchanged = `(papers.title = excluded.title AND papers.abstract = excluded.abstract
	AND papers.publication_types = excluded.publication_types)`

// GetPaper returns the paper with the given PMID or ErrNotFound.
func (s *Store) GetPaper(ctx context.Context, pmid string) (*types.Paper, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE pmid = ?`, pmid)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper %s: %w", pmid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading paper %s: %w", pmid, err)
	}
	return p, nil
}

// PaperFilter narrows ListPapers. Zero values select everything.
type PaperFilter struct {
	Year  int
	PMIDs []string
	Limit int
}

// ListPapers returns papers matching f ordered by numeric PMID.
func (s *Store) ListPapers(ctx context.Context, f PaperFilter) ([]types.Paper, error) {
	var (
		where []string
		args  []any
	)
	if f.Year > 0 {
		where = append(where, "publication_year = ?")
		args = append(args, f.Year)
	}
	if len(f.PMIDs) > 0 {
		where = append(where, "pmid IN ("+placeholders(len(f.PMIDs))+")")
		for _, id := range f.PMIDs {
			args = append(args, id)
		}
	}

	q := `SELECT ` + paperColumns + ` FROM papers`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY CAST(pmid AS INTEGER)"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return s.queryPapers(ctx, q, args...)
}

// SaveClassifications stores a paper's resolved label set and the time it
// was computed.
func (s *Store) SaveClassifications(ctx context.Context, pmid string, results []types.ClassificationResult, at time.Time) error {
	data, err := json.Marshal(nonNilResults(results))
	if err != nil {
		return fmt.Errorf("encoding classifications: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET classifications = ?, classified_at = ?, updated_at = ? WHERE pmid = ?`,
		string(data), formatTime(at), formatTime(s.now()), pmid)
	if err != nil {
		return fmt.Errorf("saving classifications for %s: %w", pmid, err)
	}
	return expectRow(res, "paper "+pmid)
}

// MarkLinked records that a paper went through trial linking at t.
func (s *Store) MarkLinked(ctx context.Context, pmid string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET linked_at = ?, updated_at = ? WHERE pmid = ?`,
		formatTime(at), formatTime(s.now()), pmid)
	if err != nil {
		return fmt.Errorf("marking %s linked: %w", pmid, err)
	}
	return expectRow(res, "paper "+pmid)
}

// PaperQuery describes a free-text paper search used to suggest link
// candidates.
type PaperQuery struct {
	// Terms match case-insensitively against title or abstract; any term
	// suffices.
	Terms []string

	// YearFrom and YearTo bound the publication year inclusively when
	// non-zero.
	YearFrom int
	YearTo   int

	// ExcludeLinkedTo omits papers already linked to this trial.
	ExcludeLinkedTo string

	Limit int
}

// SearchPapers returns papers matching any of the query terms.
func (s *Store) SearchPapers(ctx context.Context, q PaperQuery) ([]types.Paper, error) {
	if len(q.Terms) == 0 {
		return nil, nil
	}

	var (
		terms []string
		args  []any
	)
	for _, t := range q.Terms {
		like := "%" + escapeLike(strings.ToLower(t)) + "%"
		terms = append(terms, `(lower(title) LIKE ? ESCAPE '\' OR lower(abstract) LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	where := []string{"(" + strings.Join(terms, " OR ") + ")"}

	if q.YearFrom > 0 {
		where = append(where, "publication_year >= ?")
		args = append(args, q.YearFrom)
	}
	if q.YearTo > 0 {
		where = append(where, "publication_year <= ?")
		args = append(args, q.YearTo)
	}
	if q.ExcludeLinkedTo != "" {
		where = append(where, `pmid NOT IN (SELECT paper_id FROM paper_trial_links WHERE nct_id = ?)`)
		args = append(args, q.ExcludeLinkedTo)
	}

	query := `SELECT ` + paperColumns + ` FROM papers WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY publication_year DESC, CAST(pmid AS INTEGER)`
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return s.queryPapers(ctx, query, args...)
}

func (s *Store) queryPapers(ctx context.Context, query string, args ...any) ([]types.Paper, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(row scanner) (*types.Paper, error) {
	var (
		p                    types.Paper
		pubTypes, results    string
		classified, linkedAt sql.NullString
	)
	if err := row.Scan(&p.PMID, &p.Title, &p.Abstract, &p.DOI, &p.Journal,
		&p.PublicationYear, &pubTypes, &results, &classified, &linkedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pubTypes), &p.PublicationTypes); err != nil {
		return nil, fmt.Errorf("decoding publication types of %s: %w", p.PMID, err)
	}
	if err := json.Unmarshal([]byte(results), &p.Classifications); err != nil {
		return nil, fmt.Errorf("decoding classifications of %s: %w", p.PMID, err)
	}
	p.ClassifiedAt = parseTimePtr(classified)
	p.LinkedAt = parseTimePtr(linkedAt)
	return &p, nil
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilResults(r []types.ClassificationResult) []types.ClassificationResult {
	if r == nil {
		return []types.ClassificationResult{}
	}
	return r
}
