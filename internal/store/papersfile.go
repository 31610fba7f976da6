// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/internal/identifier"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ReadPapersFile parses a YAML file of paper records. Each document may hold
// a single paper mapping or a sequence of papers.
func ReadPapersFile(path string) ([]types.Paper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening papers file: %w", err)
	}
	defer f.Close()

	papers, err := DecodePapers(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return papers, nil
}

// DecodePapers reads every YAML document from r.
func DecodePapers(r io.Reader) ([]types.Paper, error) {
	dec := yaml.NewDecoder(r)
	var papers []types.Paper
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if len(node.Content) == 0 {
			continue
		}

		doc := node.Content[0]
		switch doc.Kind {
		case yaml.SequenceNode:
			var list []types.Paper
			if err := doc.Decode(&list); err != nil {
				return nil, fmt.Errorf("decoding paper list: %w", err)
			}
			papers = append(papers, list...)
		case yaml.MappingNode:
			var p types.Paper
			if err := doc.Decode(&p); err != nil {
				return nil, fmt.Errorf("decoding paper: %w", err)
			}
			papers = append(papers, p)
		default:
			return nil, fmt.Errorf("line %d: expected a paper or a list of papers", doc.Line)
		}
	}
	return papers, nil
}

// ImportSummary holds counts from a paper import.
type ImportSummary struct {
	Inserted int
	Updated  int
	Failed   int
}

// Total returns the number of papers processed.
func (s ImportSummary) Total() int {
	return s.Inserted + s.Updated + s.Failed
}

// ImportPapers upserts papers, normalizing their PMIDs. Invalid records are
// reported to w and counted as failed; the import continues.
func (s *Store) ImportPapers(ctx context.Context, papers []types.Paper, w io.Writer) (ImportSummary, error) {
	var summary ImportSummary
	for i := range papers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		p := papers[i]
		pmid, ok := identifier.NormalizePMID(p.PMID)
		if !ok {
			fmt.Fprintf(w, "failed   %q: invalid pmid\n", p.PMID)
			summary.Failed++
			continue
		}
		p.PMID = pmid

		created, err := s.UpsertPaper(ctx, &p)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", pmid, err)
			summary.Failed++
			continue
		}
		if created {
			fmt.Fprintf(w, "imported %s\n", pmid)
			summary.Inserted++
		} else {
			fmt.Fprintf(w, "updated  %s\n", pmid)
			summary.Updated++
		}
	}

	fmt.Fprintf(w, "\nimported: %d, updated: %d, failed: %d\n",
		summary.Inserted, summary.Updated, summary.Failed)
	return summary, nil
}

// ExportPapers writes the papers matching f, with their cached
// classifications, to w as a YAML list.
func (s *Store) ExportPapers(ctx context.Context, w io.Writer, f PaperFilter) (int, error) {
	papers, err := s.ListPapers(ctx, f)
	if err != nil {
		return 0, err
	}
	if papers == nil {
		papers = []types.Paper{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(papers); err != nil {
		return 0, fmt.Errorf("encoding papers: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encoding papers: %w", err)
	}
	return len(papers), nil
}
