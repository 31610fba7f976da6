// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package studytype

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Store persists a paper's resolved classification set.
type Store interface {
	SaveClassifications(ctx context.Context, pmid string, results []types.ClassificationResult, at time.Time) error
}

// Service classifies papers and caches the resolved label set on them.
type Service struct {
	classifier *Classifier
	store      Store
	logger     *zap.Logger
	now        func() time.Time
}

// NewService returns a Service that persists results through store.
func NewService(c *Classifier, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		classifier: c,
		store:      store,
		logger:     logger.Named("classify"),
		now:        time.Now,
	}
}

// ClassifyPaper returns the paper's cached label set when one exists and
// force is false. Otherwise it classifies the paper, persists the result with
// the current time, and updates paper in place.
func (s *Service) ClassifyPaper(ctx context.Context, paper *types.Paper, force bool) ([]types.ClassificationResult, error) {
	if !force && paper.ClassifiedAt != nil && len(paper.Classifications) > 0 {
		return paper.Classifications, nil
	}

	results := s.classifier.Classify(DocumentFor(paper))
	at := s.now().UTC()
	if err := s.store.SaveClassifications(ctx, paper.PMID, results, at); err != nil {
		return nil, fmt.Errorf("saving classifications for %s: %w", paper.PMID, err)
	}
	paper.Classifications = results
	paper.ClassifiedAt = &at

	s.logger.Debug("classified paper",
		zap.String("pmid", paper.PMID),
		zap.Strings("labels", types.Labels(results)))
	return results, nil
}
