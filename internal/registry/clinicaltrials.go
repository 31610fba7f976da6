// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/internal/identifier"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// apiBase is the ClinicalTrials.gov v2 API root. Declared as a var so tests
// can substitute an httptest server.
var apiBase = "https://clinicaltrials.gov/api/v2"

const (
	clinicalTrialsName = "clinicaltrials.gov"

	defaultTimeout           = 30 * time.Second
	defaultRequestsPerSecond = 3
	defaultUserAgent         = "evidence-engine/0.1"

	// maxResponseBytes bounds a single study payload.
	maxResponseBytes = 16 << 20
)

// ClinicalTrialsGov is a Registry backed by the ClinicalTrials.gov v2 API.
// It is safe for concurrent use.
type ClinicalTrialsGov struct {
	client     *http.Client
	baseURL    string
	userAgent  string
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewClinicalTrialsGov creates a client from cfg. Zero-valued settings take
// their defaults. m and logger may be nil.
func NewClinicalTrialsGov(cfg types.RegistryConfig, m *metrics.Metrics, logger *zap.Logger) *ClinicalTrialsGov {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.BaseURL
	if base == "" {
		base = apiBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	return &ClinicalTrialsGov{
		client:     &http.Client{},
		baseURL:    strings.TrimRight(base, "/"),
		userAgent:  ua,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		metrics:    m,
		logger:     logger.Named("registry"),
		now:        time.Now,
	}
}

// Name implements Registry.
func (c *ClinicalTrialsGov) Name() string { return clinicalTrialsName }

// FetchTrial implements Registry. The whole call, including rate limiting
// and retries, is bounded by the configured timeout.
func (c *ClinicalTrialsGov) FetchTrial(ctx context.Context, nctID string) (*types.TrialRecord, error) {
	id, ok := identifier.NormalizeTrialID(nctID)
	if !ok {
		return nil, fmt.Errorf("invalid trial identifier %q", nctID)
	}

	start := time.Now()
	rec, err := c.fetch(ctx, id)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		c.metrics.RegistryFetch(c.Name(), metrics.OutcomeSuccess, elapsed)
		c.logger.Debug("fetched trial", zap.String("nct_id", id), zap.Duration("elapsed", elapsed))
	case errors.Is(err, ErrNotFound):
		c.metrics.RegistryFetch(c.Name(), metrics.OutcomeNotFound, elapsed)
		c.logger.Info("trial not found", zap.String("nct_id", id))
	default:
		c.metrics.RegistryFetch(c.Name(), metrics.OutcomeFailure, elapsed)
		c.logger.Warn("trial fetch failed", zap.String("nct_id", id), zap.Error(err))
	}
	return rec, err
}

func (c *ClinicalTrialsGov) fetch(ctx context.Context, id string) (*types.TrialRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limiter: %v", ErrUnavailable, err)
	}

	apiURL := c.baseURL + "/studies/" + id + "?format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating registry request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries, c.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrUnavailable, resp.StatusCode, id)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	rec, err := ParseStudy(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	if rec.NCTID == "" {
		rec.NCTID = id
	}
	if rec.NCTID != id {
		return nil, fmt.Errorf("%s: response describes %s: %w", id, rec.NCTID, ErrNotFound)
	}
	rec.FetchedAt = c.now()
	return rec, nil
}

// ParseStudy normalizes a v2 study payload. It accepts either a single study
// object or a search response of the form {"studies": [...]}, in which case
// the first study is used. The returned record carries the study JSON in Raw.
func ParseStudy(data []byte) (*types.TrialRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response: %w", ErrNotFound)
	}

	var envelope struct {
		Studies []json.RawMessage `json:"studies"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed response: %v: %w", err, ErrNotFound)
	}
	raw := json.RawMessage(data)
	if envelope.Studies != nil {
		if len(envelope.Studies) == 0 {
			return nil, fmt.Errorf("no studies in response: %w", ErrNotFound)
		}
		raw = envelope.Studies[0]
	}

	var s study
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("malformed study: %v: %w", err, ErrNotFound)
	}
	if s.ProtocolSection == nil {
		return nil, fmt.Errorf("study has no protocol section: %w", ErrNotFound)
	}

	rec := s.ProtocolSection.record()
	rec.Raw = append(json.RawMessage(nil), raw...)
	return rec, nil
}
