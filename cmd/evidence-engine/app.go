// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/identifier"
	"github.com/pdiddy/evidence-engine/internal/linker"
	"github.com/pdiddy/evidence-engine/internal/logging"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/registry"
	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/internal/studytype"
	"github.com/pdiddy/evidence-engine/internal/trials"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// app holds the components a command works with. Commands that touch the
// store build one with newApp and Close it when done.
type app struct {
	cfg        types.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	store      *store.Store
	resolver   *trials.Resolver
	classifier *studytype.Service
	linker     *linker.Linker
}

func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	cls, err := newClassifier(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	ext, err := newExtractor(cfg.Extraction)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", zap.String("path", cfg.Database.Path))

	m := metrics.New()
	reg := registry.NewClinicalTrialsGov(cfg.Registry, m, logger)
	res := trials.NewResolver(reg, st, cfg.Trials, m, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		store:      st,
		resolver:   res,
		classifier: studytype.NewService(cls, st, logger),
		linker:     linker.New(st, res, ext, cfg.Candidates, m, logger),
	}, nil
}

// Close releases the store and flushes the logger.
func (a *app) Close() error {
	err := a.store.Close()
	_ = a.logger.Sync()
	return err
}

// writeMetrics exports the metrics registry when metrics.textfile is set.
// A failed export is logged and does not fail the command.
func (a *app) writeMetrics() {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("metrics export failed", zap.Error(err))
	}
}

func newClassifier(cfg types.ClassifierConfig) (*studytype.Classifier, error) {
	var (
		lib *studytype.Library
		err error
	)
	if cfg.PatternsFile != "" {
		lib, err = studytype.LoadLibraryFile(cfg.PatternsFile)
	} else {
		lib, err = studytype.DefaultLibrary()
	}
	if err != nil {
		return nil, fmt.Errorf("loading pattern library: %w", err)
	}
	return studytype.NewClassifier(lib, cfg.MinConfidence), nil
}

func newExtractor(cfg types.ExtractionConfig) (*identifier.Extractor, error) {
	mode, err := identifier.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return identifier.New(mode, identifier.WithContextWindows(cfg.TitleContext, cfg.AbstractContext)), nil
}

// parsePMIDs normalizes PMID arguments, rejecting anything that is not one.
func parsePMIDs(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		pmid, ok := identifier.NormalizePMID(a)
		if !ok {
			return nil, fmt.Errorf("invalid PMID %q", a)
		}
		out = append(out, pmid)
	}
	return out, nil
}

func parseTrialID(arg string) (string, error) {
	nct, ok := identifier.NormalizeTrialID(arg)
	if !ok {
		return "", fmt.Errorf("invalid trial identifier %q: want NCT followed by 8 digits", arg)
	}
	return nct, nil
}

// truncate shortens s to n runes for table output.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
