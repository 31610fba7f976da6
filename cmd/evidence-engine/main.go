// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the evidence-engine CLI.
// The CLI classifies stored papers by study design, links them to their
// ClinicalTrials.gov registrations, and records batch runs over both.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the evidence-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "evidence-engine",
	Short: "Study design classification and trial linking for research papers",
	Long: `evidence-engine processes the clinical research papers held in a local
store. It labels each paper with its study design (randomized controlled
trial, cohort study, systematic review, ...) from the title, abstract, and
publication types, and links papers to the ClinicalTrials.gov registrations
they report on.

Papers are loaded with "papers import". Work is done per paper with
"classify" and "link", or over the whole store with "run".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./evidence-engine.yaml or ~/.config/evidence-engine/evidence-engine.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded into the environment before running")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides database.path)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides log.level)")

	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("evidence-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "evidence-engine"))
		}
	}

	viper.SetEnvPrefix("EVIDENCE_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so that environment
// variables are picked up by viper.Unmarshal.
func setDefaults() {
	viper.SetDefault("database.path", filepath.Join("data", "evidence.db"))

	viper.SetDefault("registry.base_url", "https://clinicaltrials.gov/api/v2")
	viper.SetDefault("registry.timeout", "30s")
	viper.SetDefault("registry.user_agent", "evidence-engine/0.1")
	viper.SetDefault("registry.requests_per_second", 3.0)
	viper.SetDefault("registry.max_retries", 3)

	viper.SetDefault("trials.max_age", "0s")

	viper.SetDefault("classifier.min_confidence", 0.3)
	viper.SetDefault("classifier.patterns_file", "")

	viper.SetDefault("extraction.mode", "strict")
	viper.SetDefault("extraction.title_context", 50)
	viper.SetDefault("extraction.abstract_context", 100)

	viper.SetDefault("candidates.max_terms", 5)
	viper.SetDefault("candidates.max_results", 50)
	viper.SetDefault("candidates.years_before", 1)
	viper.SetDefault("candidates.years_after", 3)

	viper.SetDefault("batch.workers", 1)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")

	viper.SetDefault("metrics.textfile", "")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
