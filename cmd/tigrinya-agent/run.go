package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/config"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/critic"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/extract"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/normalize"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/oracle"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/pipeline"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/refiner"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/script"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/segment"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/store"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/tagger"
)

var runNoResume bool

var runCmd = &cobra.Command{
	Use:   "run <documents.json>",
	Short: "Run the full annotation pipeline",
	Long: `Processes extracted newspaper documents end to end: cleaning,
segmentation, oracle tagging with critic review, refinement, and
storage. Interrupted runs resume where they left off unless --no-resume
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		logger := slog.Default()

		docs, err := extract.LoadDocuments(args[0], logger)
		if err != nil {
			return err
		}

		client, err := buildOracle(cmd, cfg)
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.Store.Path, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		validator := script.NewValidator(0)
		normalizer := normalize.New(normalize.Config{
			PairDominance: cfg.Normalizer.PairDominance,
			MaxRepeatUnit: cfg.Normalizer.MaxRepeatUnit,
		}, validator)
		segmenter := segment.New(segment.Config{
			MinWords:    cfg.Segmenter.MinWords,
			MinEthiopic: cfg.Segmenter.MinEthiopic,
		}, validator)

		tg, err := tagger.New(client, validator, logger)
		if err != nil {
			return err
		}
		controller := pipeline.NewController(
			tg,
			critic.New(client, logger),
			refiner.New(client, logger),
			pipeline.ControllerConfig{
				MaxAttempts:      cfg.Pipeline.MaxAttempts,
				TransportRetries: uint(cfg.Pipeline.TransportRetries),
				RetryDelay:       time.Duration(cfg.Pipeline.RetryDelayMs) * time.Millisecond,
			},
			logger,
		)
		runner := pipeline.NewRunner(normalizer, segmenter, controller, db,
			pipeline.RunnerConfig{
				Concurrency: int64(cfg.Pipeline.Concurrency),
				Resume:      cfg.Pipeline.Resume && !runNoResume,
				MinRunes:    cfg.Pipeline.MinUnitRunes,
			}, logger)

		for _, doc := range docs {
			if err := db.SaveDocument(ctx, doc); err != nil {
				return err
			}
		}

		summary, _, err := runner.RunBatch(ctx, docs)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

// buildOracle constructs the configured provider wrapped in the shared
// rate limiter.
func buildOracle(cmd *cobra.Command, cfg *config.Config) (oracle.Client, error) {
	var client oracle.Client
	switch cfg.Oracle.Provider {
	case "gemini":
		g, err := oracle.NewGemini(cmd.Context(), oracle.GeminiConfig{
			APIKey:      cfg.ResolvedAPIKey(),
			Model:       cfg.Oracle.Model,
			Timeout:     time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
			Temperature: float32(cfg.Oracle.Temperature),
		})
		if err != nil {
			return nil, err
		}
		client = g
	case "mock":
		// Structurally valid but content-free; for dry runs only.
		client = oracle.NewMock("PASSED")
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}

	limiter := oracle.NewRateLimiter(cfg.Oracle.RequestsPerMinute,
		time.Duration(cfg.Oracle.MaxWaitSeconds)*time.Second)
	return oracle.NewThrottled(client, limiter), nil
}

func init() {
	runCmd.Flags().BoolVar(&runNoResume, "no-resume", false, "reprocess units that already have refined records")
}
