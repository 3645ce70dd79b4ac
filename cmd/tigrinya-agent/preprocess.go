package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/extract"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/normalize"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/script"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/segment"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/store"
)

var (
	preprocessOut   string
	preprocessStore bool
)

// preprocessReport is the JSON emitted per document by the preprocess
// command: cleaning statistics plus the resulting sentence units.
type preprocessReport struct {
	DocumentID string                  `json:"document_id"`
	Status     corpus.ExtractionStatus `json:"status"`
	Stats      normalize.Stats         `json:"stats"`
	Units      []corpus.SentenceUnit   `json:"units"`
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess <documents.json>",
	Short: "Normalize and segment documents without invoking the oracle",
	Long: `Runs only the deterministic half of the pipeline: script
validation, OCR repair, and sentence segmentation. Useful for inspecting
what the tagger would receive, and for tuning the repair thresholds.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		validator := script.NewValidator(0)
		normalizer := normalize.New(normalize.Config{
			PairDominance: cfg.Normalizer.PairDominance,
			MaxRepeatUnit: cfg.Normalizer.MaxRepeatUnit,
		}, validator)
		segmenter := segment.New(segment.Config{
			MinWords:    cfg.Segmenter.MinWords,
			MinEthiopic: cfg.Segmenter.MinEthiopic,
		}, validator)

		var db *store.Store
		if preprocessStore {
			db, err = store.Open(cfg.Store.Path, logger)
			if err != nil {
				return err
			}
			defer db.Close()
		}

		ctx := cmd.Context()
		reports := make([]preprocessReport, 0, len(docs))
		totalUnits := 0
		for _, doc := range docs {
			report := preprocessReport{DocumentID: doc.ID, Status: corpus.ExtractionOK}
			if doc.ExtractedText == "" {
				report.Status = corpus.ExtractionEmpty
			} else {
				cleaned, stats := normalizer.NormalizeWithStats(doc.ExtractedText)
				report.Stats = stats
				if cleaned == "" {
					report.Status = corpus.ExtractionNoNativeText
				} else {
					report.Units = segmenter.Segment(doc.ID, cleaned)
					totalUnits += len(report.Units)
				}
			}
			reports = append(reports, report)

			if db != nil {
				doc.ExtractionStatus = report.Status
				if err := db.SaveDocument(ctx, doc); err != nil {
					return err
				}
			}
		}

		logger.Info("preprocessing complete",
			"documents", len(docs), "units", totalUnits)

		out := os.Stdout
		if preprocessOut != "" {
			f, err := os.Create(preprocessOut)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	},
}

func init() {
	preprocessCmd.Flags().StringVarP(&preprocessOut, "out", "o", "", "write report to file instead of stdout")
	preprocessCmd.Flags().BoolVar(&preprocessStore, "store", false, "record document metadata and extraction status in the store")
}
