package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/normalize"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/segment"
)

// Store is the persistence surface the runner needs: save each refined
// record once and skip units already refined by an earlier run.
type Store interface {
	SaveRefined(ctx context.Context, record corpus.RefinedRecord) error
	HasRefined(ctx context.Context, documentID string, sentenceIndex int) (bool, error)
}

// RunnerConfig bounds document processing.
type RunnerConfig struct {
	// Concurrency is the number of units resolved in parallel. The
	// shared oracle rate limiter provides the real backpressure; this
	// bounds in-flight attempt state.
	Concurrency int64
	// Resume skips units the store already holds.
	Resume bool
	// MinRunes skips units shorter than this before any oracle work.
	// Zero disables the check.
	MinRunes int
}

// DefaultRunnerConfig returns the standard runner settings.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{Concurrency: 4, Resume: true, MinRunes: 20}
}

// UnitResult pairs a sentence unit with its outcome. Exactly one of
// Record and Err is meaningful unless Skipped is set.
type UnitResult struct {
	Unit    corpus.SentenceUnit
	Record  corpus.RefinedRecord
	Err     error
	Skipped bool
}

// DocumentResult reports one document's processing outcome in unit
// order.
type DocumentResult struct {
	DocumentID string
	Status     corpus.ExtractionStatus
	Units      []UnitResult
}

// Summary aggregates a batch run.
type Summary struct {
	Documents int `json:"documents"`
	EmptyDocs int `json:"empty_documents"`
	Units     int `json:"units"`
	Refined   int `json:"refined"`
	Accepted  int `json:"accepted"`
	Fallback  int `json:"fallback"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Runner drives raw documents through normalization, segmentation, and
// per-unit resolution with bounded concurrency.
type Runner struct {
	normalizer *normalize.Normalizer
	segmenter  *segment.Segmenter
	controller *Controller
	store      Store
	cfg        RunnerConfig
	logger     *slog.Logger
}

// NewRunner wires the document flow together.
func NewRunner(n *normalize.Normalizer, s *segment.Segmenter, c *Controller,
	store Store, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		normalizer: n,
		segmenter:  s,
		controller: c,
		store:      store,
		cfg:        cfg,
		logger:     logger.With("component", "runner"),
	}
}

// RunDocument processes one raw document end to end. Unit results come
// back in sentence order regardless of completion order. A fully
// stripped document is a valid, reportable outcome, not an error.
func (r *Runner) RunDocument(ctx context.Context, doc corpus.RawDocument) (DocumentResult, error) {
	logger := r.logger.With("document", doc.ID)

	if doc.ExtractedText == "" {
		logger.Info("document has no extracted text")
		return DocumentResult{DocumentID: doc.ID, Status: corpus.ExtractionEmpty}, nil
	}

	normalized, stats := r.normalizer.NormalizeWithStats(doc.ExtractedText)
	if normalized == "" {
		logger.Info("document fully stripped during normalization",
			"raw_chars", stats.RawChars)
		return DocumentResult{DocumentID: doc.ID, Status: corpus.ExtractionNoNativeText}, nil
	}

	units := r.segmenter.Segment(doc.ID, normalized)
	logger.Info("document segmented",
		"units", len(units),
		"raw_chars", stats.RawChars,
		"normalized_chars", stats.NormalizedChars)

	results := make([]UnitResult, len(units))
	sem := semaphore.NewWeighted(r.cfg.Concurrency)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i, unit := range units {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = UnitResult{Unit: unit, Err: err}
			continue
		}
		wg.Add(1)
		go func(i int, unit corpus.SentenceUnit) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = r.resolveUnit(ctx, unit, doc)
		}(i, unit)
	}
	wg.Wait()

	return DocumentResult{DocumentID: doc.ID, Status: corpus.ExtractionOK, Units: results}, nil
}

func (r *Runner) resolveUnit(ctx context.Context, unit corpus.SentenceUnit, doc corpus.RawDocument) UnitResult {
	if r.cfg.MinRunes > 0 && len([]rune(unit.Text)) < r.cfg.MinRunes {
		r.logger.Debug("unit below minimum length, skipping", "unit", unit.Key())
		return UnitResult{Unit: unit, Skipped: true}
	}
	if r.cfg.Resume && r.store != nil {
		done, err := r.store.HasRefined(ctx, unit.DocumentID, unit.Index)
		if err != nil {
			return UnitResult{Unit: unit, Err: fmt.Errorf("resume check for %s: %w", unit.Key(), err)}
		}
		if done {
			r.logger.Debug("unit already refined, skipping", "unit", unit.Key())
			return UnitResult{Unit: unit, Skipped: true}
		}
	}

	record, err := r.controller.Resolve(ctx, unit, doc)
	if err != nil {
		return UnitResult{Unit: unit, Err: err}
	}

	if r.store != nil {
		if err := r.store.SaveRefined(ctx, record); err != nil {
			return UnitResult{Unit: unit, Err: fmt.Errorf("saving %s: %w", unit.Key(), err)}
		}
	}
	return UnitResult{Unit: unit, Record: record}
}

// RunBatch processes documents in order and aggregates a summary.
// Document-level failures are counted, logged, and do not stop the
// batch.
func (r *Runner) RunBatch(ctx context.Context, docs []corpus.RawDocument) (Summary, []DocumentResult, error) {
	var summary Summary
	results := make([]DocumentResult, 0, len(docs))
	logger := r.logger.With("run", uuid.NewString()[:8])
	logger.Info("batch starting", "documents", len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, results, err
		}

		res, err := r.RunDocument(ctx, doc)
		if err != nil {
			logger.Error("document failed", "document", doc.ID, "error", err)
			summary.Documents++
			summary.Failed++
			continue
		}
		results = append(results, res)

		summary.Documents++
		if res.Status != corpus.ExtractionOK {
			summary.EmptyDocs++
		}
		for _, u := range res.Units {
			summary.Units++
			switch {
			case u.Skipped:
				summary.Skipped++
			case u.Err != nil:
				summary.Failed++
			default:
				summary.Refined++
				if u.Record.AcceptancePath.IsFallback() {
					summary.Fallback++
				} else {
					summary.Accepted++
				}
			}
		}
	}

	logger.Info("batch complete",
		"documents", summary.Documents,
		"units", summary.Units,
		"refined", summary.Refined,
		"fallback", summary.Fallback,
		"failed", summary.Failed,
		"skipped", summary.Skipped)
	return summary, results, nil
}
