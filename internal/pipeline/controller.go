// Package pipeline orchestrates tagging, critique, and refinement per
// sentence unit, and runs documents through the full annotation flow
// with bounded concurrency.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/oracle"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/tagger"
)

// Tagger produces a validated tagging for a unit, folding accumulated
// critic feedback into the prompt.
type Tagger interface {
	Tag(ctx context.Context, unit corpus.SentenceUnit, feedback []string) ([]corpus.TaggedToken, error)
}

// Critic reviews a tagging.
type Critic interface {
	Review(ctx context.Context, unit corpus.SentenceUnit, tokens []corpus.TaggedToken) (corpus.Critique, error)
}

// Refiner assembles the final record for a resolved unit.
type Refiner interface {
	Refine(ctx context.Context, unit corpus.SentenceUnit, doc corpus.RawDocument,
		tokens []corpus.TaggedToken, path corpus.AcceptancePath, attempts int) (corpus.RefinedRecord, error)
}

// State is a pipeline controller state for one unit.
type State string

const (
	StateInit             State = "init"
	StateTagging          State = "tagging"
	StateCritiquing       State = "critiquing"
	StateAccepted         State = "accepted"
	StateRetrying         State = "retrying"
	StateFallbackAccepted State = "fallback_accepted"
	StateRefined          State = "refined"
)

// ControllerConfig bounds the retry loop.
type ControllerConfig struct {
	// MaxAttempts is the number of tag-critique rounds before fallback.
	MaxAttempts int
	// TransportRetries retries individual oracle calls on transient
	// failures. These do not consume tag-critique attempts.
	TransportRetries uint
	RetryDelay       time.Duration
}

// DefaultControllerConfig returns the standard retry policy.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxAttempts:      3,
		TransportRetries: 3,
		RetryDelay:       500 * time.Millisecond,
	}
}

// Controller resolves one sentence unit at a time through the
// tag-critique-refine state machine. Attempt state is ephemeral and
// owned entirely by the controller.
type Controller struct {
	tagger  Tagger
	critic  Critic
	refiner Refiner
	cfg     ControllerConfig
	logger  *slog.Logger
}

// NewController wires the three roles together.
func NewController(t Tagger, c Critic, r Refiner, cfg ControllerConfig, logger *slog.Logger) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		tagger:  t,
		critic:  c,
		refiner: r,
		cfg:     cfg,
		logger:  logger.With("component", "controller"),
	}
}

// Resolve drives a unit to its terminal state and returns the refined
// record. Feedback accumulates monotonically across attempts: attempt N
// sees every feedback string from attempts 1..N-1, in order. Resolve
// fails only on cancellation: any other failure mode exhausts its
// attempts and degrades to a flagged fallback record, with an empty
// tagging if no attempt ever produced a valid one.
func (c *Controller) Resolve(ctx context.Context, unit corpus.SentenceUnit, doc corpus.RawDocument) (corpus.RefinedRecord, error) {
	logger := c.logger.With("unit", unit.Key())

	state := StateInit
	step := func(next State) {
		logger.Debug("state transition", "from", string(state), "to", string(next))
		state = next
	}

	var feedback []string
	var bestTagging []corpus.TaggedToken

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		step(StateTagging)
		tokens, err := c.tagWithRetry(ctx, unit, feedback)
		if err != nil {
			if isCanceled(err) {
				return corpus.RefinedRecord{}, fmt.Errorf("resolving %s: %w", unit.Key(), err)
			}
			// Validation failures become feedback for the next attempt.
			// Oracle failures that survive the transport retries, quota
			// exhaustion included, consume the attempt without polluting
			// the prompt.
			if tagger.KindOf(err) != "" {
				feedback = append(feedback, tagFailureFeedback(err))
			}
			logger.Warn("tagging attempt failed",
				"attempt", attempt, "error", err)
			step(StateRetrying)
			continue
		}
		bestTagging = tokens

		step(StateCritiquing)
		critique, err := c.reviewWithRetry(ctx, unit, tokens)
		if err != nil {
			if isCanceled(err) {
				return corpus.RefinedRecord{}, fmt.Errorf("resolving %s: %w", unit.Key(), err)
			}
			// A critique the oracle never delivered reads the same as one
			// that could not be parsed.
			logger.Warn("critique attempt failed",
				"attempt", attempt, "error", err)
			critique = corpus.Reject("critic response unparseable")
		}

		if critique.Accepted {
			step(StateAccepted)
			logger.Info("tagging accepted", "attempt", attempt)
			record, err := c.refiner.Refine(ctx, unit, doc, tokens,
				corpus.AcceptedOnAttempt(attempt), attempt)
			if err != nil {
				return corpus.RefinedRecord{}, err
			}
			step(StateRefined)
			return record, nil
		}

		feedback = append(feedback, critique.Feedback...)
		step(StateRetrying)
		logger.Debug("tagging rejected",
			"attempt", attempt, "feedback_items", len(critique.Feedback))
	}

	step(StateFallbackAccepted)
	logger.Info("attempts exhausted, refining best tagging",
		"attempts", c.cfg.MaxAttempts,
		"feedback_items", len(feedback),
		"tagging_empty", bestTagging == nil)
	record, err := c.refiner.Refine(ctx, unit, doc, bestTagging, corpus.FallbackBestEffort, c.cfg.MaxAttempts)
	if err != nil {
		return corpus.RefinedRecord{}, err
	}
	step(StateRefined)
	return record, nil
}

// tagWithRetry retries the tagger on transient oracle failures only.
// Tagging validation errors pass through untouched so the caller can
// convert them to feedback.
func (c *Controller) tagWithRetry(ctx context.Context, unit corpus.SentenceUnit, feedback []string) ([]corpus.TaggedToken, error) {
	var tokens []corpus.TaggedToken
	err := retry.Do(
		func() error {
			var err error
			tokens, err = c.tagger.Tag(ctx, unit, feedback)
			return err
		},
		c.retryOpts(ctx)...,
	)
	return tokens, err
}

func (c *Controller) reviewWithRetry(ctx context.Context, unit corpus.SentenceUnit, tokens []corpus.TaggedToken) (corpus.Critique, error) {
	var critique corpus.Critique
	err := retry.Do(
		func() error {
			var err error
			critique, err = c.critic.Review(ctx, unit, tokens)
			return err
		},
		c.retryOpts(ctx)...,
	)
	return critique, err
}

func (c *Controller) retryOpts(ctx context.Context) []retry.Option {
	attempts := c.cfg.TransportRetries
	if attempts == 0 {
		attempts = 1
	}
	delay := c.cfg.RetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	}
}

// isTransient reports oracle failures worth an immediate re-send.
func isTransient(err error) bool {
	switch oracle.KindOf(err) {
	case oracle.KindTransport, oracle.KindTimeout, oracle.KindEmpty:
		return true
	}
	return false
}

// isCanceled reports the only failure that aborts a unit rather than
// feeding the retry loop. Everything else, quota exhaustion included,
// degrades to the fallback path.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// tagFailureFeedback renders a tagging failure as a feedback string for
// the next prompt.
func tagFailureFeedback(err error) string {
	switch tagger.KindOf(err) {
	case tagger.KindScriptViolation:
		return "previous attempt contained non-Tigrinya tokens; keep every surface form in Ge'ez script"
	case tagger.KindRoundTripMismatch:
		return "previous attempt did not cover the whole sentence; concatenated tokens must reproduce it exactly"
	case tagger.KindMalformed:
		return "previous attempt was not valid output; return only a JSON array of {surface, tag} objects"
	}
	return fmt.Sprintf("previous attempt failed: %v", err)
}
