// Package segment splits normalized Tigrinya text into sentence units on
// script-aware terminal punctuation, gating each unit through the script
// validator so degenerate fragments never reach the annotation pipeline.
package segment

import (
	"strings"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/script"
)

// Terminators are the sentence-terminal marks: the Ethiopic full stop and
// question mark plus the Latin set newspapers occasionally use.
var terminators = map[rune]bool{
	'።': true, // Ethiopic full stop
	'፧': true, // Ethiopic question mark
	'.': true,
	'?': true,
	'!': true,
}

// Config tunes fragment handling.
type Config struct {
	// MinWords is the minimum whitespace-delimited token count for a span
	// to stand as its own sentence. Shorter spans are merged forward.
	// Default 5, matching the source corpus heuristic.
	MinWords int

	// MinEthiopic is the minimum count of Ethiopic letters a sentence
	// must carry. Default 10.
	MinEthiopic int
}

// DefaultConfig returns the tuned segmentation defaults.
func DefaultConfig() Config {
	return Config{MinWords: 5, MinEthiopic: 10}
}

// Segmenter produces ordered sentence units from normalized text.
// Single pass, not restartable; safe for concurrent use.
type Segmenter struct {
	cfg       Config
	validator *script.Validator
}

// New creates a segmenter. Zero config fields fall back to defaults.
func New(cfg Config, validator *script.Validator) *Segmenter {
	if cfg.MinWords <= 0 {
		cfg.MinWords = 5
	}
	if cfg.MinEthiopic <= 0 {
		cfg.MinEthiopic = 10
	}
	return &Segmenter{cfg: cfg, validator: validator}
}

// Segment splits text into sentence units for the given document. Returns
// zero units for empty input (valid, not an error). Indices are dense and
// 0-based; source order is preserved.
func (s *Segmenter) Segment(documentID, text string) []corpus.SentenceUnit {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	spans := splitTerminated(text)

	// Merge fragments below the minimum forward until the minimum is met
	// or input is exhausted.
	var merged []string
	var carry string
	for _, span := range spans {
		if carry != "" {
			span = carry + " " + span
			carry = ""
		}
		if len(strings.Fields(span)) < s.cfg.MinWords {
			carry = span
			continue
		}
		merged = append(merged, span)
	}
	if carry != "" {
		if len(merged) > 0 && len(strings.Fields(carry)) < s.cfg.MinWords {
			merged[len(merged)-1] = merged[len(merged)-1] + " " + carry
		} else {
			merged = append(merged, carry)
		}
	}

	var units []corpus.SentenceUnit
	for _, span := range merged {
		span = strings.TrimSpace(span)
		if !s.admissibleSentence(span) {
			continue
		}
		units = append(units, corpus.SentenceUnit{
			DocumentID: documentID,
			Index:      len(units),
			Text:       span,
		})
	}
	return units
}

// splitTerminated breaks text into spans at terminator runs, keeping each
// run attached to the preceding span.
func splitTerminated(text string) []string {
	var spans []string
	var b strings.Builder
	inTerm := false
	for _, r := range text {
		if terminators[r] {
			b.WriteRune(r)
			inTerm = true
			continue
		}
		if inTerm {
			if span := strings.TrimSpace(b.String()); span != "" {
				spans = append(spans, span)
			}
			b.Reset()
			inTerm = false
		}
		if r == '\n' {
			r = ' '
		}
		b.WriteRune(r)
	}
	if span := strings.TrimSpace(b.String()); span != "" {
		spans = append(spans, span)
	}
	return spans
}

// admissibleSentence applies the script gate plus the Ethiopic-content
// minimum that filters out fragments of digits and stray punctuation.
func (s *Segmenter) admissibleSentence(span string) bool {
	if len(strings.Fields(span)) < s.cfg.MinWords {
		return false
	}
	if script.CountEthiopic(span) < s.cfg.MinEthiopic {
		return false
	}
	return s.validator.IsAdmissible(span)
}
