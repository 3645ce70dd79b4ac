// Package refiner assembles the final record for an accepted tagging:
// date canonicalization, a short topic summary, and the stable article
// identifier. It runs exactly once per sentence unit, after acceptance
// or fallback.
package refiner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/oracle"
)

const (
	summaryMinWords = 3
	summaryMaxWords = 5
)

// priorityEntities are geopolitical names preferred as summary subjects
// when the oracle summary is unusable.
var priorityEntities = []string{"ኤርትራ", "ኣስመራ", "ኣድዋ", "ኣፍሪቃ", "ኣመሪካ"}

// Refiner builds refined records.
type Refiner struct {
	client oracle.Client
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Refiner. The oracle client is optional: without one,
// topic summaries come from the tagging-based fallback only.
func New(client oracle.Client, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{
		client: client,
		logger: logger.With("component", "refiner"),
		now:    time.Now,
	}
}

// Refine assembles the immutable output record for a resolved unit.
// Summarization failures degrade to the fallback summary rather than
// failing the unit: by this stage the tagging has already been paid for.
func (r *Refiner) Refine(ctx context.Context, unit corpus.SentenceUnit, doc corpus.RawDocument,
	tokens []corpus.TaggedToken, path corpus.AcceptancePath, attempts int) (corpus.RefinedRecord, error) {

	// An empty tagging is legitimate only on the fallback path, where it
	// records that no attempt ever parsed.
	if len(tokens) == 0 && !path.IsFallback() {
		return corpus.RefinedRecord{}, fmt.Errorf("refining %s: empty tagging", unit.Key())
	}

	summary := r.summarize(ctx, unit.Text, tokens)

	record := corpus.RefinedRecord{
		ArticleID:      corpus.ArticleID(unit.DocumentID, unit.Index),
		DocumentID:     unit.DocumentID,
		SentenceIndex:  unit.Index,
		Text:           unit.Text,
		NormalizedDate: NormalizeDate(doc.PublicationDateRaw),
		TopicSummary:   summary,
		TaggedTokens:   tokens,
		AcceptancePath: path,
		Attempts:       attempts,
		WordCount:      len(tokens),
		RefinedAt:      r.now().UTC().Format(time.RFC3339),
	}

	r.logger.Debug("refined unit",
		"unit", unit.Key(),
		"article_id", record.ArticleID,
		"date", record.NormalizedDate,
		"path", string(path))
	return record, nil
}

// summarize produces a 3-5 word topic summary, preferring the oracle and
// falling back to the tagging's own nouns.
func (r *Refiner) summarize(ctx context.Context, text string, tokens []corpus.TaggedToken) string {
	if r.client != nil {
		if summary, err := r.oracleSummary(ctx, text); err == nil {
			return summary
		} else {
			r.logger.Debug("oracle summary unusable, using fallback", "error", err)
		}
	}
	return fallbackSummary(tokens)
}

func (r *Refiner) oracleSummary(ctx context.Context, text string) (string, error) {
	if len(text) > 500 {
		text = text[:500]
	}
	prompt := fmt.Sprintf(`Summarize the main topic of this Tigrinya newspaper sentence in 3 to 5 words.
Reply with only the summary, nothing else.

Sentence:
%s
`, text)

	raw, err := r.client.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	words := len(strings.Fields(summary))
	if words < summaryMinWords || words > summaryMaxWords {
		return "", fmt.Errorf("summary has %d words, want %d-%d", words, summaryMinWords, summaryMaxWords)
	}
	return summary, nil
}

// fallbackSummary builds a summary from the tagging itself: a priority
// geopolitical entity if present, then leading nouns, then leading
// surface forms as a last resort.
func fallbackSummary(tokens []corpus.TaggedToken) string {
	var nouns []string
	for _, t := range tokens {
		if t.Tag == corpus.TagNoun || t.Tag == corpus.TagProperNoun {
			nouns = append(nouns, t.Surface)
		}
	}

	picked := make([]string, 0, summaryMaxWords-1)
	for _, n := range nouns {
		if isPriorityEntity(n) {
			picked = append(picked, n)
			break
		}
	}
	for _, n := range nouns {
		if len(picked) >= summaryMaxWords-1 {
			break
		}
		if len(picked) > 0 && picked[0] == n {
			continue
		}
		picked = append(picked, n)
	}

	if len(picked) == 0 {
		for _, t := range tokens {
			if len(picked) >= summaryMinWords {
				break
			}
			if t.Tag != corpus.TagPunctuation {
				picked = append(picked, t.Surface)
			}
		}
	}
	// ዜና marks the summary as a headline-style topic.
	return strings.Join(append(picked, "ዜና"), " ")
}

func isPriorityEntity(word string) bool {
	for _, e := range priorityEntities {
		if strings.Contains(word, e) {
			return true
		}
	}
	return false
}
