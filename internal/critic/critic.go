// Package critic reviews taggings with a second oracle pass. The critic
// never edits a tagging: it either accepts it or returns an ordered list
// of deficiencies for the tagger to address on the next attempt.
package critic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/oracle"
)

// Critic reviews taggings.
type Critic struct {
	client oracle.Client
	logger *slog.Logger
}

// New creates a Critic.
func New(client oracle.Client, logger *slog.Logger) *Critic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Critic{client: client, logger: logger.With("component", "critic")}
}

// Review asks the oracle to judge the tagging. A response that parses as
// neither a pass nor feedback counts as a rejection: an unreadable
// review must never promote a tagging.
func (c *Critic) Review(ctx context.Context, unit corpus.SentenceUnit, tokens []corpus.TaggedToken) (corpus.Critique, error) {
	raw, err := c.client.Complete(ctx, c.buildPrompt(unit.Text, tokens))
	if err != nil {
		return corpus.Critique{}, fmt.Errorf("reviewing %s: %w", unit.Key(), err)
	}

	critique := parseReview(raw)
	c.logger.Debug("reviewed tagging",
		"unit", unit.Key(),
		"accepted", critique.Accepted,
		"feedback_items", len(critique.Feedback))
	return critique, nil
}

func (c *Critic) buildPrompt(sentence string, tokens []corpus.TaggedToken) string {
	var b strings.Builder
	b.WriteString("You are reviewing a part-of-speech tagging of a Tigrinya sentence.\n\n")

	b.WriteString("Sentence:\n")
	b.WriteString(sentence)
	b.WriteString("\n\nProposed tagging:\n")
	for _, t := range tokens {
		b.WriteString(t.Surface)
		b.WriteString(":")
		b.WriteString(string(t.Tag))
		b.WriteString("\n")
	}

	b.WriteString(`
Check for these common mistakes:
- Verb prefixes (ካ, ብ, ን, መ) and object suffixes mistaken for separate words.
- Eritrean and Ethiopian place names, institutions, and person names tagged Noun instead of ProperNoun.
- Compound expressions split so that a fragment carries the wrong tag.
- Numerals and dates tagged as Noun.
- Tags outside the allowed vocabulary.

If every tag is correct, reply with exactly:
PASSED

Otherwise reply with:
FEEDBACK:
- one deficiency per line, concrete and actionable
`)
	return b.String()
}

// parseReview decodes the critic's verdict. PASSED must stand alone on
// the first meaningful line; anything after a FEEDBACK marker is
// collected as one item per line.
func parseReview(raw string) corpus.Critique {
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	inFeedback := false
	var feedback []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		upper := strings.ToUpper(line)

		if !inFeedback {
			if upper == "PASSED" || upper == "PASSED." {
				return corpus.Accept()
			}
			if strings.HasPrefix(upper, "FEEDBACK") {
				inFeedback = true
				// Feedback may start on the marker line itself.
				if rest := strings.TrimSpace(strings.TrimPrefix(line[len("FEEDBACK"):], ":")); rest != "" {
					feedback = append(feedback, rest)
				}
				continue
			}
			continue
		}

		item := strings.TrimSpace(strings.TrimLeft(line, "-*•0123456789. "))
		if item != "" {
			feedback = append(feedback, item)
		}
	}

	if len(feedback) > 0 {
		return corpus.Reject(feedback...)
	}
	// Neither verdict was found. Rejecting is the safe reading.
	return corpus.Reject("critic response unparseable")
}
