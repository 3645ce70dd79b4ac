// Package tagger turns sentence units into part-of-speech taggings by
// prompting the oracle and validating its output. Parsing is tolerant
// (code fences, surrounding prose, a plain word:Tag line format) but
// validation is strict: unknown tags, foreign-script surfaces, and
// taggings that do not reconstruct the sentence are all rejected.
package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/oracle"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/script"
)

// Tagger produces validated taggings for sentence units.
type Tagger struct {
	client    oracle.Client
	validator *script.Validator
	schema    *jsonschema.Schema
	logger    *slog.Logger
}

// New creates a Tagger. The output schema is compiled once here.
func New(client oracle.Client, validator *script.Validator, logger *slog.Logger) (*Tagger, error) {
	schema, err := compileOutputSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile tagging schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tagger{
		client:    client,
		validator: validator,
		schema:    schema,
		logger:    logger.With("component", "tagger"),
	}, nil
}

// Tag requests a tagging for the unit. Accumulated critic feedback from
// earlier attempts, oldest first, is folded into the prompt so the
// oracle sees everything already found wrong.
func (t *Tagger) Tag(ctx context.Context, unit corpus.SentenceUnit, feedback []string) ([]corpus.TaggedToken, error) {
	prompt := t.buildPrompt(unit.Text, feedback)

	raw, err := t.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("tagging %s: %w", unit.Key(), err)
	}

	tokens, err := t.parse(raw)
	if err != nil {
		return nil, err
	}
	if err := t.validate(unit.Text, tokens); err != nil {
		return nil, err
	}

	t.logger.Debug("tagged sentence",
		"unit", unit.Key(),
		"tokens", len(tokens),
		"feedback_items", len(feedback))
	return tokens, nil
}

func (t *Tagger) buildPrompt(sentence string, feedback []string) string {
	var b strings.Builder
	b.WriteString("You are an expert linguist annotating Tigrinya newspaper text.\n")
	b.WriteString("Assign exactly one part-of-speech tag to every token of the sentence below.\n\n")

	b.WriteString("Allowed tags (use no others):\n")
	for _, tag := range corpus.Vocabulary {
		b.WriteString("- ")
		b.WriteString(string(tag))
		b.WriteString("\n")
	}

	b.WriteString(`
Rules:
- Keep every token in its original surface form. Do not translate, transliterate, or correct spelling.
- Names of countries, cities, institutions, and people are ProperNoun. Pay particular attention to Eritrean and Ethiopian place names and political bodies.
- Ethiopic punctuation marks such as ። and ፣ are separate Punctuation tokens.
- Cover the whole sentence: concatenating your tokens in order must reproduce it.

Return ONLY a JSON array (no markdown, no commentary) of objects with
"surface" and "tag" fields, in sentence order.
`)

	if len(feedback) > 0 {
		b.WriteString("\nA reviewer rejected earlier attempts. Address every point:\n")
		for i, f := range feedback {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f)
		}
	}

	b.WriteString("\nSentence:\n")
	b.WriteString(sentence)
	b.WriteString("\n")
	return b.String()
}

// parse decodes oracle output into tokens. JSON is the primary format;
// the line-oriented word:Tag form is accepted as a fallback since some
// models drift into it despite the prompt.
func (t *Tagger) parse(raw string) ([]corpus.TaggedToken, error) {
	candidate, err := extractJSON(raw)
	if err == nil {
		var doc any
		if uErr := json.Unmarshal(candidate, &doc); uErr == nil {
			if vErr := t.schema.Validate(doc); vErr != nil {
				return nil, NewError(KindMalformed, fmt.Errorf("tagging does not match schema: %w", vErr))
			}
			var tokens []corpus.TaggedToken
			if uErr := json.Unmarshal(candidate, &tokens); uErr != nil {
				return nil, NewError(KindMalformed, uErr)
			}
			return tokens, nil
		}
	}

	tokens, lineErr := parseColonLines(raw)
	if lineErr != nil {
		return nil, NewError(KindMalformed,
			fmt.Errorf("response is neither valid JSON nor word:Tag lines: %w", lineErr))
	}
	return tokens, nil
}

// parseColonLines handles the "word:Tag" per-line fallback format.
func parseColonLines(raw string) ([]corpus.TaggedToken, error) {
	var tokens []corpus.TaggedToken
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		// Split on the LAST colon: Tigrinya surfaces may themselves
		// contain colon-like marks, tags never do.
		idx := strings.LastIndex(line, ":")
		if idx <= 0 || idx == len(line)-1 {
			return nil, fmt.Errorf("line %q has no word:Tag separator", line)
		}
		surface := strings.TrimSpace(line[:idx])
		tag := corpus.Tag(strings.TrimSpace(line[idx+1:]))
		if surface == "" {
			return nil, fmt.Errorf("line %q has empty surface", line)
		}
		tokens = append(tokens, corpus.TaggedToken{Surface: surface, Tag: tag})
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no taggable lines")
	}
	return tokens, nil
}

// validate enforces the structural contract on a parsed tagging.
func (t *Tagger) validate(sentence string, tokens []corpus.TaggedToken) error {
	if len(tokens) == 0 {
		return NewError(KindMalformed, fmt.Errorf("empty tagging"))
	}
	for _, tok := range tokens {
		if !corpus.ValidTag(tok.Tag) {
			return NewError(KindMalformed, fmt.Errorf("unknown tag %q on %q", tok.Tag, tok.Surface))
		}
		if !t.validator.IsAdmissibleToken(tok.Surface) {
			return NewError(KindScriptViolation, fmt.Errorf("surface %q is not Tigrinya", tok.Surface))
		}
	}
	if got, want := corpus.JoinSurfaces(tokens), corpus.CollapseWhitespace(sentence); got != want {
		return NewError(KindRoundTripMismatch,
			fmt.Errorf("tokens reconstruct %q, sentence is %q", got, want))
	}
	return nil
}

// extractJSON pulls a JSON document out of model output, recovering from
// markdown code fences and surrounding prose.
func extractJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if start := strings.Index(content, "["); start >= 0 {
		if end := strings.LastIndex(content, "]"); end > start {
			candidates = append(candidates, content[start:end+1])
		}
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, fmt.Errorf("no JSON document found")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func compileOutputSchema() (*jsonschema.Schema, error) {
	tags := make([]string, len(corpus.Vocabulary))
	for i, t := range corpus.Vocabulary {
		tags[i] = string(t)
	}
	doc := map[string]any{
		"type":     "array",
		"minItems": 1,
		"items": map[string]any{
			"type":                 "object",
			"required":             []string{"surface", "tag"},
			"additionalProperties": false,
			"properties": map[string]any{
				"surface": map[string]any{"type": "string", "minLength": 1},
				"tag":     map[string]any{"type": "string", "enum": tags},
			},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tagging.json", bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("tagging.json")
}
