// Package normalize repairs OCR and extraction artifacts in raw newspaper
// text: boilerplate lines, foreign-script leakage, layout noise, duplicated
// characters, and whitespace. Output either passes the script validator at
// document granularity or is empty (a valid, reportable outcome).
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/script"
)

// Config tunes the cleaning heuristics. The duplication-repair thresholds
// are deliberately configurable: they are empirically tuned and the most
// likely source of false corrections.
type Config struct {
	// PairDominance is the minimum fraction of a token's characters that
	// must participate in consecutive duplicate pairs before the token is
	// treated as an OCR duplication artifact. Default 0.5.
	PairDominance float64

	// MaxRepeatUnit is the longest character sequence considered as a
	// duplication unit. Default 3.
	MaxRepeatUnit int
}

// DefaultConfig returns the tuned duplication-repair defaults.
func DefaultConfig() Config {
	return Config{PairDominance: 0.5, MaxRepeatUnit: 3}
}

// Normalizer applies the cleaning steps in a fixed order. Pure and
// deterministic; safe for concurrent use.
type Normalizer struct {
	cfg       Config
	validator *script.Validator
}

// New creates a normalizer. Zero config fields fall back to defaults.
func New(cfg Config, validator *script.Validator) *Normalizer {
	if cfg.PairDominance <= 0 {
		cfg.PairDominance = 0.5
	}
	if cfg.MaxRepeatUnit <= 0 {
		cfg.MaxRepeatUnit = 3
	}
	return &Normalizer{cfg: cfg, validator: validator}
}

// Boilerplate and noise patterns. Matched structurally so new variants of
// the same shape are still caught.
var (
	// Standalone page-number lines: "ገጽ 12", "ገጻት 3", bare numbers.
	pageNumberLine = regexp.MustCompile(`(?m)^[\s>*•·-]*(?:ገጽ|ገጻት)?\s*\d+\s*$`)
	// Inline page references.
	pageNumberInline = regexp.MustCompile(`(?:ገጽ|ገጻት)\s*\d+`)
	// Price/currency tokens (Nakfa amounts).
	priceToken = regexp.MustCompile(`(?:ዋጋ\s*)?\d+(?:[.,]\d+)?\s*ናቕፋ`)
	// URLs and bare domains.
	urlToken = regexp.MustCompile(`(?:https?://|www\.)\S+`)
	// Copyright lines.
	copyrightLine = regexp.MustCompile(`(?mi)^.*(?:©|\(c\)|copyright|all rights reserved).*$`)
	// Bullet and navigation glyphs.
	bulletGlyphs = regexp.MustCompile(`[•◦▪‣·●○■□◆►▶«»]+`)
	// Runs of foreign alphabetic characters (Latin shown here covers the
	// dominant leakage; the general check below catches other scripts).
	whitespaceRun  = regexp.MustCompile(`[ \t]+`)
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
)

// Normalize runs the full cleaning sequence. It never fails on malformed
// input; a fully-stripped empty result is valid. The sequence is applied
// until a fixpoint (bounded) so the composition itself is idempotent even
// when one step's output exposes a pattern an earlier step targets. A
// residue with no Ethiopic letters left, digits and punctuation only,
// is dropped rather than passed downstream.
func (n *Normalizer) Normalize(raw string) string {
	text := raw
	for i := 0; i < 3; i++ {
		next := n.pass(text)
		if next == text {
			break
		}
		text = next
	}
	if n.validator != nil && !n.validator.IsAdmissible(text) {
		return ""
	}
	return text
}

// pass applies the five cleaning steps once, in order.
func (n *Normalizer) pass(text string) string {
	text = stripBoilerplate(text)
	text = stripForeignRuns(text)
	text = stripNoise(text)
	text = n.repairDuplication(text)
	return collapseWhitespace(text)
}

func stripBoilerplate(text string) string {
	text = urlToken.ReplaceAllString(text, " ")
	text = copyrightLine.ReplaceAllString(text, "")
	text = priceToken.ReplaceAllString(text, " ")
	text = pageNumberLine.ReplaceAllString(text, "")
	text = pageNumberInline.ReplaceAllString(text, " ")
	return text
}

// stripForeignRuns removes contiguous runs of non-Ethiopic alphabetic
// characters while preserving digits and punctuation.
func stripForeignRuns(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) && !script.IsEthiopic(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripNoise removes bullet glyphs and control characters (except line
// breaks and tabs, which the whitespace step handles).
func stripNoise(text string) string {
	text = bulletGlyphs.ReplaceAllString(text, " ")
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// repairDuplication fixes the OCR stroke-doubling artifact where a short
// character sequence is immediately repeated (e.g. "ንንኣኣሌሌ..." for a word
// whose every character was doubled). A run is collapsed only when its
// shape is consistent with duplication (even total length divisible by
// the repeat unit) and when the collapse keeps the token's Ethiopic
// content. Ambiguous runs are left untouched rather than guessed at.
func (n *Normalizer) repairDuplication(text string) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	start := 0
	inSpace := false
	flush := func(end int) {
		if start < end {
			b.WriteString(n.repairToken(text[start:end]))
		}
	}
	for i, r := range text {
		if unicode.IsSpace(r) {
			if !inSpace {
				flush(i)
				inSpace = true
				start = i
			}
		} else if inSpace {
			b.WriteString(text[start:i])
			inSpace = false
			start = i
		}
	}
	if inSpace {
		b.WriteString(text[start:])
	} else {
		flush(len(text))
	}
	return b.String()
}

func (n *Normalizer) repairToken(token string) string {
	runes := []rune(token)

	// Characters never legitimately repeat three or more times in
	// Tigrinya; such runs are always collapsed.
	runes = collapseTriples(runes)

	// Whole-token repetition of a unit of length 2..MaxRepeatUnit,
	// e.g. "ኣብኣብ" -> "ኣብ". Requires an exact even split.
	for unit := 2; unit <= n.cfg.MaxRepeatUnit; unit++ {
		if collapsed, ok := collapseUnitPairs(runes, unit); ok {
			runes = collapsed
			break
		}
	}

	// Character-level doubling dominance, the common stroke-doubling
	// shape: most characters appear as consecutive pairs.
	if pairDominance(runes) >= n.cfg.PairDominance && countPairs(runes) >= 2 {
		collapsed := dedupeConsecutive(runes)
		if script.CountEthiopic(string(runes)) == 0 || script.CountEthiopic(string(collapsed)) > 0 {
			runes = collapsed
		}
	}

	return string(runes)
}

// collapseTriples reduces any run of 3+ identical characters to one.
func collapseTriples(runes []rune) []rune {
	out := runes[:0:0]
	i := 0
	for i < len(runes) {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= 3 {
			out = append(out, runes[i])
		} else {
			out = append(out, runes[i:j]...)
		}
		i = j
	}
	return out
}

// collapseUnitPairs collapses a token composed entirely of immediately
// repeated units of the given length ("ኣብኣብሓሓ" is NOT such a token for
// unit 2; "ኣብኣብ" is). Returns ok=false for odd remainders or any group
// that is not an exact repeat; those are ambiguous and left alone.
func collapseUnitPairs(runes []rune, unit int) ([]rune, bool) {
	if unit < 2 || len(runes) < unit*2 || len(runes)%(unit*2) != 0 {
		return runes, false
	}
	var out []rune
	for i := 0; i < len(runes); i += unit * 2 {
		a := runes[i : i+unit]
		b := runes[i+unit : i+unit*2]
		for k := 0; k < unit; k++ {
			if a[k] != b[k] {
				return runes, false
			}
		}
		out = append(out, a...)
	}
	return out, true
}

// countPairs counts non-overlapping consecutive equal pairs.
func countPairs(runes []rune) int {
	pairs := 0
	for i := 0; i < len(runes)-1; {
		if runes[i] == runes[i+1] {
			pairs++
			i += 2
		} else {
			i++
		}
	}
	return pairs
}

// pairDominance is the fraction of characters participating in pairs.
func pairDominance(runes []rune) float64 {
	if len(runes) < 4 {
		return 0
	}
	return float64(countPairs(runes)*2) / float64(len(runes))
}

// dedupeConsecutive removes consecutive duplicate characters.
func dedupeConsecutive(runes []rune) []rune {
	out := runes[:1:1]
	for i := 1; i < len(runes); i++ {
		if runes[i] != runes[i-1] {
			out = append(out, runes[i])
		}
	}
	return out
}

// collapseWhitespace folds runs of spaces/tabs into single spaces and
// normalizes line breaks to paragraph boundaries (blank-line separated).
func collapseWhitespace(text string) string {
	paragraphs := paragraphBreak.Split(text, -1)
	var out []string
	for _, p := range paragraphs {
		p = strings.ReplaceAll(p, "\n", " ")
		p = whitespaceRun.ReplaceAllString(p, " ")
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// Stats summarizes what normalization did to one document.
type Stats struct {
	RawChars        int     `json:"raw_chars"`
	NormalizedChars int     `json:"normalized_chars"`
	ReductionRatio  float64 `json:"reduction_ratio"`
}

// NormalizeWithStats runs Normalize and reports size statistics.
func (n *Normalizer) NormalizeWithStats(raw string) (string, Stats) {
	cleaned := n.Normalize(raw)
	st := Stats{
		RawChars:        len([]rune(raw)),
		NormalizedChars: len([]rune(cleaned)),
	}
	if st.RawChars > 0 {
		st.ReductionRatio = 1 - float64(st.NormalizedChars)/float64(st.RawChars)
	}
	return cleaned, st
}
