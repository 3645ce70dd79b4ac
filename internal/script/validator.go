// Package script validates that text is admissible Ge'ez-script content.
// Every downstream stage uses it as a gate: the normalizer to decide whether
// anything survived cleaning, the segmenter to reject degenerate fragments,
// and the tagger to reject hallucinated surface forms.
package script

import (
	"strings"
	"unicode"
)

// DefaultForeignThreshold is the maximum tolerated fraction of foreign-script
// characters. Near-zero: foreign leakage rejects the unit.
const DefaultForeignThreshold = 0.05

// Validator is a pure predicate over text spans. The zero value is not
// usable; construct with NewValidator.
type Validator struct {
	foreignThreshold float64
}

// NewValidator returns a validator with the given foreign-character
// threshold. A non-positive threshold falls back to the default.
func NewValidator(foreignThreshold float64) *Validator {
	if foreignThreshold <= 0 {
		foreignThreshold = DefaultForeignThreshold
	}
	return &Validator{foreignThreshold: foreignThreshold}
}

// IsAdmissible reports whether text is admissible native-script content:
// non-empty after trimming, contains at least one Ethiopic letter, and the
// foreign-character fraction does not exceed the threshold.
func (v *Validator) IsAdmissible(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if CountEthiopic(trimmed) == 0 {
		// Solely punctuation, digits, or foreign text.
		return false
	}
	return v.foreignFraction(trimmed) <= v.foreignThreshold
}

// IsAdmissibleToken reports whether a single surface form is admissible.
// Unlike IsAdmissible it allows pure punctuation and digit tokens, since a
// tagging legitimately contains them; it still rejects foreign-script
// letters and empty strings.
func (v *Validator) IsAdmissibleToken(token string) bool {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if isForeign(r) {
			return false
		}
	}
	return true
}

// foreignFraction computes the share of foreign characters among all
// non-space characters.
func (v *Validator) foreignFraction(text string) float64 {
	total := 0
	foreign := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isForeign(r) {
			foreign++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(foreign) / float64(total)
}

// IsEthiopic reports whether r is an Ethiopic letter or syllable, including
// the Ethiopic Supplement block.
func IsEthiopic(r rune) bool {
	switch {
	case r >= 0x1200 && r <= 0x135A: // Ethiopic syllables and combining marks
		return true
	case r >= 0x1380 && r <= 0x139F: // Ethiopic Supplement
		return true
	case r >= 0x2D80 && r <= 0x2DDF: // Ethiopic Extended
		return true
	}
	return false
}

// IsEthiopicPunct reports whether r is Ethiopic punctuation (wordspace,
// full stop, comma, question mark, ...) or an Ethiopic numeral.
func IsEthiopicPunct(r rune) bool {
	return r >= 0x1360 && r <= 0x137C
}

// isForeign reports whether r falls outside the admissible classes:
// Ethiopic letters, Ethiopic punctuation and numerals, ASCII/general
// punctuation, and digits.
func isForeign(r rune) bool {
	if IsEthiopic(r) || IsEthiopicPunct(r) {
		return false
	}
	if unicode.IsDigit(r) {
		return false
	}
	if unicode.IsPunct(r) || unicode.IsSymbol(r) {
		return false
	}
	if unicode.IsSpace(r) {
		return false
	}
	return true
}

// CountEthiopic returns the number of Ethiopic letters in text.
func CountEthiopic(text string) int {
	n := 0
	for _, r := range text {
		if IsEthiopic(r) {
			n++
		}
	}
	return n
}
