// Package corpus defines the data model shared across the annotation pipeline:
// raw documents from the extraction step, sentence units, taggings, critiques,
// and the refined records handed to storage.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ExtractionStatus reports the outcome of text extraction for a document.
type ExtractionStatus string

const (
	ExtractionOK           ExtractionStatus = "ok"
	ExtractionEmpty        ExtractionStatus = "empty"
	ExtractionNoNativeText ExtractionStatus = "no_native_text"
)

// RawDocument is one scanned newspaper article as delivered by the
// extraction collaborator. Immutable once created.
type RawDocument struct {
	ID                 string           `json:"id"`
	Title              string           `json:"news_title"`
	SourceURL          string           `json:"article_url"`
	PublicationDateRaw string           `json:"publication_date"`
	PDFFilename        string           `json:"pdf_filename,omitempty"`
	ExtractedText      string           `json:"extracted_text"`
	ExtractionStatus   ExtractionStatus `json:"extraction_status,omitempty"`
}

// SentenceUnit is one sentence of a normalized document. Index is 0-based
// and dense within the document; order matches source order.
type SentenceUnit struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
}

// Key returns the stable (document, sentence) identity used for
// deduplication and resume.
func (u SentenceUnit) Key() string {
	return fmt.Sprintf("%s:%d", u.DocumentID, u.Index)
}

// Tag is one entry of the fixed part-of-speech vocabulary.
type Tag string

const (
	TagNoun        Tag = "Noun"
	TagProperNoun  Tag = "ProperNoun"
	TagVerb        Tag = "Verb"
	TagAdjective   Tag = "Adjective"
	TagAdverb      Tag = "Adverb"
	TagPronoun     Tag = "Pronoun"
	TagParticle    Tag = "Particle"
	TagNumeral     Tag = "Numeral"
	TagPunctuation Tag = "Punctuation"
)

// Vocabulary lists every valid tag in a stable order.
var Vocabulary = []Tag{
	TagNoun, TagProperNoun, TagVerb, TagAdjective, TagAdverb,
	TagPronoun, TagParticle, TagNumeral, TagPunctuation,
}

// ValidTag reports whether t is part of the fixed vocabulary.
func ValidTag(t Tag) bool {
	for _, v := range Vocabulary {
		if v == t {
			return true
		}
	}
	return false
}

// TaggedToken pairs a surface form with its tag.
type TaggedToken struct {
	Surface string `json:"surface"`
	Tag     Tag    `json:"tag"`
}

// JoinSurfaces concatenates surface forms with all whitespace removed.
// Comparing JoinSurfaces(tokens) against CollapseWhitespace(text) is the
// round-trip check taggings must satisfy.
func JoinSurfaces(tokens []TaggedToken) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(strings.Join(strings.Fields(t.Surface), ""))
	}
	return b.String()
}

// CollapseWhitespace removes all whitespace from text.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), "")
}

// Critique is the outcome of a Critic review: either an acceptance or an
// ordered list of deficiencies. Feedback is empty iff Accepted.
type Critique struct {
	Accepted bool     `json:"accepted"`
	Feedback []string `json:"feedback,omitempty"`
}

// Accept returns an accepting critique.
func Accept() Critique { return Critique{Accepted: true} }

// Reject returns a rejecting critique carrying the given feedback.
func Reject(feedback ...string) Critique {
	return Critique{Accepted: false, Feedback: feedback}
}

// AcceptancePath records how a unit reached its terminal state.
type AcceptancePath string

// FallbackBestEffort marks a unit that exhausted its attempts and was
// refined from the best structurally-valid tagging seen.
const FallbackBestEffort AcceptancePath = "fallback-best-effort"

// AcceptedOnAttempt returns the path for a unit accepted on attempt n.
func AcceptedOnAttempt(n int) AcceptancePath {
	return AcceptancePath(fmt.Sprintf("accepted-on-attempt-%d", n))
}

// IsFallback reports whether the path is the best-effort fallback.
func (p AcceptancePath) IsFallback() bool { return p == FallbackBestEffort }

// RefinedRecord is the immutable unit of output handed to storage.
type RefinedRecord struct {
	ArticleID      string         `json:"article_id"`
	DocumentID     string         `json:"document_id"`
	SentenceIndex  int            `json:"sentence_index"`
	Text           string         `json:"text"`
	NormalizedDate string         `json:"normalized_date"`
	TopicSummary   string         `json:"topic_summary"`
	TaggedTokens   []TaggedToken  `json:"tagged_tokens"`
	AcceptancePath AcceptancePath `json:"acceptance_path"`
	Attempts       int            `json:"attempts"`
	WordCount      int            `json:"word_count"`
	RefinedAt      string         `json:"refined_at"`
}

// ArticleID derives the stable article identifier for a sentence unit.
// It depends only on document identity and sentence index, so re-runs
// produce the same ID.
func ArticleID(documentID string, sentenceIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", documentID, sentenceIndex)))
	return "article_" + hex.EncodeToString(sum[:])[:16]
}
