package refiner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/oracle"
)

func testUnit() corpus.SentenceUnit {
	return corpus.SentenceUnit{DocumentID: "doc-1", Index: 2, Text: "ኤርትራ ሓዳስ ዓመት ጀሚራ።"}
}

func testDoc() corpus.RawDocument {
	return corpus.RawDocument{ID: "doc-1", PublicationDateRaw: "15/01/2024"}
}

func testTokens() []corpus.TaggedToken {
	return []corpus.TaggedToken{
		{Surface: "ኤርትራ", Tag: corpus.TagProperNoun},
		{Surface: "ሓዳስ", Tag: corpus.TagAdjective},
		{Surface: "ዓመት", Tag: corpus.TagNoun},
		{Surface: "ጀሚራ", Tag: corpus.TagVerb},
		{Surface: "።", Tag: corpus.TagPunctuation},
	}
}

func TestRefineBuildsRecord(t *testing.T) {
	r := New(oracle.NewMock("ሓዳስ ዓመት ኣብ ኤርትራ"), slog.Default())

	record, err := r.Refine(context.Background(), testUnit(), testDoc(), testTokens(),
		corpus.AcceptedOnAttempt(1), 1)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}

	if record.ArticleID != corpus.ArticleID("doc-1", 2) {
		t.Errorf("ArticleID = %q", record.ArticleID)
	}
	if record.NormalizedDate != "2024-01-15" {
		t.Errorf("NormalizedDate = %q, want 2024-01-15", record.NormalizedDate)
	}
	if record.TopicSummary != "ሓዳስ ዓመት ኣብ ኤርትራ" {
		t.Errorf("TopicSummary = %q", record.TopicSummary)
	}
	if record.AcceptancePath != corpus.AcceptedOnAttempt(1) || record.Attempts != 1 {
		t.Errorf("path = %q attempts = %d", record.AcceptancePath, record.Attempts)
	}
	if record.WordCount != 5 {
		t.Errorf("WordCount = %d, want 5", record.WordCount)
	}
	if record.RefinedAt == "" {
		t.Error("RefinedAt is empty")
	}
}

func TestRefineDeterministicArticleID(t *testing.T) {
	r := New(nil, slog.Default())

	a, err := r.Refine(context.Background(), testUnit(), testDoc(), testTokens(),
		corpus.AcceptedOnAttempt(1), 1)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	b, err := r.Refine(context.Background(), testUnit(), testDoc(), testTokens(),
		corpus.AcceptedOnAttempt(2), 2)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if a.ArticleID != b.ArticleID {
		t.Errorf("re-run changed article id: %q vs %q", a.ArticleID, b.ArticleID)
	}
}

func TestRefineUnknownDate(t *testing.T) {
	r := New(nil, slog.Default())
	doc := testDoc()
	doc.PublicationDateRaw = "no date here"

	record, err := r.Refine(context.Background(), testUnit(), doc, testTokens(),
		corpus.FallbackBestEffort, 3)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if record.NormalizedDate != UnknownDate {
		t.Errorf("NormalizedDate = %q, want %q", record.NormalizedDate, UnknownDate)
	}
}

func TestRefineEmptyTagging(t *testing.T) {
	r := New(nil, slog.Default())

	// An accepted tagging is never empty; an empty fallback tagging is a
	// legitimate record of a unit no attempt ever parsed.
	if _, err := r.Refine(context.Background(), testUnit(), testDoc(), nil,
		corpus.AcceptedOnAttempt(1), 1); err == nil {
		t.Fatal("Refine succeeded with an empty accepted tagging")
	}

	record, err := r.Refine(context.Background(), testUnit(), testDoc(), nil,
		corpus.FallbackBestEffort, 3)
	if err != nil {
		t.Fatalf("Refine on fallback path: %v", err)
	}
	if record.AcceptancePath != corpus.FallbackBestEffort {
		t.Errorf("path = %q, want fallback-best-effort", record.AcceptancePath)
	}
	if record.WordCount != 0 || len(record.TaggedTokens) != 0 {
		t.Errorf("empty fallback record carries tokens: %+v", record)
	}
	if record.TopicSummary == "" {
		t.Error("summary is empty")
	}
}

func TestSummaryFallbackOnOracleFailure(t *testing.T) {
	mock := oracle.NewMock()
	mock.Err = errors.New("boom")
	r := New(mock, slog.Default())

	record, err := r.Refine(context.Background(), testUnit(), testDoc(), testTokens(),
		corpus.AcceptedOnAttempt(1), 1)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if record.TopicSummary == "" {
		t.Fatal("fallback summary is empty")
	}
	if !strings.Contains(record.TopicSummary, "ኤርትራ") {
		t.Errorf("fallback summary %q does not lead with the priority entity", record.TopicSummary)
	}
}

func TestSummaryFallbackOnBadWordCount(t *testing.T) {
	// A one-word oracle reply is outside the 3-5 word contract.
	r := New(oracle.NewMock("ዜና"), slog.Default())

	record, err := r.Refine(context.Background(), testUnit(), testDoc(), testTokens(),
		corpus.AcceptedOnAttempt(1), 1)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if record.TopicSummary == "ዜና" {
		t.Error("undersized oracle summary was used verbatim")
	}
}

func TestFallbackSummaryWithoutNouns(t *testing.T) {
	tokens := []corpus.TaggedToken{
		{Surface: "ጀሚራ", Tag: corpus.TagVerb},
		{Surface: "ሓዳስ", Tag: corpus.TagAdjective},
		{Surface: "።", Tag: corpus.TagPunctuation},
	}
	summary := fallbackSummary(tokens)
	if summary == "" {
		t.Fatal("summary is empty")
	}
	if strings.Contains(summary, "።") {
		t.Errorf("summary %q contains punctuation", summary)
	}
}
