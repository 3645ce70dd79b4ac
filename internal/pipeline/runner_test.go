package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/normalize"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/script"
	"github.com/tsegaimerhawi/tigrinya-agent/internal/segment"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]corpus.RefinedRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]corpus.RefinedRecord)}
}

func (m *memStore) SaveRefined(_ context.Context, record corpus.RefinedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := corpus.SentenceUnit{DocumentID: record.DocumentID, Index: record.SentenceIndex}.Key()
	m.records[key] = record
	return nil
}

func (m *memStore) HasRefined(_ context.Context, documentID string, sentenceIndex int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := corpus.SentenceUnit{DocumentID: documentID, Index: sentenceIndex}.Key()
	_, ok := m.records[key]
	return ok, nil
}

func newTestRunner(t *testing.T, store Store) (*Runner, *stubTagger, *stubCritic) {
	t.Helper()
	validator := script.NewValidator(0)
	tg := &stubTagger{fn: func(int, []string) ([]corpus.TaggedToken, error) {
		return goodTokens(), nil
	}}
	cr := &stubCritic{fn: func(int) (corpus.Critique, error) {
		return corpus.Accept(), nil
	}}
	controller := NewController(tg, cr, stubRefiner{}, fastConfig(), slog.Default())
	runner := NewRunner(
		normalize.New(normalize.DefaultConfig(), validator),
		segment.New(segment.DefaultConfig(), validator),
		controller,
		store,
		RunnerConfig{Concurrency: 2, Resume: true},
		slog.Default(),
	)
	return runner, tg, cr
}

func TestRunDocumentEndToEnd(t *testing.T) {
	store := newMemStore()
	runner, _, _ := newTestRunner(t, store)

	// One admissible sentence plus a foreign-script sentence that
	// normalization strips entirely.
	doc := corpus.RawDocument{
		ID:            "doc-1",
		ExtractedText: "ኤርትራ ሓዳስ ዓመት ኣብ ኣስመራ ጀሚራ። THE NEW YEAR BEGINS IN ASMARA",
	}

	res, err := runner.RunDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	if res.Status != corpus.ExtractionOK {
		t.Fatalf("status = %q, want ok", res.Status)
	}
	if len(res.Units) != 1 {
		t.Fatalf("got %d units, want exactly 1", len(res.Units))
	}

	u := res.Units[0]
	if u.Err != nil {
		t.Fatalf("unit failed: %v", u.Err)
	}
	if u.Record.AcceptancePath != corpus.AcceptedOnAttempt(1) {
		t.Errorf("path = %q, want accepted-on-attempt-1", u.Record.AcceptancePath)
	}
	if len(store.records) != 1 {
		t.Errorf("store holds %d records, want 1", len(store.records))
	}
}

func TestRunDocumentEmptyText(t *testing.T) {
	runner, tg, _ := newTestRunner(t, newMemStore())

	res, err := runner.RunDocument(context.Background(), corpus.RawDocument{ID: "doc-1"})
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	if res.Status != corpus.ExtractionEmpty {
		t.Errorf("status = %q, want empty", res.Status)
	}
	if len(res.Units) != 0 || tg.calls != 0 {
		t.Error("empty document reached the pipeline")
	}
}

func TestRunDocumentNoNativeText(t *testing.T) {
	runner, tg, _ := newTestRunner(t, newMemStore())

	doc := corpus.RawDocument{ID: "doc-1", ExtractedText: "ONLY FOREIGN WORDS HERE"}
	res, err := runner.RunDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	if res.Status != corpus.ExtractionNoNativeText {
		t.Errorf("status = %q, want no_native_text", res.Status)
	}
	if tg.calls != 0 {
		t.Error("fully stripped document reached the pipeline")
	}
}

func TestRunDocumentResumeSkipsRefined(t *testing.T) {
	store := newMemStore()
	runner, tg, _ := newTestRunner(t, store)

	doc := corpus.RawDocument{
		ID:            "doc-1",
		ExtractedText: "ኤርትራ ሓዳስ ዓመት ኣብ ኣስመራ ጀሚራ።",
	}

	// Seed the store as if a previous run refined the unit.
	err := store.SaveRefined(context.Background(), corpus.RefinedRecord{
		DocumentID: "doc-1", SentenceIndex: 0,
	})
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	res, err := runner.RunDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	if len(res.Units) != 1 || !res.Units[0].Skipped {
		t.Fatalf("unit was not skipped: %+v", res.Units)
	}
	if tg.calls != 0 {
		t.Errorf("tagger called %d times on a resumed unit, want 0", tg.calls)
	}
}

func TestRunDocumentSkipsShortUnits(t *testing.T) {
	store := newMemStore()
	runner, tg, _ := newTestRunner(t, store)
	runner.cfg.MinRunes = 100

	doc := corpus.RawDocument{
		ID:            "doc-1",
		ExtractedText: "ኤርትራ ሓዳስ ዓመት ኣብ ኣስመራ ጀሚራ።",
	}

	res, err := runner.RunDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	if len(res.Units) != 1 || !res.Units[0].Skipped {
		t.Fatalf("short unit was not skipped: %+v", res.Units)
	}
	if tg.calls != 0 {
		t.Errorf("tagger called %d times on a skipped unit, want 0", tg.calls)
	}
	if len(store.records) != 0 {
		t.Error("skipped unit was stored")
	}
}

func TestRunDocumentPreservesUnitOrder(t *testing.T) {
	runner, _, _ := newTestRunner(t, newMemStore())

	doc := corpus.RawDocument{
		ID: "doc-1",
		ExtractedText: "ኤርትራ ሓዳስ ዓመት ኣብ ኣስመራ ጀሚራ። " +
			"መንግስቲ ሓድሽ መደብ ልምዓት ኣብ ከተማታት ኣፍሊጡ። " +
			"ተመሃሮ ኣብ ቤት ትምህርቲ ሓድሽ ዓመተ ትምህርቲ ጀሚሮም።",
	}

	res, err := runner.RunDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("RunDocument: %v", err)
	}
	if len(res.Units) != 3 {
		t.Fatalf("got %d units, want 3", len(res.Units))
	}
	for i, u := range res.Units {
		if u.Unit.Index != i {
			t.Errorf("result %d carries unit index %d", i, u.Unit.Index)
		}
		if u.Err != nil {
			t.Errorf("unit %d failed: %v", i, u.Err)
		}
	}
}

func TestRunBatchSummary(t *testing.T) {
	runner, _, _ := newTestRunner(t, newMemStore())

	docs := []corpus.RawDocument{
		{ID: "doc-1", ExtractedText: "ኤርትራ ሓዳስ ዓመት ኣብ ኣስመራ ጀሚራ።"},
		{ID: "doc-2", ExtractedText: ""},
		{ID: "doc-3", ExtractedText: "NOTHING NATIVE AT ALL"},
	}

	summary, results, err := runner.RunBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Documents != 3 {
		t.Errorf("Documents = %d, want 3", summary.Documents)
	}
	if summary.EmptyDocs != 2 {
		t.Errorf("EmptyDocs = %d, want 2", summary.EmptyDocs)
	}
	if summary.Units != 1 || summary.Refined != 1 || summary.Accepted != 1 {
		t.Errorf("summary = %+v, want one accepted refined unit", summary)
	}
	if len(results) != 3 {
		t.Errorf("got %d document results, want 3", len(results))
	}
}
