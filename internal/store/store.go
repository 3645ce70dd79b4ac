// Package store persists refined records in SQLite. The (document_id,
// sentence_index) primary key makes saves idempotent, which is what lets
// a batch run resume without re-invoking the oracle for finished units.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	publication_date TEXT NOT NULL DEFAULT '',
	extraction_status TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS refined_records (
	document_id     TEXT NOT NULL,
	sentence_index  INTEGER NOT NULL,
	article_id      TEXT NOT NULL,
	text            TEXT NOT NULL,
	normalized_date TEXT NOT NULL,
	topic_summary   TEXT NOT NULL,
	tagged_tokens   TEXT NOT NULL,
	acceptance_path TEXT NOT NULL,
	attempts        INTEGER NOT NULL,
	word_count      INTEGER NOT NULL,
	refined_at      TEXT NOT NULL,
	PRIMARY KEY (document_id, sentence_index)
);

CREATE INDEX IF NOT EXISTS idx_refined_article ON refined_records(article_id);
`

// Store is a SQLite-backed record store. Safe for concurrent use; the
// database/sql pool serializes access.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path. ":memory:" gives
// an ephemeral store for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	// modernc's driver does not support concurrent writers on one
	// connection pool; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, logger: logger.With("component", "store")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveDocument upserts document metadata.
func (s *Store) SaveDocument(ctx context.Context, doc corpus.RawDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, source_url, publication_date, extraction_status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source_url = excluded.source_url,
			publication_date = excluded.publication_date,
			extraction_status = excluded.extraction_status`,
		doc.ID, doc.Title, doc.SourceURL, doc.PublicationDateRaw, string(doc.ExtractionStatus))
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	return nil
}

// SaveRefined persists one refined record. Saving the same (document,
// sentence) twice replaces the earlier row, so the store holds at most
// one record per unit.
func (s *Store) SaveRefined(ctx context.Context, record corpus.RefinedRecord) error {
	tokens, err := json.Marshal(record.TaggedTokens)
	if err != nil {
		return fmt.Errorf("failed to encode tagging for %s: %w", record.ArticleID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO refined_records
			(document_id, sentence_index, article_id, text, normalized_date,
			 topic_summary, tagged_tokens, acceptance_path, attempts, word_count, refined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, sentence_index) DO UPDATE SET
			article_id = excluded.article_id,
			text = excluded.text,
			normalized_date = excluded.normalized_date,
			topic_summary = excluded.topic_summary,
			tagged_tokens = excluded.tagged_tokens,
			acceptance_path = excluded.acceptance_path,
			attempts = excluded.attempts,
			word_count = excluded.word_count,
			refined_at = excluded.refined_at`,
		record.DocumentID, record.SentenceIndex, record.ArticleID, record.Text,
		record.NormalizedDate, record.TopicSummary, string(tokens),
		string(record.AcceptancePath), record.Attempts, record.WordCount, record.RefinedAt)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.ArticleID, err)
	}

	s.logger.Debug("record saved",
		"document", record.DocumentID,
		"index", record.SentenceIndex,
		"article_id", record.ArticleID)
	return nil
}

// HasRefined reports whether a unit already has a refined record.
func (s *Store) HasRefined(ctx context.Context, documentID string, sentenceIndex int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM refined_records WHERE document_id = ? AND sentence_index = ?`,
		documentID, sentenceIndex).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s:%d: %w", documentID, sentenceIndex, err)
	}
	return true, nil
}

// ListByDocument returns a document's refined records in sentence order.
func (s *Store) ListByDocument(ctx context.Context, documentID string) ([]corpus.RefinedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, sentence_index, article_id, text, normalized_date,
		       topic_summary, tagged_tokens, acceptance_path, attempts, word_count, refined_at
		FROM refined_records
		WHERE document_id = ?
		ORDER BY sentence_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records for %s: %w", documentID, err)
	}
	defer rows.Close()

	var records []corpus.RefinedRecord
	for rows.Next() {
		var r corpus.RefinedRecord
		var tokens, path string
		if err := rows.Scan(&r.DocumentID, &r.SentenceIndex, &r.ArticleID, &r.Text,
			&r.NormalizedDate, &r.TopicSummary, &tokens, &path,
			&r.Attempts, &r.WordCount, &r.RefinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(tokens), &r.TaggedTokens); err != nil {
			return nil, fmt.Errorf("failed to decode tagging for %s: %w", r.ArticleID, err)
		}
		r.AcceptancePath = corpus.AcceptancePath(path)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Counts summarizes stored records.
type Counts struct {
	Documents int `json:"documents"`
	Records   int `json:"records"`
	Accepted  int `json:"accepted"`
	Fallback  int `json:"fallback"`
}

// Summary reports store-wide counts.
func (s *Store) Summary(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			COUNT(*),
			COUNT(*) FILTER (WHERE acceptance_path != ?),
			COUNT(*) FILTER (WHERE acceptance_path = ?)
		FROM refined_records`,
		string(corpus.FallbackBestEffort), string(corpus.FallbackBestEffort)).
		Scan(&c.Documents, &c.Records, &c.Accepted, &c.Fallback)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to summarize store: %w", err)
	}
	return c, nil
}
