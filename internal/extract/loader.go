// Package extract loads raw documents produced by the external
// extraction collaborator. The input is a JSON array of article records;
// empty extracted text is tolerated and reported, not rejected.
package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/tsegaimerhawi/tigrinya-agent/internal/corpus"
)

// LoadDocuments reads a JSON array of raw documents from path, in file
// order. Records without an id get a generated one so every document is
// addressable downstream.
func LoadDocuments(path string, logger *slog.Logger) ([]corpus.RawDocument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents file: %w", err)
	}

	var docs []corpus.RawDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		// Some extractors write one object instead of an array.
		var single corpus.RawDocument
		if sErr := json.Unmarshal(data, &single); sErr != nil {
			return nil, fmt.Errorf("failed to parse documents file %s: %w", path, err)
		}
		docs = []corpus.RawDocument{single}
	}

	empty := 0
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		if docs[i].ExtractedText == "" {
			docs[i].ExtractionStatus = corpus.ExtractionEmpty
			empty++
		} else if docs[i].ExtractionStatus == "" {
			docs[i].ExtractionStatus = corpus.ExtractionOK
		}
	}

	logger.Info("documents loaded",
		"path", path,
		"documents", len(docs),
		"empty", empty)
	return docs, nil
}
