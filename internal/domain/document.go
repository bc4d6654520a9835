package domain

import "strings"

// KeyPrefix namespaces every key the service writes to the database.
const KeyPrefix = "pubrag:"

// Document is the canonical flat form of a publication after extraction.
// All text fields default to "" and Metadata carries only enrichment keys
// that were present in the source record.
type Document struct {
	ID       string
	Title    string
	Summary  string
	Body     string
	Metadata map[string]any
}

// EmbeddingText joins title, summary, and body into the single string that
// is vectorized for this document. Empty parts are skipped.
func (d Document) EmbeddingText() string {
	parts := make([]string, 0, 3)
	if d.Title != "" {
		parts = append(parts, d.Title)
	}
	if d.Summary != "" {
		parts = append(parts, d.Summary)
	}
	if d.Body != "" {
		parts = append(parts, d.Body)
	}
	return strings.Join(parts, " ")
}

// QueryResult is a single retrieval hit. Score is cosine similarity,
// higher means more similar. Ephemeral, never persisted.
type QueryResult struct {
	ID       string
	Score    float64
	Title    string
	Summary  string
	Body     string
	Metadata map[string]any
}
