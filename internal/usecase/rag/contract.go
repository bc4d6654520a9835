package rag

import (
	"context"

	"github.com/circulab/pubrag/internal/domain"
)

// VectorStore is the collection contract used by the orchestrator.
type VectorStore interface {
	UpsertMany(ctx context.Context, docs []domain.Document, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, limit int) ([]domain.QueryResult, error)
	GetByID(ctx context.Context, id string) (*domain.QueryResult, error)
	Delete(ctx context.Context, id string) bool
	Reset(ctx context.Context) bool
}

// Embedder vectorizes documents and query text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedDocument(ctx context.Context, doc domain.Document) ([]float32, error)
}

// Answerer produces an answer from retrieved documents.
type Answerer interface {
	Answer(ctx context.Context, query string, docs []domain.QueryResult) string
}

// FileSource loads raw records from a local JSON export.
type FileSource interface {
	Fetch(ctx context.Context, path string) ([]domain.RawPublication, error)
}

// APISource loads raw records from the upstream publications API.
type APISource interface {
	Fetch(ctx context.Context, limit int) ([]domain.RawPublication, error)
}
