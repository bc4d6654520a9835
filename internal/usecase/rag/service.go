// Package rag composes extraction, embedding, storage and answer
// generation into the index and query pipelines.
package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/circulab/pubrag/internal/domain"
	"github.com/circulab/pubrag/internal/extractor"
	"github.com/circulab/pubrag/internal/metrics"
	"github.com/circulab/pubrag/internal/usecase/responder"
)

const defaultQueryLimit = 3

// QueryOutput is the result of one query pipeline run. Documents always
// carries the retrieved list, even when no answer was generated.
type QueryOutput struct {
	Query     string
	Answer    string
	Documents []domain.QueryResult
}

// Service is the orchestrator over the pipeline collaborators. Stateless
// across calls.
type Service struct {
	store    VectorStore
	embedder Embedder
	answerer Answerer
	files    FileSource
	api      APISource
	logger   *zap.Logger
}

// New creates the orchestrator.
func New(
	store VectorStore,
	embedder Embedder,
	answerer Answerer,
	files FileSource,
	api APISource,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		answerer: answerer,
		files:    files,
		api:      api,
		logger:   logger,
	}
}

// IndexRecords runs the index pipeline over a record batch: extract,
// embed, then one bulk upsert. Records without any identifier are skipped
// with a warning. Embedding failures degrade to zero vectors and are
// counted, not fatal. Returns the number of documents written.
func (s *Service) IndexRecords(ctx context.Context, records []domain.RawPublication) (int, error) {
	docs := make([]domain.Document, 0, len(records))
	for _, doc := range extractor.ExtractAll(records) {
		if doc.ID == "" {
			s.logger.Warn("skipping record without identifier", zap.String("title", doc.Title))
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, 0, len(docs))
	degraded := 0
	for _, doc := range docs {
		vec, err := s.embedder.EmbedDocument(ctx, doc)
		if err != nil {
			degraded++
			s.logger.Warn("document embedded as zero vector",
				zap.String("id", doc.ID), zap.Error(err))
		}
		vectors = append(vectors, vec)
	}
	if degraded > 0 {
		s.logger.Warn("index batch partially degraded",
			zap.Int("degraded", degraded), zap.Int("total", len(docs)))
	}

	if err := s.store.UpsertMany(ctx, docs, vectors); err != nil {
		return 0, fmt.Errorf("upsert batch: %w", err)
	}

	s.logger.Info("indexed documents", zap.Int("count", len(docs)), zap.Int("degraded", degraded))
	return len(docs), nil
}

// IndexFromFile loads a local JSON export and indexes its records.
func (s *Service) IndexFromFile(ctx context.Context, path string) (int, error) {
	records, err := s.files.Fetch(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("fetch from file: %w", err)
	}

	n, err := s.IndexRecords(ctx, records)
	if err != nil {
		return 0, err
	}
	metrics.DocumentsIndexedTotal.WithLabelValues("file").Add(float64(n))
	return n, nil
}

// IndexFromAPI fetches up to limit records from the publications API and
// indexes them.
func (s *Service) IndexFromAPI(ctx context.Context, limit int) (int, error) {
	records, err := s.api.Fetch(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch from api: %w", err)
	}

	n, err := s.IndexRecords(ctx, records)
	if err != nil {
		return 0, err
	}
	metrics.DocumentsIndexedTotal.WithLabelValues("api").Add(float64(n))
	return n, nil
}

// Query runs the query pipeline: embed the text, search, then generate an
// answer. A query embedding failure aborts the call; searching with a
// degraded zero vector would only return noise. Zero search results
// short-circuit to the sentinel answer without contacting the generation
// provider.
func (s *Service) Query(ctx context.Context, text string, limit int) (QueryOutput, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("embed query: %w", err)
	}

	docs, err := s.store.Search(ctx, vector, limit)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("search: %w", err)
	}

	out := QueryOutput{Query: text, Documents: docs}
	if len(docs) == 0 {
		out.Answer = responder.NoDocumentsAnswer
		return out, nil
	}

	out.Answer = s.answerer.Answer(ctx, text, docs)
	return out, nil
}

// GetDocument returns a stored document by id, nil when absent.
func (s *Service) GetDocument(ctx context.Context, id string) (*domain.QueryResult, error) {
	return s.store.GetByID(ctx, id)
}

// DeleteDocument removes one document, reporting best-effort success.
func (s *Service) DeleteDocument(ctx context.Context, id string) bool {
	return s.store.Delete(ctx, id)
}

// Reset destroys and recreates the collection.
func (s *Service) Reset(ctx context.Context) bool {
	return s.store.Reset(ctx)
}
