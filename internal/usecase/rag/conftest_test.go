package rag

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/circulab/pubrag/internal/domain"
)

type mockVectorStore struct {
	upsertManyFn func(ctx context.Context, docs []domain.Document, vectors [][]float32) error
	searchFn     func(ctx context.Context, vector []float32, limit int) ([]domain.QueryResult, error)
	getByIDFn    func(ctx context.Context, id string) (*domain.QueryResult, error)
	deleteFn     func(ctx context.Context, id string) bool
	resetFn      func(ctx context.Context) bool

	upsertCalls int
}

func (m *mockVectorStore) UpsertMany(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	m.upsertCalls++
	if m.upsertManyFn != nil {
		return m.upsertManyFn(ctx, docs, vectors)
	}
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]domain.QueryResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, limit)
	}
	return nil, nil
}

func (m *mockVectorStore) GetByID(ctx context.Context, id string) (*domain.QueryResult, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockVectorStore) Delete(ctx context.Context, id string) bool {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return false
}

func (m *mockVectorStore) Reset(ctx context.Context) bool {
	if m.resetFn != nil {
		return m.resetFn(ctx)
	}
	return true
}

type mockEmbedder struct {
	embedTextFn func(ctx context.Context, text string) ([]float32, error)
	embedDocFn  func(ctx context.Context, doc domain.Document) ([]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.embedTextFn != nil {
		return m.embedTextFn(ctx, text)
	}
	return []float32{1, 0, 0, 0}, nil
}

func (m *mockEmbedder) EmbedDocument(ctx context.Context, doc domain.Document) ([]float32, error) {
	if m.embedDocFn != nil {
		return m.embedDocFn(ctx, doc)
	}
	return []float32{1, 0, 0, 0}, nil
}

type mockAnswerer struct {
	answer string
	calls  int
}

func (m *mockAnswerer) Answer(_ context.Context, _ string, _ []domain.QueryResult) string {
	m.calls++
	return m.answer
}

type mockFileSource struct {
	fetchFn func(ctx context.Context, path string) ([]domain.RawPublication, error)
}

func (m *mockFileSource) Fetch(ctx context.Context, path string) ([]domain.RawPublication, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, path)
	}
	return nil, nil
}

type mockAPISource struct {
	fetchFn func(ctx context.Context, limit int) ([]domain.RawPublication, error)
}

func (m *mockAPISource) Fetch(ctx context.Context, limit int) ([]domain.RawPublication, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, limit)
	}
	return nil, nil
}

type testMocks struct {
	store    *mockVectorStore
	embedder *mockEmbedder
	answerer *mockAnswerer
	files    *mockFileSource
	api      *mockAPISource
}

func newTestService(t *testing.T) (*Service, *testMocks) {
	t.Helper()
	m := &testMocks{
		store:    &mockVectorStore{},
		embedder: &mockEmbedder{},
		answerer: &mockAnswerer{answer: "generated"},
		files:    &mockFileSource{},
		api:      &mockAPISource{},
	}
	svc := New(m.store, m.embedder, m.answerer, m.files, m.api, zap.NewNop())
	return svc, m
}
