package rag

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/circulab/pubrag/internal/domain"
	"github.com/circulab/pubrag/internal/usecase/responder"
)

func record(t *testing.T, raw string) domain.RawPublication {
	t.Helper()
	var rec domain.RawPublication
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return rec
}

// --- IndexRecords ---

func TestIndexRecords_Success(t *testing.T) {
	svc, m := newTestService(t)

	var gotDocs []domain.Document
	var gotVectors [][]float32
	m.store.upsertManyFn = func(_ context.Context, docs []domain.Document, vectors [][]float32) error {
		gotDocs = docs
		gotVectors = vectors
		return nil
	}

	records := []domain.RawPublication{
		record(t, `{"uuid": [{"value": "a"}], "title": [{"value": "A"}]}`),
		record(t, `{"nid": [{"value": 2}], "title": [{"value": "B"}]}`),
	}

	n, err := svc.IndexRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if m.store.upsertCalls != 1 {
		t.Errorf("upsert calls = %d, want exactly 1 bulk call", m.store.upsertCalls)
	}
	if len(gotDocs) != 2 || len(gotVectors) != 2 {
		t.Errorf("batch sizes = %d docs, %d vectors", len(gotDocs), len(gotVectors))
	}
	if gotDocs[0].ID != "a" || gotDocs[1].ID != "2" {
		t.Errorf("unexpected ids: %s, %s", gotDocs[0].ID, gotDocs[1].ID)
	}
}

func TestIndexRecords_SkipsRecordsWithoutID(t *testing.T) {
	svc, m := newTestService(t)

	var gotDocs []domain.Document
	m.store.upsertManyFn = func(_ context.Context, docs []domain.Document, _ [][]float32) error {
		gotDocs = docs
		return nil
	}

	records := []domain.RawPublication{
		record(t, `{"uuid": [{"value": "a"}]}`),
		record(t, `{"title": [{"value": "no id"}]}`),
	}

	n, err := svc.IndexRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || len(gotDocs) != 1 {
		t.Fatalf("count = %d, docs = %d, want 1", n, len(gotDocs))
	}
}

func TestIndexRecords_EmptyBatch(t *testing.T) {
	svc, m := newTestService(t)

	n, err := svc.IndexRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
	if m.store.upsertCalls != 0 {
		t.Errorf("upsert must not be called for an empty batch")
	}
}

func TestIndexRecords_DegradedEmbeddingStillIndexed(t *testing.T) {
	svc, m := newTestService(t)

	m.embedder.embedDocFn = func(_ context.Context, doc domain.Document) ([]float32, error) {
		if doc.ID == "bad" {
			return []float32{0, 0, 0, 0}, errors.New("provider down")
		}
		return []float32{1, 0, 0, 0}, nil
	}

	var gotVectors [][]float32
	m.store.upsertManyFn = func(_ context.Context, _ []domain.Document, vectors [][]float32) error {
		gotVectors = vectors
		return nil
	}

	records := []domain.RawPublication{
		record(t, `{"uuid": [{"value": "good"}]}`),
		record(t, `{"uuid": [{"value": "bad"}]}`),
	}

	n, err := svc.IndexRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if len(gotVectors) != 2 {
		t.Fatalf("vectors = %d, want 2", len(gotVectors))
	}
}

func TestIndexRecords_UpsertFailure(t *testing.T) {
	svc, m := newTestService(t)

	m.store.upsertManyFn = func(_ context.Context, _ []domain.Document, _ [][]float32) error {
		return errors.New("store down")
	}

	_, err := svc.IndexRecords(context.Background(), []domain.RawPublication{
		record(t, `{"uuid": [{"value": "a"}]}`),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

// --- IndexFromFile / IndexFromAPI ---

func TestIndexFromFile(t *testing.T) {
	svc, m := newTestService(t)

	m.files.fetchFn = func(_ context.Context, path string) ([]domain.RawPublication, error) {
		if path != "/data/pubs.json" {
			t.Errorf("path = %q", path)
		}
		return []domain.RawPublication{record(t, `{"uuid": [{"value": "a"}]}`)}, nil
	}

	n, err := svc.IndexFromFile(context.Background(), "/data/pubs.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestIndexFromFile_SourceError(t *testing.T) {
	svc, m := newTestService(t)

	m.files.fetchFn = func(_ context.Context, _ string) ([]domain.RawPublication, error) {
		return nil, errors.New("no such file")
	}

	if _, err := svc.IndexFromFile(context.Background(), "/missing.json"); err == nil {
		t.Fatal("expected error")
	}
}

func TestIndexFromAPI(t *testing.T) {
	svc, m := newTestService(t)

	m.api.fetchFn = func(_ context.Context, limit int) ([]domain.RawPublication, error) {
		if limit != 50 {
			t.Errorf("limit = %d, want 50", limit)
		}
		return []domain.RawPublication{
			record(t, `{"uuid": [{"value": "a"}]}`),
			record(t, `{"uuid": [{"value": "b"}]}`),
		}, nil
	}

	n, err := svc.IndexFromAPI(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestIndexFromAPI_SourceError(t *testing.T) {
	svc, m := newTestService(t)

	m.api.fetchFn = func(_ context.Context, _ int) ([]domain.RawPublication, error) {
		return nil, domain.ErrSourceUnavailable
	}

	_, err := svc.IndexFromAPI(context.Background(), 10)
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

// --- Query ---

func TestQuery_WithResults(t *testing.T) {
	svc, m := newTestService(t)

	retrieved := []domain.QueryResult{{ID: "1", Score: 0.9, Title: "T"}}
	m.store.searchFn = func(_ context.Context, _ []float32, limit int) ([]domain.QueryResult, error) {
		if limit != 5 {
			t.Errorf("limit = %d, want 5", limit)
		}
		return retrieved, nil
	}

	out, err := svc.Query(context.Background(), "question", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Query != "question" || out.Answer != "generated" {
		t.Errorf("out = %+v", out)
	}
	if len(out.Documents) != 1 || out.Documents[0].ID != "1" {
		t.Errorf("documents = %+v", out.Documents)
	}
	if m.answerer.calls != 1 {
		t.Errorf("answerer calls = %d, want 1", m.answerer.calls)
	}
}

func TestQuery_EmptyCollectionShortCircuits(t *testing.T) {
	svc, m := newTestService(t)

	m.store.searchFn = func(_ context.Context, _ []float32, _ int) ([]domain.QueryResult, error) {
		return nil, nil
	}

	out, err := svc.Query(context.Background(), "question", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Answer != responder.NoDocumentsAnswer {
		t.Errorf("answer = %q, want sentinel", out.Answer)
	}
	if len(out.Documents) != 0 {
		t.Errorf("documents = %+v, want empty", out.Documents)
	}
	if m.answerer.calls != 0 {
		t.Errorf("answerer must not be called with zero results")
	}
}

func TestQuery_DefaultLimit(t *testing.T) {
	svc, m := newTestService(t)

	var gotLimit int
	m.store.searchFn = func(_ context.Context, _ []float32, limit int) ([]domain.QueryResult, error) {
		gotLimit = limit
		return nil, nil
	}

	if _, err := svc.Query(context.Background(), "q", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != defaultQueryLimit {
		t.Errorf("limit = %d, want %d", gotLimit, defaultQueryLimit)
	}
}

func TestQuery_EmbeddingFailureAborts(t *testing.T) {
	svc, m := newTestService(t)

	m.embedder.embedTextFn = func(_ context.Context, _ string) ([]float32, error) {
		return []float32{0, 0, 0, 0}, domain.ErrEmbeddingProviderError
	}

	_, err := svc.Query(context.Background(), "q", 3)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("err = %v, want ErrEmbeddingProviderError", err)
	}
}

func TestQuery_SearchFailure(t *testing.T) {
	svc, m := newTestService(t)

	m.store.searchFn = func(_ context.Context, _ []float32, _ int) ([]domain.QueryResult, error) {
		return nil, errors.New("index gone")
	}

	if _, err := svc.Query(context.Background(), "q", 3); err == nil {
		t.Fatal("expected error")
	}
}

// --- Documents / Reset ---

func TestGetDocument(t *testing.T) {
	svc, m := newTestService(t)

	m.store.getByIDFn = func(_ context.Context, id string) (*domain.QueryResult, error) {
		if id != "doc-1" {
			t.Errorf("id = %q", id)
		}
		return &domain.QueryResult{ID: id, Title: "T"}, nil
	}

	got, err := svc.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Title != "T" {
		t.Errorf("got = %+v", got)
	}
}

func TestDeleteDocument(t *testing.T) {
	svc, m := newTestService(t)

	m.store.deleteFn = func(_ context.Context, id string) bool { return id == "doc-1" }

	if !svc.DeleteDocument(context.Background(), "doc-1") {
		t.Error("expected true for deletable document")
	}
	if svc.DeleteDocument(context.Background(), "other") {
		t.Error("expected false")
	}
}

func TestReset(t *testing.T) {
	svc, m := newTestService(t)

	m.store.resetFn = func(_ context.Context) bool { return true }
	if !svc.Reset(context.Background()) {
		t.Error("expected true")
	}

	m.store.resetFn = func(_ context.Context) bool { return false }
	if svc.Reset(context.Background()) {
		t.Error("expected false")
	}
}
