// Package vectorstore persists document vectors and payloads in a single
// named collection backed by RediSearch hashes with an HNSW vector index.
package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/circulab/pubrag/internal/db"
	"github.com/circulab/pubrag/internal/domain"
)

// store is the consumer interface for the vector collection (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo owns the vector collection. All documents live under one key
// prefix with one FT index over it.
type Repo struct {
	store      store
	logger     *zap.Logger
	collection string
	vectorSize int
	hnsw       HNSWConfig
}

// New creates the vector store for a named collection.
func New(s store, logger *zap.Logger, collection string, vectorSize int) *Repo {
	return &Repo{
		store:      s,
		logger:     logger,
		collection: collection,
		vectorSize: vectorSize,
		hnsw:       HNSWConfig{M: 16, EFConstruct: 200},
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureCollection creates the collection's search index when absent.
// Safe to call repeatedly; a concurrent create by another instance is not
// an error.
func (r *Repo) EnsureCollection(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName(), err)
	}
	if exists {
		return nil
	}

	if err := r.store.CreateIndex(ctx, r.indexDefinition()); err != nil {
		if isIndexExists(err) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", r.indexName(), err)
	}

	r.logger.Info("created vector collection",
		zap.String("collection", r.collection),
		zap.Int("vector_size", r.vectorSize),
	)
	return nil
}

// UpsertOne writes or overwrites a single document with its vector.
func (r *Repo) UpsertOne(ctx context.Context, doc domain.Document, vector []float32) error {
	fields, err := buildHashFields(doc, vector)
	if err != nil {
		return err
	}
	key := r.docKey(doc.ID)
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// UpsertMany writes a parallel batch of documents and vectors in one
// pipelined call. The batch lengths must match; nothing is written
// otherwise.
func (r *Repo) UpsertMany(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("%w: %d documents, %d vectors",
			domain.ErrBatchMismatch, len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(docs))
	for i, doc := range docs {
		fields, err := buildHashFields(doc, vectors[i])
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: r.docKey(doc.ID), Fields: fields})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset batch of %d: %w", len(items), err)
	}
	return nil
}

// Search returns up to limit documents ordered by descending similarity
// to the query vector. An empty collection yields an empty slice.
func (r *Repo) Search(ctx context.Context, vector []float32, limit int) ([]domain.QueryResult, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       vector,
		K:            limit,
		ReturnFields: []string{fieldTitle, fieldSummary, fieldBody, fieldMetadata, fieldScore},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search %s: %w", r.indexName(), err)
	}

	results := make([]domain.QueryResult, 0, len(res.Entries))
	for _, entry := range res.Entries {
		qr := parseHashFields(entry.Fields)
		qr.ID = r.docID(entry.Key)
		qr.Score = entry.Score
		results = append(results, qr)
	}
	return results, nil
}

// GetByID performs a point lookup. An absent document yields (nil, nil).
func (r *Repo) GetByID(ctx context.Context, id string) (*domain.QueryResult, error) {
	key := r.docKey(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	qr := parseHashFields(fields)
	qr.ID = id
	return &qr, nil
}

// Delete removes one document. Best-effort: failures are logged and
// reported as false, an absent document also reports false.
func (r *Repo) Delete(ctx context.Context, id string) bool {
	key := r.docKey(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		r.logger.Warn("delete lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !exists {
		return false
	}

	if err := r.store.Del(ctx, key); err != nil {
		r.logger.Warn("delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Reset destroys every document in the collection and recreates the
// empty index. Best-effort: failures are logged and reported as false.
func (r *Repo) Reset(ctx context.Context) bool {
	keys, err := r.store.Scan(ctx, r.keyPattern())
	if err != nil {
		r.logger.Error("reset scan failed", zap.String("collection", r.collection), zap.Error(err))
		return false
	}
	if len(keys) > 0 {
		if err := r.store.DelMulti(ctx, keys); err != nil {
			r.logger.Error("reset delete failed", zap.String("collection", r.collection), zap.Error(err))
			return false
		}
	}

	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !isIndexNotFound(err) {
		r.logger.Error("reset drop index failed", zap.String("index", r.indexName()), zap.Error(err))
		return false
	}

	if err := r.store.CreateIndex(ctx, r.indexDefinition()); err != nil && !isIndexExists(err) {
		r.logger.Error("reset create index failed", zap.String("index", r.indexName()), zap.Error(err))
		return false
	}

	r.logger.Info("collection reset",
		zap.String("collection", r.collection),
		zap.Int("deleted_keys", len(keys)),
	)
	return true
}

func (r *Repo) indexDefinition() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:        r.indexName(),
		StorageType: db.StorageHash,
		Prefixes:    []string{r.collectionPrefix()},
		Fields: []db.IndexField{
			{Name: fieldTitle, Type: db.IndexFieldText},
			{Name: fieldBody, Type: db.IndexFieldText},
			{
				Name:              fieldVector,
				Alias:             "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.vectorSize,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, r.collection)
}

func (r *Repo) collectionPrefix() string {
	return fmt.Sprintf("%s%s:", domain.KeyPrefix, r.collection)
}

func (r *Repo) keyPattern() string {
	return r.collectionPrefix() + "*"
}

func (r *Repo) docKey(id string) string {
	return r.collectionPrefix() + id
}

func (r *Repo) docID(key string) string {
	prefix := r.collectionPrefix()
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}
