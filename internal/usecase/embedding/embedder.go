// Package embedding holds the embedding policy for documents and queries:
// blank input short-circuits to a zero vector, provider failures degrade
// to a zero vector while still reporting the cause.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/circulab/pubrag/internal/domain"
)

// DocumentEmbedder turns documents and free-text queries into vectors of
// a fixed dimensionality.
type DocumentEmbedder struct {
	inner      domain.Embedder
	vectorSize int
	logger     *zap.Logger
}

// New creates a document embedder over a provider.
func New(inner domain.Embedder, vectorSize int, logger *zap.Logger) *DocumentEmbedder {
	return &DocumentEmbedder{
		inner:      inner,
		vectorSize: vectorSize,
		logger:     logger,
	}
}

// EmbedText embeds one text. Blank input returns a zero vector without
// calling the provider. A provider failure also returns a zero vector so
// an index batch keeps its shape, but the error is reported alongside so
// the caller can count the degradation instead of silently storing it.
func (e *DocumentEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return e.zeroVector(), nil
	}

	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("embedding failed, degrading to zero vector", zap.Error(err))
		return e.zeroVector(), err
	}

	if len(result.Embedding) != e.vectorSize {
		err := fmt.Errorf("provider returned %d dimensions, expected %d",
			len(result.Embedding), e.vectorSize)
		e.logger.Warn("embedding dimensionality mismatch", zap.Error(err))
		return e.zeroVector(), err
	}

	return result.Embedding, nil
}

// EmbedDocument embeds the document's concatenated title, summary and body.
func (e *DocumentEmbedder) EmbedDocument(ctx context.Context, doc domain.Document) ([]float32, error) {
	return e.EmbedText(ctx, doc.EmbeddingText())
}

// VectorSize reports the configured embedding dimensionality.
func (e *DocumentEmbedder) VectorSize() int {
	return e.vectorSize
}

func (e *DocumentEmbedder) zeroVector() []float32 {
	return make([]float32, e.vectorSize)
}
