package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrBatchMismatch signals a document/vector batch length mismatch.
	ErrBatchMismatch = errors.New("documents and vectors must have the same length")
	// ErrInvalidRequest signals a malformed caller request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals an LLM provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrSourceUnavailable signals that the upstream publication source
	// could not be read.
	ErrSourceUnavailable = errors.New("publication source unavailable")
)
