// Package responder builds a bounded context window from retrieved
// documents and asks the generation provider for an answer grounded only
// in that context.
package responder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/circulab/pubrag/internal/domain"
)

// NoDocumentsAnswer is returned when retrieval yields nothing; the
// generation provider is not contacted in that case.
const NoDocumentsAnswer = "No relevant documents were found for your query."

const systemInstruction = "You are a specialized assistant that answers questions based solely on the provided information."

// maxBodyRunes caps each document body inside the prompt. This bounds
// prompt size, it is not a relevance cutoff.
const maxBodyRunes = 1000

// Responder formats retrieved documents into a prompt and delegates
// generation.
type Responder struct {
	generator domain.Generator
	logger    *zap.Logger
}

// New creates a responder over a generation provider.
func New(generator domain.Generator, logger *zap.Logger) *Responder {
	return &Responder{
		generator: generator,
		logger:    logger,
	}
}

// Answer produces an answer for the query from the retrieved documents.
// An empty document list short-circuits to NoDocumentsAnswer. A provider
// failure is folded into the answer text rather than returned, so the
// query pipeline always yields a displayable string.
func (r *Responder) Answer(ctx context.Context, query string, docs []domain.QueryResult) string {
	if len(docs) == 0 {
		return NoDocumentsAnswer
	}

	prompt := buildPrompt(query, docs)

	answer, err := r.generator.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		r.logger.Error("answer generation failed", zap.Error(err))
		return fmt.Sprintf("Error processing the query: %v", err)
	}
	return answer
}

func buildPrompt(query string, docs []domain.QueryResult) string {
	var b strings.Builder
	b.WriteString("Relevant information:\n\n")

	for i, doc := range docs {
		fmt.Fprintf(&b, "Document %d:\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", doc.Title)

		if doc.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", doc.Summary)
		}
		if doc.Body != "" {
			fmt.Fprintf(&b, "Content: %s\n", truncateBody(doc.Body))
		}

		b.WriteString("\n---\n\n")
	}

	return fmt.Sprintf(
		"Based on the following information, answer this query clearly and concisely:\n\nQuery: %s\n\n%s\nAnswer:",
		query, b.String(),
	)
}

// truncateBody cuts the body to maxBodyRunes runes, marking the cut with
// an ellipsis.
func truncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= maxBodyRunes {
		return body
	}
	return string(runes[:maxBodyRunes]) + "..."
}
