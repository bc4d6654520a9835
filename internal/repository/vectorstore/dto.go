package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/circulab/pubrag/internal/db"
	"github.com/circulab/pubrag/internal/domain"
)

// Hash field layout of one stored document. The metadata map is kept as a
// single JSON blob; only title, body and the vector are indexed.
const (
	fieldTitle    = "title"
	fieldSummary  = "summary"
	fieldBody     = "body"
	fieldMetadata = "metadata"
	fieldVector   = "__vector"

	// fieldScore is the distance field FT.SEARCH derives for the @vector
	// attribute; it must be listed in RETURN or scores come back 0.
	fieldScore = "__vector_score"
)

// buildHashFields flattens a document plus its vector into HSET fields.
func buildHashFields(doc domain.Document, vector []float32) (map[string]string, error) {
	fields := map[string]string{
		fieldTitle:   doc.Title,
		fieldSummary: doc.Summary,
		fieldBody:    doc.Body,
		fieldVector:  vectorToBytes(vector),
	}

	meta := doc.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
	}
	fields[fieldMetadata] = string(data)

	return fields, nil
}

// parseHashFields rebuilds the payload part of a query result from hash
// fields. Malformed metadata degrades to an empty map.
func parseHashFields(fields map[string]string) domain.QueryResult {
	qr := domain.QueryResult{
		Title:    fields[fieldTitle],
		Summary:  fields[fieldSummary],
		Body:     fields[fieldBody],
		Metadata: map[string]any{},
	}
	if raw := fields[fieldMetadata]; raw != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(raw), &meta); err == nil && meta != nil {
			qr.Metadata = meta
		}
	}
	return qr
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func isIndexExists(err error) bool {
	return errors.Is(err, db.ErrIndexExists)
}

func isIndexNotFound(err error) bool {
	return errors.Is(err, db.ErrIndexNotFound)
}
