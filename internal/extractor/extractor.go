// Package extractor normalizes raw publication records into flat documents
// suitable for embedding and storage. Extraction is a pure transformation:
// absent or malformed fields degrade to zero values, never to an error.
package extractor

import (
	"github.com/circulab/pubrag/internal/domain"
)

// Extract maps one raw publication record to its canonical document form.
//
// The document id prefers the stable uuid field; when absent it falls back
// to the numeric nid coerced to string, and stays empty when neither field
// carries a value. Title, summary and body take the first element of their
// respective field sequences. Metadata keys are added only for raw fields
// that are present and non-empty.
func Extract(raw domain.RawPublication) domain.Document {
	doc := domain.Document{
		Metadata: map[string]any{},
	}

	if id := raw.UUID.FirstString(); id != "" {
		doc.ID = id
	} else if id := raw.NID.FirstString(); id != "" {
		doc.ID = id
	}

	doc.Title = raw.Title.FirstString()

	if body, ok := raw.Body.First(); ok {
		doc.Body = body.Processed
		doc.Summary = body.Summary
	}

	if created := raw.Created.FirstString(); created != "" {
		doc.Metadata["created_date"] = created
	}
	if changed := raw.Changed.FirstString(); changed != "" {
		doc.Metadata["last_updated"] = changed
	}
	if ids := raw.GeographicCoverage.TargetIDs(); len(ids) > 0 {
		doc.Metadata["geographic_coverage"] = ids
	}
	if urls := raw.RelatedOrganisations.URLs(); len(urls) > 0 {
		doc.Metadata["related_organisations"] = urls
	}
	if uris := raw.LegacyLinks.URIs(); len(uris) > 0 {
		doc.Metadata["external_links"] = uris
	}

	return doc
}

// ExtractAll maps Extract over a record batch, preserving order.
func ExtractAll(raws []domain.RawPublication) []domain.Document {
	docs := make([]domain.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, Extract(raw))
	}
	return docs
}
