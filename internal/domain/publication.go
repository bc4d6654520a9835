package domain

import (
	"encoding/json"
	"strconv"
)

// RawPublication is a source-defined publication record. Every semantic
// field arrives as a length-variable sequence of tagged value objects; an
// absent field decodes to an empty list. The typed lists below replace the
// source's "check the length at runtime" convention with explicit
// present/absent accessors.
type RawPublication struct {
	UUID                 ValueList     `json:"uuid"`
	NID                  ValueList     `json:"nid"`
	Title                ValueList     `json:"title"`
	Body                 BodyList      `json:"body"`
	Created              ValueList     `json:"created"`
	Changed              ValueList     `json:"changed"`
	GeographicCoverage   ReferenceList `json:"field_geographic_coverage"`
	RelatedOrganisations LinkList      `json:"field_related_organisations"`
	LegacyLinks          LinkList      `json:"field_legacy_link"`
}

// Value is one tagged scalar in a field sequence. The scalar may be a
// string (titles, ISO dates) or a number (node ids).
type Value struct {
	Value any `json:"value"`
}

// ValueList is an ordered field sequence; only the first element carries
// the scalar of interest.
type ValueList []Value

// First returns the first scalar and whether the list is non-empty.
func (l ValueList) First() (any, bool) {
	if len(l) == 0 {
		return nil, false
	}
	return l[0].Value, true
}

// FirstString returns the first scalar coerced to its string form, or ""
// when the list is empty or the scalar has no sensible string rendering.
func (l ValueList) FirstString() string {
	v, ok := l.First()
	if !ok {
		return ""
	}
	return scalarString(v)
}

// BodyValue is one entry of the primary content field: rendered text plus
// an optional editorial summary.
type BodyValue struct {
	Processed string `json:"processed"`
	Summary   string `json:"summary"`
}

// BodyList is the ordered sequence of body entries.
type BodyList []BodyValue

// First returns the first body entry and whether the list is non-empty.
func (l BodyList) First() (BodyValue, bool) {
	if len(l) == 0 {
		return BodyValue{}, false
	}
	return l[0], true
}

// Reference is an entity reference carrying a numeric target id.
type Reference struct {
	TargetID json.Number `json:"target_id"`
}

// ReferenceList is an ordered sequence of entity references.
type ReferenceList []Reference

// TargetIDs projects the references into their string ids, preserving
// source order and skipping entries without a target.
func (l ReferenceList) TargetIDs() []string {
	out := make([]string, 0, len(l))
	for _, r := range l {
		if r.TargetID != "" {
			out = append(out, r.TargetID.String())
		}
	}
	return out
}

// Link is an external or related-entity link. Organisation references use
// URL, legacy links use URI; the other field stays empty.
type Link struct {
	URL string `json:"url"`
	URI string `json:"uri"`
}

// LinkList is an ordered sequence of links.
type LinkList []Link

// URLs projects the non-empty url fields, preserving source order.
func (l LinkList) URLs() []string {
	out := make([]string, 0, len(l))
	for _, lk := range l {
		if lk.URL != "" {
			out = append(out, lk.URL)
		}
	}
	return out
}

// URIs projects the non-empty uri fields, preserving source order.
func (l LinkList) URIs() []string {
	out := make([]string, 0, len(l))
	for _, lk := range l {
		if lk.URI != "" {
			out = append(out, lk.URI)
		}
	}
	return out
}

// scalarString renders a decoded JSON scalar as a string. Integral floats
// (the default decoding of JSON numbers) render without a fraction so a
// numeric id 54321 becomes "54321".
func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
