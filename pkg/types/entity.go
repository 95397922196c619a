// Package types defines the core domain types shared across the linker:
// knowledge-base entity records, input mentions, and scored resolution
// candidates. It is intentionally dependency-free so that storage backends
// and the resolution engine can both import it.
package types

import "strings"

// Category is the coarse entity category recognized by the resolver.
type Category string

// Recognized categories. Mentions carrying any other category never resolve.
const (
	CategoryGPE Category = "GPE" // geo-political entity
	CategoryLOC Category = "LOC" // non-political location
	CategoryFAC Category = "FAC" // facility
	CategoryORG Category = "ORG" // organization
	CategoryPER Category = "PER" // person
	CategoryVEH Category = "VEH" // vehicle
)

// ontologyPrefix is the typed-ontology prefix upstream extractors attach to
// mention types. The three-letter category code follows it immediately.
const ontologyPrefix = "ldcOnt:"

// ParseCategory extracts the coarse category from a mention type string.
// It accepts both the bare three-letter code ("GPE") and the prefixed
// ontology form ("ldcOnt:GPE.UrbanArea"). The second return value is false
// when the string does not carry a recognized category.
func ParseCategory(mentionType string) (Category, bool) {
	s := strings.TrimSpace(mentionType)
	if rest, ok := strings.CutPrefix(s, ontologyPrefix); ok {
		s = rest
	}
	if len(s) < 3 {
		return "", false
	}
	cat := Category(strings.ToUpper(s[:3]))
	switch cat {
	case CategoryGPE, CategoryLOC, CategoryFAC, CategoryORG, CategoryPER, CategoryVEH:
		return cat, true
	}
	return "", false
}

// EntityRecord is one indexed knowledge-base row. Records are immutable once
// indexed. Multiple records may share an ID (one per alias): ID is the
// entity identity key, not the record key.
type EntityRecord struct {
	// ID is globally unique within its KB namespace. Auxiliary-KB ids carry
	// the "@" prefix and never collide with static-KB ids.
	ID string `json:"id"`

	// Name is the surface form used for matching. It is a primary name or
	// an alias.
	Name string `json:"name"`

	// CanonicalName is the preferred display name. It equals Name for
	// primary entries and differs for alias entries.
	CanonicalName string `json:"canonical_name"`

	// Type is the record's coarse category.
	Type Category `json:"type"`

	// Info is a free-text auxiliary payload: a country code, coordinates,
	// or descriptive text depending on the source. May be empty.
	Info string `json:"info,omitempty"`
}

// Mention is one named-entity occurrence emitted by upstream extraction.
type Mention struct {
	// Text is the surface string as extracted.
	Text string `json:"mention"`

	// Type is the typed-ontology category string (see ParseCategory).
	Type string `json:"type"`

	// Context is the containing sentence. Used only for disambiguation;
	// may be empty.
	Context string `json:"context,omitempty"`
}

// Category returns the parsed coarse category of the mention.
func (m Mention) Category() (Category, bool) {
	return ParseCategory(m.Type)
}

// NormalizedText returns the lowercased, whitespace-trimmed surface string,
// the form used for retrieval and exact-match filtering.
func (m Mention) NormalizedText() string {
	return strings.ToLower(strings.TrimSpace(m.Text))
}

// ScoredCandidate is an EntityRecord with a disambiguation confidence.
// Confidence is comparable only within one mention's candidate set; the full
// set for one mention sums to 1.0.
type ScoredCandidate struct {
	EntityRecord

	// Confidence is the normalized disambiguation score in [0,1].
	Confidence float64 `json:"confidence"`
}
