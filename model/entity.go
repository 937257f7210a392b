package model

import (
	"time"

	"github.com/google/uuid"
)

// Entity represents a canonical named entity extracted from sections.
// Unique per (tenant, entity id).
type Entity struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	EntityID      string    `json:"entity_id"`
	CanonicalName string    `json:"canonical_name"`
	Type          string    `json:"entity_type"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EntityMention is a span where an Entity was observed in a Section.
// Offsets are relative to the section text.
type EntityMention struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	MentionID   uuid.UUID `json:"mention_id"`
	EntityID    string    `json:"entity_id"`
	SectionID   string    `json:"section_id"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	QuoteSpan   string    `json:"quote_span"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// Relation is a subject-entity -> predicate -> object-entity triple with a
// supporting evidence reference.
type Relation struct {
	ID              int64  `json:"id"`
	TenantID        string `json:"tenant_id"`
	SubjectEntityID string `json:"subject_entity_id"`
	Predicate       string `json:"predicate"`
	ObjectEntityID  string `json:"object_entity_id"`
	EvidenceID      string `json:"evidence_id,omitempty"`
}
