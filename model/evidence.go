package model

import (
	"time"

	"github.com/google/uuid"
)

// Evidence is a verified, offset-exact quote span backing one answer claim.
// Invariant: QuoteSpan == section.Text[StartChar:EndChar] for the section
// version recorded in VersionHash. Immutable once created.
type Evidence struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	EvidenceID  uuid.UUID `json:"evidence_id"`
	SectionID   string    `json:"section_id"`
	URL         string    `json:"url,omitempty"`
	QuoteSpan   string    `json:"quote_span"`
	StartChar   int       `json:"start_char"`
	EndChar     int       `json:"end_char"`
	VersionHash string    `json:"version_hash"`
	CreatedAt   time.Time `json:"created_at"`
}
