package model

import (
	"time"

	"github.com/google/uuid"
)

// EvalRun is one harness execution over a fixed query set. Immutable once written.
type EvalRun struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	RunID     uuid.UUID `json:"run_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EvalClaim is one claim of an answer together with the evidence ids that
// back it. A claim with no evidence ids, or with an evidence id outside the
// answer's citations, is a hallucination.
type EvalClaim struct {
	Text        string   `json:"text,omitempty"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// EvalResult is the per-query outcome of an eval run. Immutable once written.
// Claims and CitationIDs are the raw answer payload; the outcome flags are
// derived from them when a run is recorded.
type EvalResult struct {
	ID                int64       `json:"id"`
	TenantID          string      `json:"tenant_id"`
	RunID             uuid.UUID   `json:"run_id"`
	QueryID           string      `json:"query_id"`
	Domain            string      `json:"domain,omitempty"`
	Refused           bool        `json:"refused"`
	Claims            []EvalClaim `json:"claims,omitempty"`
	CitationIDs       []string    `json:"citation_ids,omitempty"`
	MentionOK         bool        `json:"mention_ok"`
	CitationOK        bool        `json:"citation_ok"`
	AttributionOK     bool        `json:"attribution_ok"`
	HallucinationFlag bool        `json:"hallucination_flag"`
	EvidenceCount     int         `json:"evidence_count"`
	Confidence        float64     `json:"confidence"`
	CreatedAt         time.Time   `json:"created_at"`
}

// RunMetrics aggregates the per-query outcomes of one eval run. The composite
// index condenses the run into a single 0-100 quality number.
type RunMetrics struct {
	RunID             uuid.UUID       `json:"run_id"`
	Queries           int             `json:"queries"`
	AnswerRate        float64         `json:"answer_rate"`
	RefusalRate       float64         `json:"refusal_rate"`
	MentionRate       float64         `json:"mention_rate"`
	CitationRate      float64         `json:"citation_rate"`
	AttributionRate   float64         `json:"attribution_rate"`
	HallucinationRate float64         `json:"hallucination_rate"`
	CompositeIndex    float64         `json:"composite_index"`
	Domains           []DomainMetrics `json:"domains,omitempty"`
}

// DomainMetrics is the per-domain slice of RunMetrics.
type DomainMetrics struct {
	Domain            string  `json:"domain"`
	Queries           int     `json:"queries"`
	AnswerRate        float64 `json:"answer_rate"`
	CitationRate      float64 `json:"citation_rate"`
	AttributionRate   float64 `json:"attribution_rate"`
	HallucinationRate float64 `json:"hallucination_rate"`
}

// Monitor event types emitted by the auditor and the anomaly engine.
const (
	EventLeakageFail  = "leakage_fail"
	EventLeakagePass  = "leakage_pass"
	EventCitationDrop = "citation_drop"
	EventRefusalSpike = "refusal_spike"
)

// Monitor event severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// MonitorEvent is an anomaly or leakage finding. Emission of identical
// findings is cooldown-suppressed; detection itself never is.
type MonitorEvent struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	EventID   uuid.UUID `json:"event_id"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"`
	Details   Metadata  `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
