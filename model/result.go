package model

import "time"

// VectorHit is one candidate from a vector similarity search, with the
// section metadata needed by the fusion step.
type VectorHit struct {
	SectionID   string  `json:"section_id"`
	VersionHash string  `json:"version_hash"`
	URL         string  `json:"url"`
	Text        string  `json:"text"`
	Distance    float64 `json:"distance"`
}

// LexicalHit is one candidate from a lexical full-text search.
type LexicalHit struct {
	SectionID   string  `json:"section_id"`
	VersionHash string  `json:"version_hash"`
	URL         string  `json:"url"`
	Text        string  `json:"text"`
	Rank        float64 `json:"rank"`
}

// EntityHit is one candidate from an entity-embedding similarity search.
type EntityHit struct {
	EntityID string  `json:"entity_id"`
	Distance float64 `json:"distance"`
}

// RetrievalResult represents a section retrieved by a hybrid query
type RetrievalResult struct {
	SectionID    string  `json:"section_id"`
	URL          string  `json:"url"`
	Snippet      string  `json:"snippet"`
	VersionHash  string  `json:"version_hash"`
	Score        float64 `json:"score"`         // Fused score
	VectorScore  float64 `json:"vector_score"`  // Normalized vector channel score
	LexicalScore float64 `json:"lexical_score"` // Normalized lexical channel score
}

// EntityResult represents an entity retrieved by an EC query, with its most
// relevant supporting mentions.
type EntityResult struct {
	EntityID      string          `json:"entity_id"`
	CanonicalName string          `json:"canonical_name"`
	Type          string          `json:"entity_type"`
	Score         float64         `json:"score"`
	Mentions      []MentionResult `json:"mentions,omitempty"`
}

// MentionResult is one supporting mention in an EntityResult.
type MentionResult struct {
	SectionID   string `json:"section_id"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	QuoteSpan   string `json:"quote_span"`
	URL         string `json:"url,omitempty"`
}

// GroundingResult is the outcome of grounding one claim: either an Evidence
// record or an ungrounded (hallucination) verdict. Ungrounded claims are
// first-class data, not errors.
type GroundingResult struct {
	Grounded bool      `json:"grounded"`
	Evidence *Evidence `json:"evidence,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// LeakageReport is the outcome of one leakage check over a tenant list.
type LeakageReport struct {
	OK        bool             `json:"ok"`
	CheckedAt time.Time        `json:"checked_at"`
	Findings  []LeakageFinding `json:"findings,omitempty"`
}

// LeakageFinding describes one cross-tenant result.
type LeakageFinding struct {
	TenantID     string   `json:"tenant_id"`
	OwnerTenant  string   `json:"owner_tenant"`
	Query        string   `json:"query"`
	Corpus       string   `json:"corpus"`
	SectionIDs   []string `json:"section_ids,omitempty"`
	EntityIDs    []string `json:"entity_ids,omitempty"`
	OffendingURL []string `json:"urls,omitempty"`
}
