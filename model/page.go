package model

import "time"

// Page represents a crawled resource. The version increments only when the
// content hash changes; re-ingesting identical text is a no-op.
type Page struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	URL           string    `json:"url"`
	CanonicalURL  string    `json:"canonical_url"`
	Text          string    `json:"text,omitempty"`
	ContentHash   string    `json:"content_hash"`
	Version       int       `json:"version"`
	Domain        string    `json:"domain,omitempty"`
	PageType      string    `json:"page_type,omitempty"`
	CrawlDecision string    `json:"crawl_decision,omitempty"`
	FetchedAt     time.Time `json:"fetched_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CorpusKind identifies one of the two retrieval corpora of a tenant.
type CorpusKind string

const (
	// CorpusContent is the section-level content corpus used for grounding
	// answers in page text.
	CorpusContent CorpusKind = "ac"
	// CorpusEntity is the extracted-entity corpus used for entity-centric
	// retrieval.
	CorpusEntity CorpusKind = "ec"
)
