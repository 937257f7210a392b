package model

import "errors"

var (
	// ErrInvalidTenant is returned when a tenant identifier is missing or empty.
	// Always fatal to the call, never silently defaulted.
	ErrInvalidTenant = errors.New("tenant id is required and must be non-empty")

	// ErrEmbeddingUnavailable is returned when the embedding capability failed
	// or timed out. Distinct from "no results found".
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrOffsetInvariant is returned when an evidence record's stored quote no
	// longer matches the recomputed substring of its section text.
	ErrOffsetInvariant = errors.New("evidence offset invariant violated")

	// ErrStaleEvidence is returned when an evidence record references a section
	// version that has since been replaced by a re-crawl.
	ErrStaleEvidence = errors.New("evidence references a stale section version")

	// ErrNotFound is returned when a record does not exist for the tenant.
	ErrNotFound = errors.New("record not found")
)
