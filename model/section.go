package model

import "time"

// Section is an overlapping text chunk derived from a Page, the atomic unit
// of retrieval and grounding. The SectionID is derived from URL and chunk
// index only, so the same logical chunk keeps its identifier across
// re-crawls; the VersionHash changes whenever the chunk text changes.
type Section struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	PageID      int64     `json:"page_id"`
	SectionID   string    `json:"section_id"`
	Text        string    `json:"text"`
	StartChar   int       `json:"start_char"`
	EndChar     int       `json:"end_char"`
	ChunkIndex  int       `json:"chunk_index"`
	VersionHash string    `json:"version_hash"`
	Domain      string    `json:"domain,omitempty"`
	PageType    string    `json:"page_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SectionInput is one pre-chunked section as produced by the external
// chunking collaborator: the chunk text plus its byte range in the page text.
type SectionInput struct {
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
}
