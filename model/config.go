package model

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	// Result count
	TopK int `json:"top_k"`

	// Per-channel candidate depth before fusion
	CandidateK int `json:"candidate_k"`

	// Fusion weights. Higher VectorWeight favors semantic match for
	// natural-language queries, higher LexicalWeight favors short keyword
	// queries.
	VectorWeight  float64 `json:"vector_weight"`
	LexicalWeight float64 `json:"lexical_weight"`

	// Snippet length in the result set
	SnippetMax int `json:"snippet_max"`

	// Mentions returned per entity in EC retrieval
	MentionsPerEntity int `json:"mentions_per_entity"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() *QueryConfig {
	return &QueryConfig{
		TopK:              20,
		CandidateK:        50,
		VectorWeight:      0.6,
		LexicalWeight:     0.4,
		SnippetMax:        240,
		MentionsPerEntity: 5,
	}
}
