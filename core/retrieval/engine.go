package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"github.com/answergrid/groundwork/core/embedding"
	"github.com/answergrid/groundwork/model"
)

// normEpsilon guards the channel normalization against an all-zero channel.
const normEpsilon = 1e-9

// Engine provides hybrid content retrieval and entity retrieval over one
// tenant's corpora. Each channel is normalized by its maximum, so every
// present candidate keeps a positive score and a candidate scored by both
// channels always outranks the same scores seen through one channel alone;
// ties break on section id so results are deterministic.
type Engine struct {
	embedder      embedding.Provider
	vectors       VectorIndex
	lexical       LexicalIndex
	entityVectors EntityVectorIndex
	entities      EntityStore
	sectionURLs   SectionURLResolver
	logger        *slog.Logger
}

// NewEngine creates a new retrieval engine.
func NewEngine(
	embedder embedding.Provider,
	vectors VectorIndex,
	lexical LexicalIndex,
	entityVectors EntityVectorIndex,
	entities EntityStore,
	sectionURLs SectionURLResolver,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:      embedder,
		vectors:       vectors,
		lexical:       lexical,
		entityVectors: entityVectors,
		entities:      entities,
		sectionURLs:   sectionURLs,
		logger:        logger,
	}
}

// candidate accumulates the per-channel raw scores of one section.
type candidate struct {
	sectionID   string
	versionHash string
	url         string
	text        string
	vectorRaw   float64
	lexicalRaw  float64
	hasVector   bool
	hasLexical  bool
	vectorNorm  float64
	lexicalNorm float64
	merged      float64
}

// RetrieveContent runs a hybrid query against the tenant's content corpus.
// Both channels are queried at candidate depth, scores are max-normalized per
// channel and merged with the configured weights; a candidate missing from a
// channel contributes zero there instead of being dropped.
func (e *Engine) RetrieveContent(ctx context.Context, tenant string, query string, config *model.QueryConfig) ([]*model.RetrievalResult, error) {
	config = resolveConfig(config)

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	vectorHits, err := e.vectors.SearchContent(ctx, tenant, e.embedder.Identity(), vectors[0], config.CandidateK)
	if err != nil {
		return nil, err
	}
	lexicalHits, err := e.lexical.SearchLexical(ctx, tenant, query, config.CandidateK)
	if err != nil {
		return nil, err
	}

	candidates := map[string]*candidate{}
	for _, hit := range vectorHits {
		candidates[hit.SectionID] = &candidate{
			sectionID:   hit.SectionID,
			versionHash: hit.VersionHash,
			url:         hit.URL,
			text:        hit.Text,
			vectorRaw:   distanceScore(hit.Distance),
			hasVector:   true,
		}
	}
	for _, hit := range lexicalHits {
		if existing, ok := candidates[hit.SectionID]; ok {
			existing.lexicalRaw = hit.Rank
			existing.hasLexical = true
			continue
		}
		candidates[hit.SectionID] = &candidate{
			sectionID:   hit.SectionID,
			versionHash: hit.VersionHash,
			url:         hit.URL,
			text:        hit.Text,
			lexicalRaw:  hit.Rank,
			hasLexical:  true,
		}
	}

	normalizeChannels(candidates)

	merged := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		c.merged = config.VectorWeight*c.vectorNorm + config.LexicalWeight*c.lexicalNorm
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].merged != merged[j].merged {
			return merged[i].merged > merged[j].merged
		}
		return merged[i].sectionID < merged[j].sectionID
	})

	if len(merged) > config.TopK {
		merged = merged[:config.TopK]
	}

	results := make([]*model.RetrievalResult, len(merged))
	for i, c := range merged {
		results[i] = &model.RetrievalResult{
			SectionID:    c.sectionID,
			URL:          c.url,
			Snippet:      snippet(c.text, config.SnippetMax),
			VersionHash:  c.versionHash,
			Score:        c.merged,
			VectorScore:  c.vectorNorm,
			LexicalScore: c.lexicalNorm,
		}
	}

	e.logger.Debug("Hybrid retrieval",
		"tenant", tenant,
		"vector_hits", len(vectorHits),
		"lexical_hits", len(lexicalHits),
		"results", len(results),
	)

	return results, nil
}

// distanceScore converts an L2 distance into a similarity score in (0, 1].
func distanceScore(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// normalizeChannels scales each channel by its maximum, mapping the best
// candidate to 1 and keeping every other present candidate at a positive
// fraction of it. A degenerate channel (a single candidate, or all scores
// equal) normalizes to 1, so a one-section corpus still scores above zero.
// Candidates missing from a channel stay at 0.
func normalizeChannels(candidates map[string]*candidate) {
	vectorMax := channelMax(candidates, func(c *candidate) (float64, bool) { return c.vectorRaw, c.hasVector })
	lexicalMax := channelMax(candidates, func(c *candidate) (float64, bool) { return c.lexicalRaw, c.hasLexical })

	for _, c := range candidates {
		if c.hasVector && vectorMax > normEpsilon {
			c.vectorNorm = c.vectorRaw / vectorMax
		}
		if c.hasLexical && lexicalMax > normEpsilon {
			c.lexicalNorm = c.lexicalRaw / lexicalMax
		}
	}
}

func channelMax(candidates map[string]*candidate, score func(*candidate) (float64, bool)) float64 {
	max := 0.0
	for _, c := range candidates {
		value, ok := score(c)
		if ok && value > max {
			max = value
		}
	}
	return max
}

// resolveConfig fills missing or non-positive knobs of a caller-supplied
// config with the defaults, so a zero value never silently empties the
// result set.
func resolveConfig(config *model.QueryConfig) *model.QueryConfig {
	defaults := model.DefaultQueryConfig()
	if config == nil {
		return defaults
	}

	resolved := *config
	if resolved.TopK <= 0 {
		resolved.TopK = defaults.TopK
	}
	if resolved.CandidateK <= 0 {
		resolved.CandidateK = defaults.CandidateK
	}
	if resolved.VectorWeight <= 0 && resolved.LexicalWeight <= 0 {
		resolved.VectorWeight = defaults.VectorWeight
		resolved.LexicalWeight = defaults.LexicalWeight
	}
	if resolved.SnippetMax <= 0 {
		resolved.SnippetMax = defaults.SnippetMax
	}
	if resolved.MentionsPerEntity <= 0 {
		resolved.MentionsPerEntity = defaults.MentionsPerEntity
	}
	return &resolved
}

// snippet truncates the section text for the result payload.
func snippet(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
