package retrieval

import (
	"context"

	"github.com/answergrid/groundwork/model"
)

// RetrieveEntities runs a vector-only query against the tenant's entity
// corpus. There is no lexical channel here; entity names are too short for
// full-text ranking to add signal. Each result carries its most confident
// supporting mentions with their page URLs.
func (e *Engine) RetrieveEntities(ctx context.Context, tenant string, query string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	config = resolveConfig(config)

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	hits, err := e.entityVectors.SearchEntities(ctx, tenant, e.embedder.Identity(), vectors[0], config.TopK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	entityIDs := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, hit := range hits {
		entityIDs[i] = hit.EntityID
		scores[hit.EntityID] = distanceScore(hit.Distance)
	}

	entities, err := e.entities.SelectEntitiesByIDs(tenant, entityIDs)
	if err != nil {
		return nil, err
	}

	results := make([]*model.EntityResult, 0, len(entities))
	for _, entity := range entities {
		mentions, err := e.entities.SelectMentionsForEntity(tenant, entity.EntityID, config.MentionsPerEntity)
		if err != nil {
			return nil, err
		}

		mentionResults, err := e.resolveMentions(tenant, mentions)
		if err != nil {
			return nil, err
		}

		results = append(results, &model.EntityResult{
			EntityID:      entity.EntityID,
			CanonicalName: entity.CanonicalName,
			Type:          entity.Type,
			Score:         scores[entity.EntityID],
			Mentions:      mentionResults,
		})
	}

	return results, nil
}

func (e *Engine) resolveMentions(tenant string, mentions []*model.EntityMention) ([]model.MentionResult, error) {
	if len(mentions) == 0 {
		return nil, nil
	}

	sectionIDs := make([]string, 0, len(mentions))
	for _, mention := range mentions {
		sectionIDs = append(sectionIDs, mention.SectionID)
	}
	urls, err := e.sectionURLs.SelectSectionURLs(tenant, sectionIDs)
	if err != nil {
		return nil, err
	}

	results := make([]model.MentionResult, len(mentions))
	for i, mention := range mentions {
		results[i] = model.MentionResult{
			SectionID:   mention.SectionID,
			StartOffset: mention.StartOffset,
			EndOffset:   mention.EndOffset,
			QuoteSpan:   mention.QuoteSpan,
			URL:         urls[mention.SectionID],
		}
	}
	return results, nil
}
