package retrieval

import (
	"context"

	"github.com/answergrid/groundwork/model"
)

// VectorIndex is the vector channel of content retrieval.
type VectorIndex interface {
	SearchContent(ctx context.Context, tenant string, provider string, embedding []float32, k int) ([]model.VectorHit, error)
}

// LexicalIndex is the lexical channel of content retrieval.
type LexicalIndex interface {
	SearchLexical(ctx context.Context, tenant string, query string, k int) ([]model.LexicalHit, error)
}

// EntityVectorIndex is the vector index over the entity corpus.
type EntityVectorIndex interface {
	SearchEntities(ctx context.Context, tenant string, provider string, embedding []float32, k int) ([]model.EntityHit, error)
}

// EntityStore resolves entity candidates and their supporting mentions.
type EntityStore interface {
	SelectEntitiesByIDs(tenant string, entityIDs []string) ([]*model.Entity, error)
	SelectMentionsForEntity(tenant string, entityID string, limit int) ([]*model.EntityMention, error)
}

// SectionURLResolver maps section ids to their page URLs.
type SectionURLResolver interface {
	SelectSectionURLs(tenant string, sectionIDs []string) (map[string]string, error)
}
