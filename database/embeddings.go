package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/answergrid/groundwork/helper"
	"github.com/answergrid/groundwork/model"
	loadSql "github.com/answergrid/groundwork/sql"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingsDBHandlerFunctions defines the interface for Embeddings database operations.
type EmbeddingsDBHandlerFunctions interface {
	ReplaceContentEmbedding(tenant string, sectionID string, versionHash string, provider string, embedding []float32) error
	SearchContent(ctx context.Context, tenant string, provider string, embedding []float32, k int) ([]model.VectorHit, error)
	SelectIndexedContent(tenant string, provider string) (map[string]string, error)
	ReplaceEntityEmbedding(tenant string, entityID string, provider string, embedding []float32) error
	SearchEntities(ctx context.Context, tenant string, provider string, embedding []float32, k int) ([]model.EntityHit, error)
	UpsertCorpusVersion(tenant string, corpus model.CorpusKind, versionHash string) error
	SelectCorpusVersion(tenant string, corpus model.CorpusKind) (string, error)
	DeleteEmbeddingsForTenant(tenant string) error
}

// EmbeddingsDBHandler handles embedding-related database operations
type EmbeddingsDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewEmbeddingsDBHandler creates a new embeddings database handler.
// It initializes the database connection and loads embedding-related SQL functions.
// The embedding dimension is fixed at table creation and must match the
// embedding provider used for indexing and querying.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEmbeddingsDBHandler(db *helper.Database, embeddingDim int, force bool) (*EmbeddingsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %v", embeddingDim))
	}

	embeddingsDbHandler := &EmbeddingsDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadEmbeddingsSql(embeddingsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load embeddings sql", err)
	}

	err = embeddingsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EmbeddingsDBHandler")

	return embeddingsDbHandler, nil
}

// CreateTable creates the content_embeddings, entity_embeddings and
// corpus_versions tables. If the tables already exist, it does not create
// them again.
func (h *EmbeddingsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_embeddings($1);`, h.embeddingDim)
	if err != nil {
		log.Panicf("error initializing embeddings tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables content_embeddings, entity_embeddings, corpus_versions")

	return nil
}

// ReplaceContentEmbedding upserts the vector of a section for a provider
func (h *EmbeddingsDBHandler) ReplaceContentEmbedding(tenant string, sectionID string, versionHash string, provider string, embedding []float32) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}
	if len(embedding) != h.embeddingDim {
		return helper.NewError("embedding validation", fmt.Errorf("expected dimension %v, got %v", h.embeddingDim, len(embedding)))
	}

	_, err = h.db.Instance.Exec(
		`SELECT replace_content_embedding($1, $2, $3, $4, $5)`,
		tenant,
		sectionID,
		versionHash,
		provider,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SearchContent runs a nearest-neighbor search over the tenant's content
// embeddings, returning section metadata alongside the L2 distance.
func (h *EmbeddingsDBHandler) SearchContent(ctx context.Context, tenant string, provider string, embedding []float32, k int) ([]model.VectorHit, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}
	if len(embedding) != h.embeddingDim {
		return nil, helper.NewError("embedding validation", fmt.Errorf("expected dimension %v, got %v", h.embeddingDim, len(embedding)))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_content_embeddings($1, $2, $3, $4)`,
		tenant,
		provider,
		pgvector.NewVector(embedding),
		k,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []model.VectorHit
	for rows.Next() {
		var hit model.VectorHit
		err := rows.Scan(&hit.SectionID, &hit.VersionHash, &hit.URL, &hit.Text, &hit.Distance)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// SelectIndexedContent returns section id -> version hash for all content
// embeddings of a tenant and provider, for incremental re-indexing.
func (h *EmbeddingsDBHandler) SelectIndexedContent(tenant string, provider string) (map[string]string, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_indexed_content($1, $2)`,
		tenant,
		provider,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	indexed := map[string]string{}
	for rows.Next() {
		var sectionID, versionHash string
		if err := rows.Scan(&sectionID, &versionHash); err != nil {
			return nil, helper.NewError("scan", err)
		}
		indexed[sectionID] = versionHash
	}

	return indexed, rows.Err()
}

// ReplaceEntityEmbedding upserts the vector of an entity for a provider
func (h *EmbeddingsDBHandler) ReplaceEntityEmbedding(tenant string, entityID string, provider string, embedding []float32) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}
	if len(embedding) != h.embeddingDim {
		return helper.NewError("embedding validation", fmt.Errorf("expected dimension %v, got %v", h.embeddingDim, len(embedding)))
	}

	_, err = h.db.Instance.Exec(
		`SELECT replace_entity_embedding($1, $2, $3, $4)`,
		tenant,
		entityID,
		provider,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SearchEntities runs a nearest-neighbor search over the tenant's entity embeddings
func (h *EmbeddingsDBHandler) SearchEntities(ctx context.Context, tenant string, provider string, embedding []float32, k int) ([]model.EntityHit, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}
	if len(embedding) != h.embeddingDim {
		return nil, helper.NewError("embedding validation", fmt.Errorf("expected dimension %v, got %v", h.embeddingDim, len(embedding)))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_entity_embeddings($1, $2, $3, $4)`,
		tenant,
		provider,
		pgvector.NewVector(embedding),
		k,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []model.EntityHit
	for rows.Next() {
		var hit model.EntityHit
		err := rows.Scan(&hit.EntityID, &hit.Distance)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// UpsertCorpusVersion stores the current corpus version of a tenant
func (h *EmbeddingsDBHandler) UpsertCorpusVersion(tenant string, corpus model.CorpusKind, versionHash string) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	_, err = h.db.Instance.Exec(
		`SELECT upsert_corpus_version($1, $2, $3)`,
		tenant,
		string(corpus),
		versionHash,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectCorpusVersion retrieves the current corpus version of a tenant.
// A tenant without any indexed content has no corpus version yet, ErrNotFound.
func (h *EmbeddingsDBHandler) SelectCorpusVersion(tenant string, corpus model.CorpusKind) (string, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return "", err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_corpus_version($1, $2)`,
		tenant,
		string(corpus),
	)

	var versionHash string
	err = row.Scan(&versionHash)
	if err == sql.ErrNoRows {
		return "", helper.NewError("select corpus version", model.ErrNotFound)
	}
	if err != nil {
		return "", helper.NewError("scan", err)
	}

	return versionHash, nil
}

// DeleteEmbeddingsForTenant removes all embeddings and corpus versions of a tenant
func (h *EmbeddingsDBHandler) DeleteEmbeddingsForTenant(tenant string) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	_, err = h.db.Instance.Exec(
		`SELECT delete_embeddings_for_tenant($1)`,
		tenant,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
