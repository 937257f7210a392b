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
	"github.com/lib/pq"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(tenant string, entity *model.Entity) error
	SelectEntity(tenant string, entityID string) (*model.Entity, error)
	SelectEntitiesByIDs(tenant string, entityIDs []string) ([]*model.Entity, error)
	SelectEntityNames(tenant string) (map[string]string, error)
	InsertEntityMention(tenant string, mention *model.EntityMention) error
	SelectMentionsForEntity(tenant string, entityID string, limit int) ([]*model.EntityMention, error)
	InsertRelation(tenant string, relation *model.Relation) error
	SelectRelationsForEntity(tenant string, entityID string) ([]*model.Relation, error)
	DeleteEntitiesForTenant(tenant string) error
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the entities, entity_mentions and relations tables.
// If the tables already exist, it does not create them again.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables entities, entity_mentions, relations")

	return nil
}

// UpsertEntity inserts a new entity or updates the existing (tenant, entity id) row
func (h *EntitiesDBHandler) UpsertEntity(tenant string, entity *model.Entity) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_entity($1, $2, $3, $4, $5)`,
		tenant,
		entity.EntityID,
		entity.CanonicalName,
		entity.Type,
		entity.Metadata,
	)

	err = scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEntity retrieves an entity by stable id, or ErrNotFound
func (h *EntitiesDBHandler) SelectEntity(tenant string, entityID string) (*model.Entity, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1, $2)`,
		tenant,
		entityID,
	)

	entity := &model.Entity{}
	err = scanEntity(row, entity)
	if err == sql.ErrNoRows {
		return nil, helper.NewError("select entity", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntitiesByIDs retrieves entities by stable id, preserving input order
func (h *EntitiesDBHandler) SelectEntitiesByIDs(tenant string, entityIDs []string) ([]*model.Entity, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}
	if len(entityIDs) == 0 {
		return nil, nil
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities_by_ids($1, $2)`,
		tenant,
		pq.Array(entityIDs),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := scanEntity(rows, entity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

// SelectEntityNames returns entity id -> canonical name for all entities of a
// tenant, sorted by name. The constituents of the EC corpus version.
func (h *EntitiesDBHandler) SelectEntityNames(tenant string) (map[string]string, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entity_names($1)`,
		tenant,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	names := map[string]string{}
	for rows.Next() {
		var entityID, name string
		if err := rows.Scan(&entityID, &name); err != nil {
			return nil, helper.NewError("scan", err)
		}
		names[entityID] = name
	}

	return names, rows.Err()
}

// InsertEntityMention inserts a new entity mention
func (h *EntitiesDBHandler) InsertEntityMention(tenant string, mention *model.EntityMention) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_entity_mention($1, $2, $3, $4, $5, $6, $7)`,
		tenant,
		mention.EntityID,
		mention.SectionID,
		mention.StartOffset,
		mention.EndOffset,
		mention.QuoteSpan,
		mention.Confidence,
	)

	err = scanMention(row, mention)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectMentionsForEntity retrieves the most confident mentions of an entity
func (h *EntitiesDBHandler) SelectMentionsForEntity(tenant string, entityID string, limit int) ([]*model.EntityMention, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_mentions_for_entity($1, $2, $3)`,
		tenant,
		entityID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var mentions []*model.EntityMention
	for rows.Next() {
		mention := &model.EntityMention{}
		err := scanMention(rows, mention)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		mentions = append(mentions, mention)
	}

	return mentions, rows.Err()
}

// InsertRelation inserts a new subject-predicate-object relation
func (h *EntitiesDBHandler) InsertRelation(tenant string, relation *model.Relation) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_relation($1, $2, $3, $4, $5)`,
		tenant,
		relation.SubjectEntityID,
		relation.Predicate,
		relation.ObjectEntityID,
		relation.EvidenceID,
	)

	err = row.Scan(
		&relation.ID,
		&relation.TenantID,
		&relation.SubjectEntityID,
		&relation.Predicate,
		&relation.ObjectEntityID,
		&relation.EvidenceID,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectRelationsForEntity retrieves relations where the entity is subject or object
func (h *EntitiesDBHandler) SelectRelationsForEntity(tenant string, entityID string) ([]*model.Relation, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_relations_for_entity($1, $2)`,
		tenant,
		entityID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var relations []*model.Relation
	for rows.Next() {
		relation := &model.Relation{}
		err := rows.Scan(
			&relation.ID,
			&relation.TenantID,
			&relation.SubjectEntityID,
			&relation.Predicate,
			&relation.ObjectEntityID,
			&relation.EvidenceID,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		relations = append(relations, relation)
	}

	return relations, rows.Err()
}

// DeleteEntitiesForTenant removes all entities, mentions and relations of a tenant
func (h *EntitiesDBHandler) DeleteEntitiesForTenant(tenant string) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	_, err = h.db.Instance.Exec(
		`SELECT delete_entities_for_tenant($1)`,
		tenant,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanEntity(row rowScanner, entity *model.Entity) error {
	return row.Scan(
		&entity.ID,
		&entity.TenantID,
		&entity.EntityID,
		&entity.CanonicalName,
		&entity.Type,
		&entity.Metadata,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
}

func scanMention(row rowScanner, mention *model.EntityMention) error {
	return row.Scan(
		&mention.ID,
		&mention.TenantID,
		&mention.MentionID,
		&mention.EntityID,
		&mention.SectionID,
		&mention.StartOffset,
		&mention.EndOffset,
		&mention.QuoteSpan,
		&mention.Confidence,
		&mention.CreatedAt,
	)
}
