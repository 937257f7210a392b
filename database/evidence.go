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
	"github.com/google/uuid"
)

// EvidenceDBHandlerFunctions defines the interface for Evidence database operations.
type EvidenceDBHandlerFunctions interface {
	InsertEvidence(tenant string, evidence *model.Evidence) error
	SelectEvidence(tenant string, evidenceID uuid.UUID) (*model.Evidence, error)
	SelectEvidenceForSection(tenant string, sectionID string) ([]*model.Evidence, error)
	DeleteEvidenceForTenant(tenant string) error
}

// EvidenceDBHandler handles evidence-related database operations
type EvidenceDBHandler struct {
	db *helper.Database
}

// NewEvidenceDBHandler creates a new evidence database handler.
// It initializes the database connection and loads evidence-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEvidenceDBHandler(db *helper.Database, force bool) (*EvidenceDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	evidenceDbHandler := &EvidenceDBHandler{
		db: db,
	}

	err := loadSql.LoadEvidenceSql(evidenceDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load evidence sql", err)
	}

	err = evidenceDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EvidenceDBHandler")

	return evidenceDbHandler, nil
}

// CreateTable creates the 'evidence' table in the database.
// If the table already exists, it does not create it again.
func (h *EvidenceDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_evidence();`)
	if err != nil {
		log.Panicf("error initializing evidence table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table evidence")

	return nil
}

// InsertEvidence inserts a new evidence record. Evidence is immutable once created.
func (h *EvidenceDBHandler) InsertEvidence(tenant string, evidence *model.Evidence) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_evidence($1, $2, $3, $4, $5, $6, $7)`,
		tenant,
		evidence.SectionID,
		evidence.URL,
		evidence.QuoteSpan,
		evidence.StartChar,
		evidence.EndChar,
		evidence.VersionHash,
	)

	err = scanEvidence(row, evidence)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEvidence retrieves an evidence record by id, or ErrNotFound
func (h *EvidenceDBHandler) SelectEvidence(tenant string, evidenceID uuid.UUID) (*model.Evidence, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_evidence($1, $2)`,
		tenant,
		evidenceID,
	)

	evidence := &model.Evidence{}
	err = scanEvidence(row, evidence)
	if err == sql.ErrNoRows {
		return nil, helper.NewError("select evidence", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return evidence, nil
}

// SelectEvidenceForSection retrieves all evidence records referencing a section
func (h *EvidenceDBHandler) SelectEvidenceForSection(tenant string, sectionID string) ([]*model.Evidence, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_evidence_for_section($1, $2)`,
		tenant,
		sectionID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var records []*model.Evidence
	for rows.Next() {
		evidence := &model.Evidence{}
		err := scanEvidence(rows, evidence)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		records = append(records, evidence)
	}

	return records, rows.Err()
}

// DeleteEvidenceForTenant removes all evidence of a tenant
func (h *EvidenceDBHandler) DeleteEvidenceForTenant(tenant string) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	_, err = h.db.Instance.Exec(
		`SELECT delete_evidence_for_tenant($1)`,
		tenant,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanEvidence(row rowScanner, evidence *model.Evidence) error {
	return row.Scan(
		&evidence.ID,
		&evidence.TenantID,
		&evidence.EvidenceID,
		&evidence.SectionID,
		&evidence.URL,
		&evidence.QuoteSpan,
		&evidence.StartChar,
		&evidence.EndChar,
		&evidence.VersionHash,
		&evidence.CreatedAt,
	)
}
