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

// SectionsDBHandlerFunctions defines the interface for Sections database operations.
type SectionsDBHandlerFunctions interface {
	UpsertSection(tenant string, section *model.Section) error
	DeleteSectionsForPage(tenant string, pageID int64) error
	SelectSection(tenant string, sectionID string) (*model.Section, error)
	SelectSectionsByIDs(tenant string, sectionIDs []string) ([]*model.Section, error)
	SelectSectionsForPage(tenant string, pageID int64) ([]*model.Section, error)
	SelectSectionHashes(tenant string) ([]string, error)
	SelectSectionURLs(tenant string, sectionIDs []string) (map[string]string, error)
	SearchLexical(ctx context.Context, tenant string, query string, k int) ([]model.LexicalHit, error)
}

// SectionsDBHandler handles section-related database operations
type SectionsDBHandler struct {
	db *helper.Database
	// Postgres text search configuration for the lexical channel
	ftsConfig string
}

// NewSectionsDBHandler creates a new sections database handler.
// It initializes the database connection and loads section-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewSectionsDBHandler(db *helper.Database, force bool) (*SectionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	sectionsDbHandler := &SectionsDBHandler{
		db:        db,
		ftsConfig: "simple",
	}

	err := loadSql.LoadSectionsSql(sectionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load sections sql", err)
	}

	err = sectionsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized SectionsDBHandler")

	return sectionsDbHandler, nil
}

// CreateTable creates the 'sections' table in the database.
// If the table already exists, it does not create it again.
// It also creates the tsvector column and GIN index for lexical search.
func (h *SectionsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_sections();`)
	if err != nil {
		log.Panicf("error initializing sections table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table sections")

	return nil
}

// UpsertSection inserts a section or replaces its content when the stable id exists
func (h *SectionsDBHandler) UpsertSection(tenant string, section *model.Section) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_section($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tenant,
		section.PageID,
		section.SectionID,
		section.Text,
		section.StartChar,
		section.EndChar,
		section.ChunkIndex,
		section.VersionHash,
		section.Domain,
		section.PageType,
	)

	err = scanSection(row, section)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteSectionsForPage removes all sections of a page
func (h *SectionsDBHandler) DeleteSectionsForPage(tenant string, pageID int64) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	_, err = h.db.Instance.Exec(
		`SELECT delete_sections_for_page($1, $2)`,
		tenant,
		pageID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectSection retrieves a section by stable section id, or ErrNotFound
func (h *SectionsDBHandler) SelectSection(tenant string, sectionID string) (*model.Section, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_section($1, $2)`,
		tenant,
		sectionID,
	)

	section := &model.Section{}
	err = scanSection(row, section)
	if err == sql.ErrNoRows {
		return nil, helper.NewError("select section", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return section, nil
}

// SelectSectionsByIDs retrieves sections by stable id, preserving input order.
// Missing ids are skipped, not an error.
func (h *SectionsDBHandler) SelectSectionsByIDs(tenant string, sectionIDs []string) ([]*model.Section, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}
	if len(sectionIDs) == 0 {
		return nil, nil
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_sections_by_ids($1, $2)`,
		tenant,
		pq.Array(sectionIDs),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var sections []*model.Section
	for rows.Next() {
		section := &model.Section{}
		err := scanSection(rows, section)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		sections = append(sections, section)
	}

	return sections, rows.Err()
}

// SelectSectionsForPage retrieves all sections of a page in chunk order
func (h *SectionsDBHandler) SelectSectionsForPage(tenant string, pageID int64) ([]*model.Section, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_sections_for_page($1, $2)`,
		tenant,
		pageID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var sections []*model.Section
	for rows.Next() {
		section := &model.Section{}
		err := scanSection(rows, section)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		sections = append(sections, section)
	}

	return sections, rows.Err()
}

// SelectSectionHashes returns the sorted version hashes of all sections of a
// tenant, the constituents of the AC corpus version.
func (h *SectionsDBHandler) SelectSectionHashes(tenant string) ([]string, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_section_hashes($1)`,
		tenant,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, helper.NewError("scan", err)
		}
		hashes = append(hashes, hash)
	}

	return hashes, rows.Err()
}

// SelectSectionURLs returns section id -> canonical page URL for the given
// section ids. Missing ids are skipped.
func (h *SectionsDBHandler) SelectSectionURLs(tenant string, sectionIDs []string) (map[string]string, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}
	if len(sectionIDs) == 0 {
		return map[string]string{}, nil
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_section_urls($1, $2)`,
		tenant,
		pq.Array(sectionIDs),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	urls := map[string]string{}
	for rows.Next() {
		var sectionID, url string
		if err := rows.Scan(&sectionID, &url); err != nil {
			return nil, helper.NewError("scan", err)
		}
		urls[sectionID] = url
	}

	return urls, rows.Err()
}

// SearchLexical runs full-text search over the tenant's sections.
// An empty or stop-word-only query yields no results, not an error.
func (h *SectionsDBHandler) SearchLexical(ctx context.Context, tenant string, query string, k int) ([]model.LexicalHit, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_sections_lexical($1, $2, $3, $4::regconfig)`,
		tenant,
		query,
		k,
		h.ftsConfig,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []model.LexicalHit
	for rows.Next() {
		var hit model.LexicalHit
		err := rows.Scan(&hit.SectionID, &hit.VersionHash, &hit.URL, &hit.Text, &hit.Rank)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

func scanSection(row rowScanner, section *model.Section) error {
	return row.Scan(
		&section.ID,
		&section.TenantID,
		&section.PageID,
		&section.SectionID,
		&section.Text,
		&section.StartChar,
		&section.EndChar,
		&section.ChunkIndex,
		&section.VersionHash,
		&section.Domain,
		&section.PageType,
		&section.CreatedAt,
	)
}
