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
)

// PagesDBHandlerFunctions defines the interface for Pages database operations.
type PagesDBHandlerFunctions interface {
	InsertPage(tenant string, page *model.Page) error
	UpdatePageContent(tenant string, canonicalURL string, text string, contentHash string) (*model.Page, error)
	SelectPageByURL(tenant string, canonicalURL string) (*model.Page, error)
	SelectPagesForTenant(tenant string) ([]*model.Page, error)
	DeletePagesForTenant(tenant string) error
}

// PagesDBHandler handles page-related database operations
type PagesDBHandler struct {
	db *helper.Database
}

// NewPagesDBHandler creates a new pages database handler.
// It initializes the database connection and loads page-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewPagesDBHandler(db *helper.Database, force bool) (*PagesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	pagesDbHandler := &PagesDBHandler{
		db: db,
	}

	err := loadSql.LoadPagesSql(pagesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load pages sql", err)
	}

	err = pagesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized PagesDBHandler")

	return pagesDbHandler, nil
}

// CreateTable creates the 'pages' table in the database.
// If the table already exists, it does not create it again.
func (h *PagesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_pages();`)
	if err != nil {
		log.Panicf("error initializing pages table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table pages")

	return nil
}

// InsertPage inserts a new page at version 1
func (h *PagesDBHandler) InsertPage(tenant string, page *model.Page) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_page($1, $2, $3, $4, $5, $6, $7, $8)`,
		tenant,
		page.URL,
		page.CanonicalURL,
		page.Text,
		page.ContentHash,
		page.Domain,
		page.PageType,
		page.CrawlDecision,
	)

	err = scanPage(row, page)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdatePageContent replaces a page's text and hash and bumps its version
func (h *PagesDBHandler) UpdatePageContent(tenant string, canonicalURL string, text string, contentHash string) (*model.Page, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_page_content($1, $2, $3, $4)`,
		tenant,
		canonicalURL,
		text,
		contentHash,
	)

	page := &model.Page{}
	err = scanPage(row, page)
	if err == sql.ErrNoRows {
		return nil, helper.NewError("update page", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return page, nil
}

// SelectPageByURL retrieves a page by canonical URL, or ErrNotFound
func (h *PagesDBHandler) SelectPageByURL(tenant string, canonicalURL string) (*model.Page, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_page_by_url($1, $2)`,
		tenant,
		canonicalURL,
	)

	page := &model.Page{}
	err = scanPage(row, page)
	if err == sql.ErrNoRows {
		return nil, helper.NewError("select page", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return page, nil
}

// SelectPagesForTenant retrieves all pages of a tenant
func (h *PagesDBHandler) SelectPagesForTenant(tenant string) ([]*model.Page, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_pages_for_tenant($1)`,
		tenant,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var pages []*model.Page
	for rows.Next() {
		page := &model.Page{}
		err := scanPage(rows, page)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// DeletePagesForTenant removes all pages of a tenant, cascading to sections
func (h *PagesDBHandler) DeletePagesForTenant(tenant string) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	_, err = h.db.Instance.Exec(
		`SELECT delete_pages_for_tenant($1)`,
		tenant,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner, page *model.Page) error {
	return row.Scan(
		&page.ID,
		&page.TenantID,
		&page.URL,
		&page.CanonicalURL,
		&page.Text,
		&page.ContentHash,
		&page.Version,
		&page.Domain,
		&page.PageType,
		&page.CrawlDecision,
		&page.FetchedAt,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
}
