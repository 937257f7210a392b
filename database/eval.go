package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/answergrid/groundwork/helper"
	"github.com/answergrid/groundwork/model"
	loadSql "github.com/answergrid/groundwork/sql"
	"github.com/google/uuid"
)

// EvalDBHandlerFunctions defines the interface for Eval database operations.
type EvalDBHandlerFunctions interface {
	InsertEvalRun(tenant string, run *model.EvalRun) error
	InsertEvalResult(tenant string, result *model.EvalResult) error
	SelectEvalRuns(tenant string, limit int) ([]*model.EvalRun, error)
	SelectResultsForRun(tenant string, runID uuid.UUID) ([]*model.EvalResult, error)
	InsertMonitorEvent(tenant string, event *model.MonitorEvent) error
	SelectMonitorEvents(tenant string, eventType string, limit int) ([]*model.MonitorEvent, error)
	DeleteEvalForTenant(tenant string) error
}

// EvalDBHandler handles eval-run and monitor-event database operations
type EvalDBHandler struct {
	db *helper.Database
}

// NewEvalDBHandler creates a new eval database handler.
// It initializes the database connection and loads eval-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEvalDBHandler(db *helper.Database, force bool) (*EvalDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	evalDbHandler := &EvalDBHandler{
		db: db,
	}

	err := loadSql.LoadEvalSql(evalDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load eval sql", err)
	}

	err = evalDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EvalDBHandler")

	return evalDbHandler, nil
}

// CreateTable creates the eval_runs, eval_results and monitor_events tables.
// If the tables already exist, it does not create them again.
func (h *EvalDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_eval();`)
	if err != nil {
		log.Panicf("error initializing eval tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables eval_runs, eval_results, monitor_events")

	return nil
}

// InsertEvalRun inserts a new eval run. A zero run id gets a fresh one.
func (h *EvalDBHandler) InsertEvalRun(tenant string, run *model.EvalRun) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}
	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_eval_run($1, $2, $3)`,
		tenant,
		run.RunID,
		run.Label,
	)

	err = row.Scan(
		&run.ID,
		&run.TenantID,
		&run.RunID,
		&run.Label,
		&run.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// InsertEvalResult inserts a new per-query eval result
func (h *EvalDBHandler) InsertEvalResult(tenant string, result *model.EvalResult) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_eval_result($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tenant,
		result.RunID,
		result.QueryID,
		result.Domain,
		result.Refused,
		result.MentionOK,
		result.CitationOK,
		result.AttributionOK,
		result.HallucinationFlag,
		result.EvidenceCount,
		result.Confidence,
	)

	err = scanEvalResult(row, result)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEvalRuns retrieves the most recent eval runs of a tenant, newest first
func (h *EvalDBHandler) SelectEvalRuns(tenant string, limit int) ([]*model.EvalRun, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_eval_runs($1, $2)`,
		tenant,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var runs []*model.EvalRun
	for rows.Next() {
		run := &model.EvalRun{}
		err := rows.Scan(
			&run.ID,
			&run.TenantID,
			&run.RunID,
			&run.Label,
			&run.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// SelectResultsForRun retrieves all results of a run in query id order
func (h *EvalDBHandler) SelectResultsForRun(tenant string, runID uuid.UUID) ([]*model.EvalResult, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_results_for_run($1, $2)`,
		tenant,
		runID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.EvalResult
	for rows.Next() {
		result := &model.EvalResult{}
		err := scanEvalResult(rows, result)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// InsertMonitorEvent inserts a new anomaly or leakage finding
func (h *EvalDBHandler) InsertMonitorEvent(tenant string, event *model.MonitorEvent) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_monitor_event($1, $2, $3, $4)`,
		tenant,
		event.EventType,
		event.Severity,
		event.Details,
	)

	err = row.Scan(
		&event.ID,
		&event.TenantID,
		&event.EventID,
		&event.EventType,
		&event.Severity,
		&event.Details,
		&event.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectMonitorEvents retrieves monitor events of a tenant, newest first.
// An empty eventType matches all event types.
func (h *EvalDBHandler) SelectMonitorEvents(tenant string, eventType string, limit int) ([]*model.MonitorEvent, error) {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_monitor_events($1, $2, $3)`,
		tenant,
		eventType,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var events []*model.MonitorEvent
	for rows.Next() {
		event := &model.MonitorEvent{}
		err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&event.EventID,
			&event.EventType,
			&event.Severity,
			&event.Details,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// DeleteEvalForTenant removes all eval runs, results and monitor events of a tenant
func (h *EvalDBHandler) DeleteEvalForTenant(tenant string) error {
	tenant, err := requireTenant(tenant)
	if err != nil {
		return err
	}

	_, err = h.db.Instance.Exec(
		`SELECT delete_eval_for_tenant($1)`,
		tenant,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanEvalResult(row rowScanner, result *model.EvalResult) error {
	return row.Scan(
		&result.ID,
		&result.TenantID,
		&result.RunID,
		&result.QueryID,
		&result.Domain,
		&result.Refused,
		&result.MentionOK,
		&result.CitationOK,
		&result.AttributionOK,
		&result.HallucinationFlag,
		&result.EvidenceCount,
		&result.Confidence,
		&result.CreatedAt,
	)
}
