package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/answergrid/groundwork/model"
)

// Retriever is the retrieval surface the auditor probes.
type Retriever interface {
	RetrieveContent(ctx context.Context, tenant string, query string, config *model.QueryConfig) ([]*model.RetrievalResult, error)
	RetrieveEntities(ctx context.Context, tenant string, query string, config *model.QueryConfig) ([]*model.EntityResult, error)
}

// OwnershipStore asserts that a returned candidate belongs to the tenant it
// was returned to.
type OwnershipStore interface {
	SelectSection(tenant string, sectionID string) (*model.Section, error)
	SelectEntity(tenant string, entityID string) (*model.Entity, error)
}

// EventStore records audit outcomes as monitor events and exposes past ones
// for the cooldown.
type EventStore interface {
	InsertMonitorEvent(tenant string, event *model.MonitorEvent) error
	SelectMonitorEvents(tenant string, eventType string, limit int) ([]*model.MonitorEvent, error)
}

// DefaultEventCooldown suppresses re-emitting the same outcome for a tenant
// within the window. Detection itself is never suppressed: the report always
// carries every finding.
const DefaultEventCooldown = 24 * time.Hour

// Auditor probes the retrieval surface for cross-tenant leakage: it runs
// foreign tenants' probe queries as each tenant and asserts that every
// returned candidate resolves inside that tenant's own store. Any candidate
// that does not is a leak. Failures are always recorded as high-severity
// events; detection is never suppressed.
type Auditor struct {
	retriever Retriever
	ownership OwnershipStore
	events    EventStore
	logger    *slog.Logger

	cooldown time.Duration
	now      func() time.Time
}

// NewAuditor creates a leakage auditor with the default event cooldown.
func NewAuditor(retriever Retriever, ownership OwnershipStore, events EventStore, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		retriever: retriever,
		ownership: ownership,
		events:    events,
		logger:    logger,
		cooldown:  DefaultEventCooldown,
		now:       time.Now,
	}
}

// CheckLeakage runs every foreign tenant's probe queries as each tenant in
// probes and verifies ownership of every candidate, over both the content and
// the entity corpus. One report covers all tenant pairs.
func (a *Auditor) CheckLeakage(ctx context.Context, probes map[string][]string) (*model.LeakageReport, error) {
	report := &model.LeakageReport{OK: true, CheckedAt: time.Now().UTC()}

	for tenant := range probes {
		for foreign, queries := range probes {
			if foreign == tenant {
				continue
			}
			for _, query := range queries {
				finding, err := a.probeTenant(ctx, tenant, foreign, query)
				if err != nil {
					return nil, err
				}
				if finding != nil {
					report.OK = false
					report.Findings = append(report.Findings, *finding)
				}
			}
		}

		if err := a.recordOutcome(tenant, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (a *Auditor) probeTenant(ctx context.Context, tenant string, foreign string, query string) (*model.LeakageFinding, error) {
	finding := &model.LeakageFinding{
		TenantID:    tenant,
		OwnerTenant: foreign,
		Query:       query,
	}

	results, err := a.retriever.RetrieveContent(ctx, tenant, query, nil)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		owned, err := a.ownsSection(tenant, result.SectionID)
		if err != nil {
			return nil, err
		}
		if !owned {
			finding.Corpus = string(model.CorpusContent)
			finding.SectionIDs = append(finding.SectionIDs, result.SectionID)
			finding.OffendingURL = append(finding.OffendingURL, result.URL)
		}
	}

	entityResults, err := a.retriever.RetrieveEntities(ctx, tenant, query, nil)
	if err != nil {
		return nil, err
	}
	for _, result := range entityResults {
		owned, err := a.ownsEntity(tenant, result.EntityID)
		if err != nil {
			return nil, err
		}
		if !owned {
			if finding.Corpus == "" {
				finding.Corpus = string(model.CorpusEntity)
			}
			finding.EntityIDs = append(finding.EntityIDs, result.EntityID)
		}
	}

	if len(finding.SectionIDs) == 0 && len(finding.EntityIDs) == 0 {
		return nil, nil
	}
	a.logger.Error("Cross-tenant leakage detected",
		"tenant", tenant,
		"owner", foreign,
		"sections", len(finding.SectionIDs),
		"entities", len(finding.EntityIDs),
	)
	return finding, nil
}

func (a *Auditor) ownsSection(tenant string, sectionID string) (bool, error) {
	_, err := a.ownership.SelectSection(tenant, sectionID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *Auditor) ownsEntity(tenant string, entityID string) (bool, error) {
	_, err := a.ownership.SelectEntity(tenant, entityID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// recordOutcome writes the audit result for one tenant: a failure at high
// severity, a pass at low severity. Re-emitting the same outcome within the
// cooldown window is suppressed; the finding still appears in the report.
func (a *Auditor) recordOutcome(tenant string, report *model.LeakageReport) error {
	var tenantFindings []model.LeakageFinding
	for _, finding := range report.Findings {
		if finding.TenantID == tenant {
			tenantFindings = append(tenantFindings, finding)
		}
	}

	event := &model.MonitorEvent{
		EventType: model.EventLeakagePass,
		Severity:  model.SeverityLow,
	}
	if len(tenantFindings) > 0 {
		sections := 0
		entities := 0
		for _, finding := range tenantFindings {
			sections += len(finding.SectionIDs)
			entities += len(finding.EntityIDs)
		}
		event = &model.MonitorEvent{
			EventType: model.EventLeakageFail,
			Severity:  model.SeverityHigh,
			Details: model.Metadata{
				"findings": len(tenantFindings),
				"sections": sections,
				"entities": entities,
			},
		}
	}

	recent, err := a.events.SelectMonitorEvents(tenant, event.EventType, 1)
	if err != nil {
		return err
	}
	if len(recent) > 0 && a.now().Sub(recent[0].CreatedAt) < a.cooldown {
		a.logger.Info("Leakage outcome unchanged, event suppressed by cooldown",
			"tenant", tenant, "event_type", event.EventType)
		return nil
	}

	return a.events.InsertMonitorEvent(tenant, event)
}
