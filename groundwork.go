package groundwork

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/answergrid/groundwork/core/audit"
	"github.com/answergrid/groundwork/core/embedding"
	"github.com/answergrid/groundwork/core/evals"
	"github.com/answergrid/groundwork/core/grounding"
	"github.com/answergrid/groundwork/core/retrieval"
	"github.com/answergrid/groundwork/core/version"
	"github.com/answergrid/groundwork/database"
	"github.com/answergrid/groundwork/helper"
	"github.com/answergrid/groundwork/model"
	loadSql "github.com/answergrid/groundwork/sql"
	"github.com/google/uuid"
)

// Groundwork provides a unified interface to the retrieval and grounding
// engine: tenant-scoped ingestion with change tracking, hybrid content
// retrieval, entity retrieval, evidence grounding, leakage auditing and eval
// monitoring.
type Groundwork struct {
	DB         *helper.Database
	Pages      *database.PagesDBHandler
	Sections   *database.SectionsDBHandler
	Evidence   *database.EvidenceDBHandler
	Entities   *database.EntitiesDBHandler
	Embeddings *database.EmbeddingsDBHandler
	Eval       *database.EvalDBHandler

	Tracker   *version.Tracker
	Engine    *retrieval.Engine
	Grounder  *grounding.Grounder
	Auditor   *audit.Auditor
	Evaluator *evals.Evaluator
	Detector  *evals.Detector
	Embedder  embedding.Provider
	// Logging
	log *slog.Logger
}

// NewGroundwork creates a new Groundwork instance with all handlers
// initialized. A nil embedder defaults to the deterministic provider wrapped
// with a retry, which keeps retrieval reproducible without a model runtime.
func NewGroundwork(config *helper.DatabaseConfiguration, embedder embedding.Provider) (*Groundwork, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	if embedder == nil {
		embedder = embedding.NewResilient(embedding.NewDeterministicProvider(), 30*time.Second)
	}

	// Initialize database
	db := helper.NewDatabase("groundwork", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (pages first, then sections)
	// force=false to not reload if functions already exist
	pages, err := database.NewPagesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create pages handler", err)
	}

	sections, err := database.NewSectionsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create sections handler", err)
	}

	evidence, err := database.NewEvidenceDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create evidence handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	embeddings, err := database.NewEmbeddingsDBHandler(db, embedder.Dim(), false)
	if err != nil {
		return nil, helper.NewError("create embeddings handler", err)
	}

	eval, err := database.NewEvalDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create eval handler", err)
	}

	tracker := version.NewTracker(pages, sections, logger)
	engine := retrieval.NewEngine(embedder, embeddings, sections, embeddings, entities, sections, logger)
	grounder := grounding.NewGrounder(sections, evidence, logger)
	auditor := audit.NewAuditor(engine, &ownershipStore{sections: sections, entities: entities}, eval, logger)
	evaluator := evals.NewEvaluator(eval, logger)
	detector := evals.NewDetector(evaluator, eval, eval, logger)

	return &Groundwork{
		DB:         db,
		Pages:      pages,
		Sections:   sections,
		Evidence:   evidence,
		Entities:   entities,
		Embeddings: embeddings,
		Eval:       eval,
		Tracker:    tracker,
		Engine:     engine,
		Grounder:   grounder,
		Auditor:    auditor,
		Evaluator:  evaluator,
		Detector:   detector,
		Embedder:   embedder,
		log:        logger,
	}, nil
}

// ownershipStore adapts the section and entity handlers to the auditor's view.
type ownershipStore struct {
	sections *database.SectionsDBHandler
	entities *database.EntitiesDBHandler
}

func (o *ownershipStore) SelectSection(tenant string, sectionID string) (*model.Section, error) {
	return o.sections.SelectSection(tenant, sectionID)
}

func (o *ownershipStore) SelectEntity(tenant string, entityID string) (*model.Entity, error) {
	return o.entities.SelectEntity(tenant, entityID)
}

// Close closes the database connection
func (g *Groundwork) Close() error {
	if g.DB != nil && g.DB.Instance != nil {
		return g.DB.Instance.Close()
	}
	return nil
}

// IngestPage upserts a page and, unless its content is unchanged, replaces
// its sections with the given pre-chunked ones. Unchanged content skips the
// section replacement entirely, so re-crawling a stable site is cheap.
// Returns the page and the number of sections stored.
func (g *Groundwork) IngestPage(tenant string, input version.PageInput, chunks []model.SectionInput) (*model.Page, int, error) {
	page, unchanged, err := g.Tracker.UpsertPage(tenant, input)
	if err != nil {
		return nil, 0, helper.NewError("upsert page", err)
	}
	if unchanged {
		return page, 0, nil
	}

	sections, err := g.Tracker.ReplaceSections(tenant, page, chunks)
	if err != nil {
		return nil, 0, helper.NewError("replace sections", err)
	}

	return page, len(sections), nil
}

// IndexContent embeds every section whose version hash is not yet indexed for
// the current embedder and refreshes the tenant's content corpus version.
// Already-indexed sections are skipped, so re-indexing after a partial crawl
// only pays for what changed.
func (g *Groundwork) IndexContent(ctx context.Context, tenant string) (int, error) {
	indexed, err := g.Embeddings.SelectIndexedContent(tenant, g.Embedder.Identity())
	if err != nil {
		return 0, helper.NewError("select indexed content", err)
	}

	pages, err := g.Pages.SelectPagesForTenant(tenant)
	if err != nil {
		return 0, helper.NewError("select pages", err)
	}

	var pending []*model.Section
	for _, page := range pages {
		sections, err := g.Sections.SelectSectionsForPage(tenant, page.ID)
		if err != nil {
			return 0, helper.NewError("select sections", err)
		}
		for _, section := range sections {
			if indexed[section.SectionID] != section.VersionHash {
				pending = append(pending, section)
			}
		}
	}

	if len(pending) > 0 {
		texts := make([]string, len(pending))
		for i, section := range pending {
			texts[i] = section.Text
		}
		vectors, err := g.Embedder.Embed(ctx, texts)
		if err != nil {
			return 0, helper.NewError("embed sections", err)
		}
		for i, section := range pending {
			err := g.Embeddings.ReplaceContentEmbedding(tenant, section.SectionID, section.VersionHash, g.Embedder.Identity(), vectors[i])
			if err != nil {
				return i, helper.NewError("replace content embedding", err)
			}
		}
	}

	corpusVersion, err := g.Tracker.ContentCorpusVersion(tenant)
	if err != nil {
		return len(pending), helper.NewError("compute corpus version", err)
	}
	err = g.Embeddings.UpsertCorpusVersion(tenant, model.CorpusContent, corpusVersion)
	if err != nil {
		return len(pending), helper.NewError("upsert corpus version", err)
	}

	g.log.Info("Indexed content", slog.String("tenant", tenant), slog.Int("sections", len(pending)), slog.String("corpus_version", corpusVersion))
	return len(pending), nil
}

// IndexEntities embeds every entity's canonical name and refreshes the
// tenant's entity corpus version.
func (g *Groundwork) IndexEntities(ctx context.Context, tenant string) (int, error) {
	names, err := g.Entities.SelectEntityNames(tenant)
	if err != nil {
		return 0, helper.NewError("select entity names", err)
	}

	entityIDs := make([]string, 0, len(names))
	texts := make([]string, 0, len(names))
	for entityID, name := range names {
		entityIDs = append(entityIDs, entityID)
		texts = append(texts, name)
	}

	if len(texts) > 0 {
		vectors, err := g.Embedder.Embed(ctx, texts)
		if err != nil {
			return 0, helper.NewError("embed entities", err)
		}
		for i, entityID := range entityIDs {
			err := g.Embeddings.ReplaceEntityEmbedding(tenant, entityID, g.Embedder.Identity(), vectors[i])
			if err != nil {
				return i, helper.NewError("replace entity embedding", err)
			}
		}
	}

	corpusVersion := version.EntityCorpusVersion(names)
	err = g.Embeddings.UpsertCorpusVersion(tenant, model.CorpusEntity, corpusVersion)
	if err != nil {
		return len(texts), helper.NewError("upsert corpus version", err)
	}

	g.log.Info("Indexed entities", slog.String("tenant", tenant), slog.Int("entities", len(texts)), slog.String("corpus_version", corpusVersion))
	return len(texts), nil
}

// RetrieveContent runs a hybrid query against the tenant's content corpus.
func (g *Groundwork) RetrieveContent(ctx context.Context, tenant string, query string, config *model.QueryConfig) ([]*model.RetrievalResult, error) {
	return g.Engine.RetrieveContent(ctx, tenant, query, config)
}

// RetrieveEntities runs a vector query against the tenant's entity corpus.
func (g *Groundwork) RetrieveEntities(ctx context.Context, tenant string, query string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	return g.Engine.RetrieveEntities(ctx, tenant, query, config)
}

// GroundClaim tries to ground a claim in the given candidate sections.
// An ungrounded claim is a result, not an error.
func (g *Groundwork) GroundClaim(tenant string, claim string, sectionIDs []string) (*model.GroundingResult, error) {
	return g.Grounder.GroundClaim(tenant, claim, sectionIDs)
}

// CollectEvidence stores the best supporting quote span of each candidate
// section for the query, skipping sections without one.
func (g *Groundwork) CollectEvidence(tenant string, query string, sectionIDs []string) ([]*model.Evidence, error) {
	return g.Grounder.CollectEvidence(tenant, query, sectionIDs)
}

// VerifyEvidence re-checks a stored evidence record against the current
// section text.
func (g *Groundwork) VerifyEvidence(tenant string, evidenceID uuid.UUID) error {
	return g.Grounder.Verify(tenant, evidenceID)
}

// RunLeakageCheck probes the retrieval surface for cross-tenant leakage with
// the given per-tenant probe queries.
func (g *Groundwork) RunLeakageCheck(ctx context.Context, probes map[string][]string) (*model.LeakageReport, error) {
	return g.Auditor.CheckLeakage(ctx, probes)
}

// RecordEvalRun persists one eval harness execution with its per-query results.
func (g *Groundwork) RecordEvalRun(tenant string, label string, results []*model.EvalResult) (*model.EvalRun, error) {
	return g.Evaluator.RecordRun(tenant, label, results)
}

// ComputeEvalMetrics aggregates the stored results of a run.
func (g *Groundwork) ComputeEvalMetrics(tenant string, runID uuid.UUID) (*model.RunMetrics, error) {
	return g.Evaluator.ComputeMetrics(tenant, runID)
}

// DetectAnomalies compares the latest run against the recent baseline and
// records monitor events for metric regressions. A non-positive lookbackN
// means the default lookback.
func (g *Groundwork) DetectAnomalies(tenant string, lookbackN int) ([]*model.MonitorEvent, error) {
	return g.Detector.DetectAnomalies(tenant, lookbackN)
}

// CorpusVersion returns the tenant's current version of the given corpus.
func (g *Groundwork) CorpusVersion(tenant string, corpus model.CorpusKind) (string, error) {
	return g.Embeddings.SelectCorpusVersion(tenant, corpus)
}

// PurgeTenant removes everything stored for a tenant: eval data, embeddings,
// evidence, entities and pages with their sections.
func (g *Groundwork) PurgeTenant(tenant string) error {
	if err := g.Eval.DeleteEvalForTenant(tenant); err != nil {
		return helper.NewError("delete eval data", err)
	}
	if err := g.Embeddings.DeleteEmbeddingsForTenant(tenant); err != nil {
		return helper.NewError("delete embeddings", err)
	}
	if err := g.Evidence.DeleteEvidenceForTenant(tenant); err != nil {
		return helper.NewError("delete evidence", err)
	}
	if err := g.Entities.DeleteEntitiesForTenant(tenant); err != nil {
		return helper.NewError("delete entities", err)
	}
	if err := g.Pages.DeletePagesForTenant(tenant); err != nil {
		return helper.NewError("delete pages", err)
	}

	g.log.Info("Purged tenant", slog.String("tenant", tenant))
	return nil
}
