package groundwork

import (
	"context"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/answergrid/groundwork/core/version"
	"github.com/answergrid/groundwork/helper"
	"github.com/answergrid/groundwork/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

func initGroundwork(t *testing.T) *Groundwork {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	g, err := NewGroundwork(dbConfig, nil)
	require.NoError(t, err, "failed to create groundwork")
	require.NotNil(t, g, "expected groundwork to be non-nil")

	t.Cleanup(func() {
		g.Close()
	})

	return g
}

// ingestTestPage ingests a page as a single chunk covering the whole text.
func ingestTestPage(t *testing.T, g *Groundwork, tenant string, url string, text string) *model.Page {
	t.Helper()
	page, stored, err := g.IngestPage(tenant, version.PageInput{
		URL:           url,
		Text:          text,
		Domain:        "example.com",
		PageType:      "docs",
		CrawlDecision: "allow",
		FetchedAt:     time.Now(),
	}, []model.SectionInput{
		{ChunkIndex: 0, Text: text, StartChar: 0, EndChar: len(text)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, stored, "expected one section to be stored")
	return page
}

func TestNewGroundwork(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	t.Run("Valid call NewGroundwork", func(t *testing.T) {
		g, err := NewGroundwork(dbConfig, nil)
		require.NoError(t, err, "Expected NewGroundwork to not return an error")
		require.NotNil(t, g, "Expected NewGroundwork to return a non-nil instance")
		assert.NotNil(t, g.DB, "Expected groundwork to have a database instance")
		assert.NotNil(t, g.Pages, "Expected groundwork to have pages handler")
		assert.NotNil(t, g.Sections, "Expected groundwork to have sections handler")
		assert.NotNil(t, g.Evidence, "Expected groundwork to have evidence handler")
		assert.NotNil(t, g.Entities, "Expected groundwork to have entities handler")
		assert.NotNil(t, g.Embeddings, "Expected groundwork to have embeddings handler")
		assert.NotNil(t, g.Eval, "Expected groundwork to have eval handler")
		assert.NotNil(t, g.Tracker)
		assert.NotNil(t, g.Engine)
		assert.NotNil(t, g.Grounder)
		assert.NotNil(t, g.Auditor)
		assert.NotNil(t, g.Evaluator)
		assert.NotNil(t, g.Detector)
		assert.Equal(t, "deterministic-sha256", g.Embedder.Identity(), "Expected the deterministic default embedder")

		err = g.Close()
		assert.NoError(t, err, "Expected Close to not return an error")
	})

	t.Run("Groundwork with nil database handles Close gracefully", func(t *testing.T) {
		g := &Groundwork{}
		err := g.Close()
		assert.NoError(t, err, "Expected Close to handle nil DB gracefully")
	})
}

func TestIngestPage(t *testing.T) {
	g := initGroundwork(t)
	tenant := uuid.NewString()
	url := "https://example.com/pricing"
	text := "Acme Corp offers a 30-day free trial on all plans."

	page := ingestTestPage(t, g, tenant, url, text)
	assert.Equal(t, 1, page.Version, "Expected a fresh page at version 1")

	t.Run("Identical content is a no-op", func(t *testing.T) {
		again, stored, err := g.IngestPage(tenant, version.PageInput{URL: url, Text: text}, nil)
		require.NoError(t, err)
		assert.Zero(t, stored, "Expected no sections to be stored for unchanged content")
		assert.Equal(t, 1, again.Version)
	})

	t.Run("Whitespace-only change is a no-op", func(t *testing.T) {
		again, stored, err := g.IngestPage(tenant, version.PageInput{URL: url, Text: "  " + text + "\r\n"}, nil)
		require.NoError(t, err)
		assert.Zero(t, stored)
		assert.Equal(t, 1, again.Version)
	})

	t.Run("Changed content bumps the version", func(t *testing.T) {
		changed := "Acme Corp offers a 14-day free trial on all plans."
		again, stored, err := g.IngestPage(tenant, version.PageInput{URL: url, Text: changed}, []model.SectionInput{
			{ChunkIndex: 0, Text: changed, StartChar: 0, EndChar: len(changed)},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, stored)
		assert.Equal(t, 2, again.Version, "Expected changed content to bump the page version")
	})

	t.Run("Invalid tenant is rejected", func(t *testing.T) {
		_, _, err := g.IngestPage("", version.PageInput{URL: url, Text: text}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidTenant)
	})
}

func TestIndexAndRetrieveContent(t *testing.T) {
	g := initGroundwork(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	pricing := "Acme Corp offers a 30-day free trial on all plans."
	weather := "Winters in Oslo are long, dark and usually below freezing."
	ingestTestPage(t, g, tenant, "https://example.com/pricing", pricing)
	ingestTestPage(t, g, tenant, "https://example.com/oslo", weather)

	indexed, err := g.IndexContent(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 2, indexed, "Expected both sections to be embedded")

	t.Run("Re-indexing unchanged content embeds nothing", func(t *testing.T) {
		indexed, err := g.IndexContent(ctx, tenant)
		require.NoError(t, err)
		assert.Zero(t, indexed)
	})

	t.Run("Query matching a section returns it first", func(t *testing.T) {
		results, err := g.RetrieveContent(ctx, tenant, pricing, nil)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "https://example.com/pricing", results[0].URL)
		assert.NotEmpty(t, results[0].Snippet)
		assert.NotEmpty(t, results[0].VersionHash)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "Expected results sorted by fused score")
		}
	})

	t.Run("Foreign tenant sees nothing", func(t *testing.T) {
		results, err := g.RetrieveContent(ctx, uuid.NewString(), pricing, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Corpus version moves with the corpus", func(t *testing.T) {
		before, err := g.CorpusVersion(tenant, model.CorpusContent)
		require.NoError(t, err)
		require.NotEmpty(t, before)

		ingestTestPage(t, g, tenant, "https://example.com/docs", "The API rate limit is 100 requests per minute.")
		_, err = g.IndexContent(ctx, tenant)
		require.NoError(t, err)

		after, err := g.CorpusVersion(tenant, model.CorpusContent)
		require.NoError(t, err)
		assert.NotEqual(t, before, after, "Expected the corpus version to change after new content")
	})
}

func TestGroundClaimAndVerify(t *testing.T) {
	g := initGroundwork(t)
	tenant := uuid.NewString()
	url := "https://example.com/pricing"
	text := "Acme Corp offers a 30-day free trial. Support is available around the clock."
	page := ingestTestPage(t, g, tenant, url, text)

	sections, err := g.Sections.SelectSectionsForPage(tenant, page.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	sectionID := sections[0].SectionID

	t.Run("Exact claim is grounded with offset-exact evidence", func(t *testing.T) {
		result, err := g.GroundClaim(tenant, "Acme Corp offers a 30-day free trial.", []string{sectionID})
		require.NoError(t, err)
		require.True(t, result.Grounded, "Expected the literal claim to be grounded")
		require.NotNil(t, result.Evidence)
		assert.Equal(t, sectionID, result.Evidence.SectionID)
		assert.Equal(t, text[result.Evidence.StartChar:result.Evidence.EndChar], result.Evidence.QuoteSpan)

		err = g.VerifyEvidence(tenant, result.Evidence.EvidenceID)
		assert.NoError(t, err, "Expected fresh evidence to verify")
	})

	t.Run("Collected evidence carries the best supporting quote", func(t *testing.T) {
		collected, err := g.CollectEvidence(tenant, "How long is the free trial?", []string{sectionID})
		require.NoError(t, err)
		require.Len(t, collected, 1)
		assert.Equal(t, "Acme Corp offers a 30-day free trial.", collected[0].QuoteSpan)
		assert.Equal(t, text[collected[0].StartChar:collected[0].EndChar], collected[0].QuoteSpan)
		assert.Equal(t, url, collected[0].URL)

		err = g.VerifyEvidence(tenant, collected[0].EvidenceID)
		assert.NoError(t, err, "Expected collected evidence to verify against the live section")
	})

	t.Run("Paraphrased claim stays ungrounded", func(t *testing.T) {
		result, err := g.GroundClaim(tenant, "Acme gives you a month to try it out.", []string{sectionID})
		require.NoError(t, err)
		assert.False(t, result.Grounded)
		assert.Nil(t, result.Evidence, "Expected no evidence record for an ungrounded claim")
	})

	t.Run("Evidence goes stale when the section changes", func(t *testing.T) {
		result, err := g.GroundClaim(tenant, "Support is available around the clock.", []string{sectionID})
		require.NoError(t, err)
		require.True(t, result.Grounded)

		changed := "Acme Corp offers a 14-day free trial. Support is available around the clock."
		_, stored, err := g.IngestPage(tenant, version.PageInput{URL: url, Text: changed}, []model.SectionInput{
			{ChunkIndex: 0, Text: changed, StartChar: 0, EndChar: len(changed)},
		})
		require.NoError(t, err)
		require.Equal(t, 1, stored)

		err = g.VerifyEvidence(tenant, result.Evidence.EvidenceID)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrStaleEvidence, "Expected evidence against the old section version to be stale")
	})
}

func TestIndexAndRetrieveEntities(t *testing.T) {
	g := initGroundwork(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	text := "Acme Corp acquired Globex in 2019 for an undisclosed sum."
	page := ingestTestPage(t, g, tenant, "https://example.com/news", text)
	sections, err := g.Sections.SelectSectionsForPage(tenant, page.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)

	err = g.Entities.UpsertEntity(tenant, &model.Entity{EntityID: "ent_acme", CanonicalName: "Acme Corp", Type: "organization"})
	require.NoError(t, err)
	err = g.Entities.UpsertEntity(tenant, &model.Entity{EntityID: "ent_globex", CanonicalName: "Globex", Type: "organization"})
	require.NoError(t, err)
	err = g.Entities.InsertEntityMention(tenant, &model.EntityMention{
		EntityID:    "ent_acme",
		SectionID:   sections[0].SectionID,
		StartOffset: 0,
		EndOffset:   9,
		QuoteSpan:   "Acme Corp",
		Confidence:  0.98,
	})
	require.NoError(t, err)

	indexed, err := g.IndexEntities(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 2, indexed)

	t.Run("Query matching a canonical name returns it first", func(t *testing.T) {
		results, err := g.RetrieveEntities(ctx, tenant, "Acme Corp", nil)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "ent_acme", results[0].EntityID)
		require.NotEmpty(t, results[0].Mentions, "Expected supporting mentions to be attached")
		assert.Equal(t, "Acme Corp", results[0].Mentions[0].QuoteSpan)
		assert.Equal(t, "https://example.com/news", results[0].Mentions[0].URL)
	})

	t.Run("Entity corpus version is recorded", func(t *testing.T) {
		corpusVersion, err := g.CorpusVersion(tenant, model.CorpusEntity)
		require.NoError(t, err)
		assert.NotEmpty(t, corpusVersion)
	})
}

func TestRunLeakageCheck(t *testing.T) {
	g := initGroundwork(t)
	ctx := context.Background()

	tenantA := uuid.NewString()
	tenantB := uuid.NewString()
	ingestTestPage(t, g, tenantA, "https://a.example.com/pricing", "Tenant A prices start at 10 euro per seat.")
	ingestTestPage(t, g, tenantB, "https://b.example.com/pricing", "Tenant B prices start at 99 dollar per seat.")
	_, err := g.IndexContent(ctx, tenantA)
	require.NoError(t, err)
	_, err = g.IndexContent(ctx, tenantB)
	require.NoError(t, err)

	report, err := g.RunLeakageCheck(ctx, map[string][]string{
		tenantA: {"Tenant A prices start at 10 euro per seat."},
		tenantB: {"Tenant B prices start at 99 dollar per seat."},
	})
	require.NoError(t, err)
	assert.True(t, report.OK, "Expected isolated tenants to pass the leakage check")
	assert.Empty(t, report.Findings)

	for _, tenant := range []string{tenantA, tenantB} {
		events, err := g.Eval.SelectMonitorEvents(tenant, model.EventLeakagePass, 5)
		require.NoError(t, err)
		assert.Len(t, events, 1, "Expected one pass event per tenant")
		assert.Equal(t, model.SeverityLow, events[0].Severity)
	}
}

// evalResults builds 20 per-query outcomes with the given citation rate.
func evalResults(citationRate float64) []*model.EvalResult {
	const queries = 20
	cited := int(citationRate * queries)

	var results []*model.EvalResult
	for i := 0; i < queries; i++ {
		results = append(results, &model.EvalResult{
			QueryID:       fmt.Sprintf("q_%02d", i),
			Domain:        "pricing",
			MentionOK:     true,
			CitationOK:    i < cited,
			AttributionOK: true,
		})
	}
	return results
}

func TestEvalRunsAndAnomalies(t *testing.T) {
	g := initGroundwork(t)
	tenant := uuid.NewString()

	run, err := g.RecordEvalRun(tenant, "nightly", evalResults(0.85))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, run.RunID)

	metrics, err := g.ComputeEvalMetrics(tenant, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 20, metrics.Queries)
	assert.InDelta(t, 1.0, metrics.AnswerRate, 1e-9)
	assert.InDelta(t, 0.85, metrics.CitationRate, 1e-9)
	assert.Positive(t, metrics.CompositeIndex)

	t.Run("Stable runs emit no anomalies", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			_, err := g.RecordEvalRun(tenant, "nightly", evalResults(0.85))
			require.NoError(t, err)
		}
		events, err := g.DetectAnomalies(tenant, 0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("Citation drop emits one high severity event", func(t *testing.T) {
		_, err := g.RecordEvalRun(tenant, "nightly", evalResults(0.60))
		require.NoError(t, err)

		events, err := g.DetectAnomalies(tenant, 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, model.EventCitationDrop, events[0].EventType)
		assert.Equal(t, model.SeverityHigh, events[0].Severity)
	})

	t.Run("Repeated detection within the cooldown is suppressed", func(t *testing.T) {
		_, err := g.RecordEvalRun(tenant, "nightly", evalResults(0.60))
		require.NoError(t, err)

		events, err := g.DetectAnomalies(tenant, 0)
		require.NoError(t, err)
		assert.Empty(t, events, "Expected the notification cooldown to suppress the repeat")
	})
}

func TestPurgeTenant(t *testing.T) {
	g := initGroundwork(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	text := "Acme Corp offers a 30-day free trial on all plans."
	ingestTestPage(t, g, tenant, "https://example.com/pricing", text)
	_, err := g.IndexContent(ctx, tenant)
	require.NoError(t, err)
	err = g.Entities.UpsertEntity(tenant, &model.Entity{EntityID: "ent_acme", CanonicalName: "Acme Corp", Type: "organization"})
	require.NoError(t, err)
	_, err = g.RecordEvalRun(tenant, "nightly", evalResults(0.85))
	require.NoError(t, err)

	err = g.PurgeTenant(tenant)
	require.NoError(t, err)

	_, err = g.Pages.SelectPageByURL(tenant, "https://example.com/pricing")
	assert.ErrorIs(t, err, model.ErrNotFound, "Expected the page to be gone")

	results, err := g.RetrieveContent(ctx, tenant, text, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = g.CorpusVersion(tenant, model.CorpusContent)
	assert.ErrorIs(t, err, model.ErrNotFound)

	runs, err := g.Eval.SelectEvalRuns(tenant, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
