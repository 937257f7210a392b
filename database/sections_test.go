package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/answergrid/groundwork/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTestPage(t *testing.T, pagesDbHandler *PagesDBHandler, tenant string, url string) *model.Page {
	t.Helper()
	page := testPage(url)
	err := pagesDbHandler.InsertPage(tenant, page)
	require.NoError(t, err)
	return page
}

func testSection(pageID int64, chunkIndex int, text string) *model.Section {
	return &model.Section{
		PageID:      pageID,
		SectionID:   fmt.Sprintf("sec_%016x", chunkIndex),
		Text:        text,
		StartChar:   0,
		EndChar:     len(text),
		ChunkIndex:  chunkIndex,
		VersionHash: fmt.Sprintf("hash_%v", chunkIndex),
		Domain:      "pricing",
		PageType:    "marketing",
	}
}

func TestSectionsNewSectionsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewSectionsDBHandler", func(t *testing.T) {
		sectionsDbHandler, err := NewSectionsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewSectionsDBHandler to not return an error")
		require.NotNil(t, sectionsDbHandler, "Expected NewSectionsDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewSectionsDBHandler with nil database", func(t *testing.T) {
		_, err := NewSectionsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating SectionsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestSectionsUpsert(t *testing.T) {
	database := initDB(t)
	tenant := uuid.NewString()

	pagesDbHandler, err := NewPagesDBHandler(database, true)
	require.NoError(t, err)
	sectionsDbHandler, err := NewSectionsDBHandler(database, true)
	require.NoError(t, err)

	page := insertTestPage(t, pagesDbHandler, tenant, "https://acme.example/pricing")

	t.Run("Insert section", func(t *testing.T) {
		section := testSection(page.ID, 0, "Acme Corp offers a 30-day free trial.")
		err := sectionsDbHandler.UpsertSection(tenant, section)
		assert.NoError(t, err, "Expected UpsertSection to not return an error")
		assert.NotZero(t, section.ID, "Expected inserted section to have an id")
		assert.Equal(t, tenant, section.TenantID)
	})

	t.Run("Upsert keeps stable id and replaces content", func(t *testing.T) {
		section := testSection(page.ID, 0, "Acme Corp offers a 14-day free trial.")
		section.VersionHash = "hash_changed"
		err := sectionsDbHandler.UpsertSection(tenant, section)
		assert.NoError(t, err)

		retrieved, err := sectionsDbHandler.SelectSection(tenant, section.SectionID)
		assert.NoError(t, err)
		assert.Equal(t, "Acme Corp offers a 14-day free trial.", retrieved.Text, "Expected text to be replaced")
		assert.Equal(t, "hash_changed", retrieved.VersionHash, "Expected version hash to be replaced")

		sections, err := sectionsDbHandler.SelectSectionsForPage(tenant, page.ID)
		assert.NoError(t, err)
		assert.Len(t, sections, 1, "Expected upsert to not duplicate the section")
	})

	t.Run("Invalid tenant", func(t *testing.T) {
		err := sectionsDbHandler.UpsertSection("", testSection(page.ID, 1, "text"))
		assert.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInvalidTenant), "Expected ErrInvalidTenant")
	})
}

func TestSectionsSelectByIDs(t *testing.T) {
	database := initDB(t)
	tenant := uuid.NewString()

	pagesDbHandler, err := NewPagesDBHandler(database, true)
	require.NoError(t, err)
	sectionsDbHandler, err := NewSectionsDBHandler(database, true)
	require.NoError(t, err)

	page := insertTestPage(t, pagesDbHandler, tenant, "https://acme.example/docs")

	ids := []string{}
	for i := 0; i < 3; i++ {
		section := testSection(page.ID, i, fmt.Sprintf("Section text %v about features.", i))
		err := sectionsDbHandler.UpsertSection(tenant, section)
		require.NoError(t, err)
		ids = append(ids, section.SectionID)
	}

	t.Run("Preserves input order", func(t *testing.T) {
		reversed := []string{ids[2], ids[0]}
		sections, err := sectionsDbHandler.SelectSectionsByIDs(tenant, reversed)
		assert.NoError(t, err)
		require.Len(t, sections, 2)
		assert.Equal(t, ids[2], sections[0].SectionID, "Expected first requested id first")
		assert.Equal(t, ids[0], sections[1].SectionID, "Expected second requested id second")
	})

	t.Run("Missing ids are skipped", func(t *testing.T) {
		sections, err := sectionsDbHandler.SelectSectionsByIDs(tenant, []string{ids[1], "sec_missing"})
		assert.NoError(t, err)
		assert.Len(t, sections, 1, "Expected missing id to be skipped, not an error")
	})

	t.Run("Empty input", func(t *testing.T) {
		sections, err := sectionsDbHandler.SelectSectionsByIDs(tenant, nil)
		assert.NoError(t, err)
		assert.Nil(t, sections)
	})
}

func TestSectionsSelectHashes(t *testing.T) {
	database := initDB(t)
	tenant := uuid.NewString()

	pagesDbHandler, err := NewPagesDBHandler(database, true)
	require.NoError(t, err)
	sectionsDbHandler, err := NewSectionsDBHandler(database, true)
	require.NoError(t, err)

	page := insertTestPage(t, pagesDbHandler, tenant, "https://acme.example/docs")

	hashes := []string{"c_hash", "a_hash", "b_hash"}
	for i, hash := range hashes {
		section := testSection(page.ID, i, fmt.Sprintf("Section %v", i))
		section.VersionHash = hash
		err := sectionsDbHandler.UpsertSection(tenant, section)
		require.NoError(t, err)
	}

	retrieved, err := sectionsDbHandler.SelectSectionHashes(tenant)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a_hash", "b_hash", "c_hash"}, retrieved, "Expected hashes sorted ascending")
}

func TestSectionsSearchLexical(t *testing.T) {
	database := initDB(t)
	tenant := uuid.NewString()
	otherTenant := uuid.NewString()

	pagesDbHandler, err := NewPagesDBHandler(database, true)
	require.NoError(t, err)
	sectionsDbHandler, err := NewSectionsDBHandler(database, true)
	require.NoError(t, err)

	page := insertTestPage(t, pagesDbHandler, tenant, "https://acme.example/pricing")

	texts := []string{
		"Acme Corp offers a 30-day free trial for the enterprise plan.",
		"The enterprise plan includes priority support and SSO.",
		"Contact sales for a custom quote.",
	}
	for i, text := range texts {
		section := testSection(page.ID, i, text)
		err := sectionsDbHandler.UpsertSection(tenant, section)
		require.NoError(t, err)
	}

	t.Run("Finds matching sections ranked", func(t *testing.T) {
		hits, err := sectionsDbHandler.SearchLexical(context.Background(), tenant, "enterprise plan", 10)
		assert.NoError(t, err)
		require.Len(t, hits, 2, "Expected both sections mentioning the enterprise plan")
		for _, hit := range hits {
			assert.Greater(t, hit.Rank, 0.0, "Expected a positive rank")
			assert.Equal(t, page.CanonicalURL, hit.URL, "Expected the hit to carry its page URL")
			assert.NotEmpty(t, hit.VersionHash)
		}
	})

	t.Run("No match yields no results", func(t *testing.T) {
		hits, err := sectionsDbHandler.SearchLexical(context.Background(), tenant, "kubernetes", 10)
		assert.NoError(t, err)
		assert.Empty(t, hits, "Expected no hits for an unmatched query")
	})

	t.Run("Other tenant sees nothing", func(t *testing.T) {
		hits, err := sectionsDbHandler.SearchLexical(context.Background(), otherTenant, "enterprise plan", 10)
		assert.NoError(t, err)
		assert.Empty(t, hits, "Expected no cross-tenant hits")
	})
}

func TestSectionsDeleteForPage(t *testing.T) {
	database := initDB(t)
	tenant := uuid.NewString()

	pagesDbHandler, err := NewPagesDBHandler(database, true)
	require.NoError(t, err)
	sectionsDbHandler, err := NewSectionsDBHandler(database, true)
	require.NoError(t, err)

	page := insertTestPage(t, pagesDbHandler, tenant, "https://acme.example/docs")
	for i := 0; i < 2; i++ {
		err := sectionsDbHandler.UpsertSection(tenant, testSection(page.ID, i, fmt.Sprintf("Section %v", i)))
		require.NoError(t, err)
	}

	err = sectionsDbHandler.DeleteSectionsForPage(tenant, page.ID)
	assert.NoError(t, err)

	sections, err := sectionsDbHandler.SelectSectionsForPage(tenant, page.ID)
	assert.NoError(t, err)
	assert.Empty(t, sections, "Expected all sections of the page to be gone")
}
