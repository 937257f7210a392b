package version

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/answergrid/groundwork/model"
)

// PageStore is the page persistence the tracker needs.
type PageStore interface {
	InsertPage(tenant string, page *model.Page) error
	UpdatePageContent(tenant string, canonicalURL string, text string, contentHash string) (*model.Page, error)
	SelectPageByURL(tenant string, canonicalURL string) (*model.Page, error)
}

// SectionStore is the section persistence the tracker needs.
type SectionStore interface {
	UpsertSection(tenant string, section *model.Section) error
	DeleteSectionsForPage(tenant string, pageID int64) error
	SelectSectionHashes(tenant string) ([]string, error)
}

// Tracker decides whether re-ingested content actually changed, bumps page
// versions only on real changes, and keeps section identifiers stable across
// re-crawls. Writes to the same page are serialized per (tenant, URL) so a
// concurrent re-crawl cannot interleave section replacement.
type Tracker struct {
	pages    PageStore
	sections SectionStore
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTracker creates a tracker on top of the page and section stores.
func NewTracker(pages PageStore, sections SectionStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		pages:    pages,
		sections: sections,
		logger:   logger,
		locks:    map[string]*sync.Mutex{},
	}
}

// PageInput is one crawled page as handed in by the ingestion collaborator.
type PageInput struct {
	URL           string
	Text          string
	Domain        string
	PageType      string
	CrawlDecision string
	FetchedAt     time.Time
}

// UpsertPage inserts a new page at version 1 or, when the page exists,
// compares content hashes: identical content leaves the stored page untouched
// (unchanged=true), changed content replaces the text and bumps the version.
func (t *Tracker) UpsertPage(tenant string, input PageInput) (*model.Page, bool, error) {
	canonicalURL, err := CanonicalizeURL(input.URL)
	if err != nil {
		return nil, false, err
	}
	contentHash := ContentHash(input.Text)

	unlock := t.lock(tenant, canonicalURL)
	defer unlock()

	existing, err := t.pages.SelectPageByURL(tenant, canonicalURL)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, false, err
	}

	if existing == nil {
		page := &model.Page{
			URL:           input.URL,
			CanonicalURL:  canonicalURL,
			Text:          input.Text,
			ContentHash:   contentHash,
			Domain:        input.Domain,
			PageType:      input.PageType,
			CrawlDecision: input.CrawlDecision,
			FetchedAt:     input.FetchedAt,
		}
		if err := t.pages.InsertPage(tenant, page); err != nil {
			return nil, false, err
		}
		t.logger.Info("Inserted page", "url", canonicalURL, "version", page.Version)
		return page, false, nil
	}

	if existing.ContentHash == contentHash {
		t.logger.Debug("Page content unchanged", "url", canonicalURL, "version", existing.Version)
		return existing, true, nil
	}

	updated, err := t.pages.UpdatePageContent(tenant, canonicalURL, input.Text, contentHash)
	if err != nil {
		return nil, false, err
	}
	t.logger.Info("Updated page content", "url", canonicalURL, "version", updated.Version)
	return updated, false, nil
}

// ReplaceSections replaces the sections of a page with freshly chunked ones.
// Section ids are derived from the canonical URL and chunk index, so a chunk
// whose position survives a re-crawl keeps its identifier and only its
// version hash moves.
func (t *Tracker) ReplaceSections(tenant string, page *model.Page, inputs []model.SectionInput) ([]*model.Section, error) {
	if page == nil {
		return nil, fmt.Errorf("page is nil")
	}

	unlock := t.lock(tenant, page.CanonicalURL)
	defer unlock()

	err := t.sections.DeleteSectionsForPage(tenant, page.ID)
	if err != nil {
		return nil, err
	}

	sections := make([]*model.Section, 0, len(inputs))
	for _, input := range inputs {
		section := &model.Section{
			PageID:      page.ID,
			SectionID:   StableSectionID(page.CanonicalURL, input.ChunkIndex),
			Text:        input.Text,
			StartChar:   input.StartChar,
			EndChar:     input.EndChar,
			ChunkIndex:  input.ChunkIndex,
			VersionHash: SectionVersionHash(input.Text),
			Domain:      page.Domain,
			PageType:    page.PageType,
		}
		if err := t.sections.UpsertSection(tenant, section); err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}

	t.logger.Info("Replaced sections", "url", page.CanonicalURL, "sections", len(sections))
	return sections, nil
}

// ContentCorpusVersion derives the AC corpus version of a tenant from the
// sorted version hashes of all its sections. Any section change, addition or
// removal yields a new corpus version.
func (t *Tracker) ContentCorpusVersion(tenant string) (string, error) {
	hashes, err := t.sections.SelectSectionHashes(tenant)
	if err != nil {
		return "", err
	}
	return CorpusVersionOf(hashes), nil
}

// CorpusVersionOf hashes a set of constituent hashes into one corpus version.
// The input is sorted first so the version is order-independent.
func CorpusVersionOf(hashes []string) string {
	sorted := make([]string, len(hashes))
	copy(sorted, hashes)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// EntityCorpusVersion derives the EC corpus version of a tenant from its
// entity ids and canonical names.
func EntityCorpusVersion(names map[string]string) string {
	constituents := make([]string, 0, len(names))
	for entityID, name := range names {
		constituents = append(constituents, entityID+"|"+name)
	}
	return CorpusVersionOf(constituents)
}

func (t *Tracker) lock(tenant string, canonicalURL string) func() {
	key := tenant + "\x00" + canonicalURL
	t.mu.Lock()
	lock, ok := t.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[key] = lock
	}
	t.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
