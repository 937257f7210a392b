package grounding

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/answergrid/groundwork/helper"
	"github.com/answergrid/groundwork/model"
	"github.com/google/uuid"
)

// SectionStore is the section access the grounder needs.
type SectionStore interface {
	SelectSection(tenant string, sectionID string) (*model.Section, error)
	SelectSectionsByIDs(tenant string, sectionIDs []string) ([]*model.Section, error)
	SelectSectionURLs(tenant string, sectionIDs []string) (map[string]string, error)
}

// EvidenceStore is the evidence persistence the grounder needs.
type EvidenceStore interface {
	InsertEvidence(tenant string, evidence *model.Evidence) error
	SelectEvidence(tenant string, evidenceID uuid.UUID) (*model.Evidence, error)
}

// Grounder verifies claims against retrieved sections by exact quotation.
// A claim is grounded only if its text literally occurs in a section,
// tolerating nothing but whitespace differences. Fuzzy or semantic matching
// is deliberately absent: an ungrounded claim is a result, not something to
// rescue.
type Grounder struct {
	sections SectionStore
	evidence EvidenceStore
	logger   *slog.Logger
}

// NewGrounder creates a grounder on top of the section and evidence stores.
func NewGrounder(sections SectionStore, evidence EvidenceStore, logger *slog.Logger) *Grounder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grounder{
		sections: sections,
		evidence: evidence,
		logger:   logger,
	}
}

// GroundClaim searches the candidate sections, in the caller's order, for a
// literal occurrence of the claim. The first match wins; its exact span in
// the section text becomes an immutable Evidence record pinned to the
// section's version hash. No match yields an ungrounded result, not an error.
func (g *Grounder) GroundClaim(tenant string, claim string, sectionIDs []string) (*model.GroundingResult, error) {
	pattern, err := claimPattern(claim)
	if err != nil {
		return &model.GroundingResult{Grounded: false, Reason: "claim is empty"}, nil
	}

	sections, err := g.sections.SelectSectionsByIDs(tenant, sectionIDs)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return &model.GroundingResult{Grounded: false, Reason: "no candidate sections"}, nil
	}

	for _, section := range sections {
		location := pattern.FindStringIndex(section.Text)
		if location == nil {
			continue
		}
		start, end := location[0], location[1]
		quote := section.Text[start:end]

		urls, err := g.sections.SelectSectionURLs(tenant, []string{section.SectionID})
		if err != nil {
			return nil, err
		}

		evidence := &model.Evidence{
			SectionID:   section.SectionID,
			URL:         urls[section.SectionID],
			QuoteSpan:   quote,
			StartChar:   start,
			EndChar:     end,
			VersionHash: section.VersionHash,
		}
		if err := g.evidence.InsertEvidence(tenant, evidence); err != nil {
			return nil, err
		}

		g.logger.Info("Grounded claim", "section_id", section.SectionID, "start", start, "end", end)
		return &model.GroundingResult{Grounded: true, Evidence: evidence}, nil
	}

	g.logger.Info("Claim not grounded", "candidates", len(sections))
	return &model.GroundingResult{Grounded: false, Reason: "claim text not found in candidate sections"}, nil
}

// CollectEvidence builds evidence records for the sections backing an answer
// to the query. For each section it selects the sentence with the highest
// token overlap against the query via SelectQuoteSpan and stores its exact
// span pinned to the section's version hash. Sections sharing no token with
// the query are skipped, so the result may be shorter than the input.
func (g *Grounder) CollectEvidence(tenant string, query string, sectionIDs []string) ([]*model.Evidence, error) {
	sections, err := g.sections.SelectSectionsByIDs(tenant, sectionIDs)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, nil
	}

	urls, err := g.sections.SelectSectionURLs(tenant, sectionIDs)
	if err != nil {
		return nil, err
	}

	var collected []*model.Evidence
	for _, section := range sections {
		start, end, ok := SelectQuoteSpan(section.Text, query)
		if !ok {
			g.logger.Debug("No supporting sentence found", "section_id", section.SectionID)
			continue
		}

		evidence := &model.Evidence{
			SectionID:   section.SectionID,
			URL:         urls[section.SectionID],
			QuoteSpan:   section.Text[start:end],
			StartChar:   start,
			EndChar:     end,
			VersionHash: section.VersionHash,
		}
		if err := g.evidence.InsertEvidence(tenant, evidence); err != nil {
			return nil, err
		}
		collected = append(collected, evidence)
	}

	g.logger.Info("Collected evidence", "sections", len(sections), "evidence", len(collected))
	return collected, nil
}

// Verify re-checks a stored evidence record against the current section text:
// the quote must still equal the section text between its offsets and the
// section's version hash must still match. A violated offset invariant is an
// error; a moved version hash means the evidence is stale.
func (g *Grounder) Verify(tenant string, evidenceID uuid.UUID) error {
	evidence, err := g.evidence.SelectEvidence(tenant, evidenceID)
	if err != nil {
		return err
	}

	section, err := g.sections.SelectSection(tenant, evidence.SectionID)
	if err != nil {
		return err
	}

	if section.VersionHash != evidence.VersionHash {
		return helper.NewError("evidence verification", model.ErrStaleEvidence)
	}
	if evidence.StartChar < 0 || evidence.EndChar > len(section.Text) || evidence.StartChar > evidence.EndChar {
		return helper.NewError("evidence verification", model.ErrOffsetInvariant)
	}
	if section.Text[evidence.StartChar:evidence.EndChar] != evidence.QuoteSpan {
		return helper.NewError("evidence verification", model.ErrOffsetInvariant)
	}
	return nil
}

// claimPattern builds a literal match pattern that tolerates only whitespace
// differences between the claim and the section text.
func claimPattern(claim string) (*regexp.Regexp, error) {
	tokens := strings.Fields(claim)
	if len(tokens) == 0 {
		return nil, helper.NewError("claim validation", model.ErrNotFound)
	}
	quoted := make([]string, len(tokens))
	for i, token := range tokens {
		quoted[i] = regexp.QuoteMeta(token)
	}
	return regexp.Compile(strings.Join(quoted, `\s+`))
}
