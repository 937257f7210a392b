package evals

import (
	"log/slog"
	"sort"

	"github.com/answergrid/groundwork/model"
	"github.com/google/uuid"
)

// Composite index weights. The index rewards answered, cited and correctly
// attributed queries and penalizes hallucinations.
const (
	answerWeight        = 0.30
	citationWeight      = 0.30
	attributionWeight   = 0.30
	hallucinationWeight = 0.10
)

// EvalStore is the persistence the evaluator needs.
type EvalStore interface {
	InsertEvalRun(tenant string, run *model.EvalRun) error
	InsertEvalResult(tenant string, result *model.EvalResult) error
	SelectEvalRuns(tenant string, limit int) ([]*model.EvalRun, error)
	SelectResultsForRun(tenant string, runID uuid.UUID) ([]*model.EvalResult, error)
}

// Evaluator records eval runs and aggregates their per-query outcomes into
// run metrics.
type Evaluator struct {
	store  EvalStore
	logger *slog.Logger
}

// NewEvaluator creates an evaluator on top of the eval store.
func NewEvaluator(store EvalStore, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: store, logger: logger}
}

// RecordRun persists one harness execution: the run row plus every per-query
// result, all under the run's id. Results carrying raw claims or citations get
// their outcome flags derived here; results without them keep the flags the
// harness supplied.
func (e *Evaluator) RecordRun(tenant string, label string, results []*model.EvalResult) (*model.EvalRun, error) {
	run := &model.EvalRun{Label: label}
	if err := e.store.InsertEvalRun(tenant, run); err != nil {
		return nil, err
	}

	for _, result := range results {
		result.RunID = run.RunID
		if len(result.Claims) > 0 || len(result.CitationIDs) > 0 {
			DeriveFlags(result)
		}
		if err := e.store.InsertEvalResult(tenant, result); err != nil {
			return nil, err
		}
	}

	e.logger.Info("Recorded eval run", "run_id", run.RunID, "label", label, "results", len(results))
	return run, nil
}

// ComputeMetrics aggregates the stored results of a run.
func (e *Evaluator) ComputeMetrics(tenant string, runID uuid.UUID) (*model.RunMetrics, error) {
	results, err := e.store.SelectResultsForRun(tenant, runID)
	if err != nil {
		return nil, err
	}
	metrics := MetricsOf(results)
	metrics.RunID = runID
	return metrics, nil
}

// DeriveFlags computes the per-query outcome flags from the raw claims and
// citations of an answer. An answered query mentions its subject; it cites
// when at least one citation id is present; attribution holds when every
// claim's evidence ids are a non-empty subset of the citations; a claim with
// no evidence ids, or with an evidence id outside the citations, flags the
// query as a hallucination. A refused query carries no flags.
func DeriveFlags(result *model.EvalResult) {
	result.MentionOK = false
	result.CitationOK = false
	result.AttributionOK = false
	result.HallucinationFlag = false
	if result.Refused {
		return
	}

	citations := make(map[string]bool, len(result.CitationIDs))
	for _, id := range result.CitationIDs {
		citations[id] = true
	}

	result.MentionOK = true
	result.CitationOK = len(citations) > 0

	supported := len(result.Claims) > 0
	for _, claim := range result.Claims {
		if len(claim.EvidenceIDs) == 0 {
			supported = false
			result.HallucinationFlag = true
			continue
		}
		for _, id := range claim.EvidenceIDs {
			if !citations[id] {
				supported = false
				result.HallucinationFlag = true
				break
			}
		}
	}
	result.AttributionOK = supported
	result.EvidenceCount = len(citations)
}

// MetricsOf aggregates per-query results into run metrics. Refusal and answer
// rates are over all queries; citation, attribution and hallucination rates
// are over answered queries only, since a refused query neither cites nor
// hallucinates. Domain aggregates are sorted by domain name.
func MetricsOf(results []*model.EvalResult) *model.RunMetrics {
	metrics := &model.RunMetrics{Queries: len(results)}
	if len(results) == 0 {
		return metrics
	}

	answered := 0
	mentions := 0
	citations := 0
	attributions := 0
	hallucinations := 0
	byDomain := map[string][]*model.EvalResult{}

	for _, result := range results {
		byDomain[result.Domain] = append(byDomain[result.Domain], result)
		if result.Refused {
			continue
		}
		answered++
		if result.MentionOK {
			mentions++
		}
		if result.CitationOK {
			citations++
		}
		if result.AttributionOK {
			attributions++
		}
		if result.HallucinationFlag {
			hallucinations++
		}
	}

	total := float64(len(results))
	metrics.AnswerRate = float64(answered) / total
	metrics.RefusalRate = 1 - metrics.AnswerRate
	if answered > 0 {
		metrics.MentionRate = float64(mentions) / float64(answered)
		metrics.CitationRate = float64(citations) / float64(answered)
		metrics.AttributionRate = float64(attributions) / float64(answered)
		metrics.HallucinationRate = float64(hallucinations) / float64(answered)
	}
	metrics.CompositeIndex = CompositeIndex(metrics.AnswerRate, metrics.CitationRate, metrics.AttributionRate, metrics.HallucinationRate)

	domains := make([]string, 0, len(byDomain))
	for domain := range byDomain {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	for _, domain := range domains {
		metrics.Domains = append(metrics.Domains, domainMetricsOf(domain, byDomain[domain]))
	}

	return metrics
}

// CompositeIndex condenses the headline rates into one 0-100 number.
func CompositeIndex(answerRate, citationRate, attributionRate, hallucinationRate float64) float64 {
	raw := answerWeight*answerRate + citationWeight*citationRate + attributionWeight*attributionRate - hallucinationWeight*hallucinationRate
	return clamp01(raw) * 100
}

func domainMetricsOf(domain string, results []*model.EvalResult) model.DomainMetrics {
	metrics := model.DomainMetrics{Domain: domain, Queries: len(results)}

	answered := 0
	citations := 0
	attributions := 0
	hallucinations := 0
	for _, result := range results {
		if result.Refused {
			continue
		}
		answered++
		if result.CitationOK {
			citations++
		}
		if result.AttributionOK {
			attributions++
		}
		if result.HallucinationFlag {
			hallucinations++
		}
	}

	metrics.AnswerRate = float64(answered) / float64(len(results))
	if answered > 0 {
		metrics.CitationRate = float64(citations) / float64(answered)
		metrics.AttributionRate = float64(attributions) / float64(answered)
		metrics.HallucinationRate = float64(hallucinations) / float64(answered)
	}
	return metrics
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
