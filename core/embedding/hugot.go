package embedding

import (
	"context"
	"fmt"

	"github.com/answergrid/groundwork/helper"
	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// HugotProvider generates embeddings with a sentence transformer model.
// Uses the all-MiniLM-L6-v2 model which produces 384-dimensional embeddings.
type HugotProvider struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	name     string
	dim      int
}

// NewHugotProvider prepares the model (downloading it if needed) and creates
// the feature extraction pipeline.
func NewHugotProvider() (*HugotProvider, error) {
	modelName := "sentence-transformers/all-MiniLM-L6-v2"
	modelPath, err := helper.PrepareModel(modelName, "")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &HugotProvider{
		session:  session,
		pipeline: sentencePipeline,
		name:     modelName,
		dim:      DeterministicDim,
	}, nil
}

// Embed generates one vector per text, in input order.
func (p *HugotProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	result, err := p.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %v embeddings, got %v", len(texts), len(result.Embeddings))
	}

	return result.Embeddings, nil
}

func (p *HugotProvider) Identity() string {
	return p.name
}

func (p *HugotProvider) Dim() int {
	return p.dim
}

// Close destroys the underlying hugot session.
func (p *HugotProvider) Close() error {
	return p.session.Destroy()
}
