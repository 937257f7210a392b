package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/answergrid/groundwork/helper"
	"github.com/answergrid/groundwork/model"
)

// Resilient wraps a Provider with a bounded per-call timeout and a single
// retry. Failures never fall back to a degraded embedding: after the retry
// the call fails loudly with ErrEmbeddingUnavailable.
type Resilient struct {
	inner   Provider
	timeout time.Duration
}

// NewResilient wraps a provider. A non-positive timeout disables the bound.
func NewResilient(inner Provider, timeout time.Duration) *Resilient {
	return &Resilient{inner: inner, timeout: timeout}
}

func (r *Resilient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := r.attempt(ctx, texts)
	if err == nil {
		return vectors, nil
	}
	if ctx.Err() != nil {
		return nil, helper.NewError("embedding", fmt.Errorf("%w: %v", model.ErrEmbeddingUnavailable, err))
	}

	vectors, err = r.attempt(ctx, texts)
	if err != nil {
		return nil, helper.NewError("embedding", fmt.Errorf("%w: %v", model.ErrEmbeddingUnavailable, err))
	}
	return vectors, nil
}

func (r *Resilient) attempt(ctx context.Context, texts []string) ([][]float32, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.inner.Embed(ctx, texts)
}

func (r *Resilient) Identity() string {
	return r.inner.Identity()
}

func (r *Resilient) Dim() int {
	return r.inner.Dim()
}
