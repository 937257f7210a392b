package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/answergrid/groundwork/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicProvider(t *testing.T) {
	provider := NewDeterministicProvider()

	t.Run("Stable across calls", func(t *testing.T) {
		first, err := provider.Embed(context.Background(), []string{"Acme Corp offers a 30-day free trial."})
		require.NoError(t, err)
		second, err := provider.Embed(context.Background(), []string{"Acme Corp offers a 30-day free trial."})
		require.NoError(t, err)
		assert.Equal(t, first, second, "Expected the same text to always yield the same vector")
	})

	t.Run("Different texts differ", func(t *testing.T) {
		vectors, err := provider.Embed(context.Background(), []string{"first text", "second text"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.NotEqual(t, vectors[0], vectors[1], "Expected different texts to yield different vectors")
	})

	t.Run("Dimension and range", func(t *testing.T) {
		vectors, err := provider.Embed(context.Background(), []string{"some text"})
		require.NoError(t, err)
		require.Len(t, vectors, 1)
		assert.Len(t, vectors[0], DeterministicDim)
		for _, value := range vectors[0] {
			assert.GreaterOrEqual(t, value, float32(-1))
			assert.Less(t, value, float32(1))
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := provider.Embed(ctx, []string{"some text"})
		assert.Error(t, err)
	})
}

type failingProvider struct {
	failures int
	calls    int
}

func (p *failingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("backend unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, DeterministicDim)
	}
	return vectors, nil
}

func (p *failingProvider) Identity() string { return "failing" }
func (p *failingProvider) Dim() int         { return DeterministicDim }

func TestResilient(t *testing.T) {
	t.Run("Recovers from one failure", func(t *testing.T) {
		inner := &failingProvider{failures: 1}
		provider := NewResilient(inner, time.Second)

		vectors, err := provider.Embed(context.Background(), []string{"some text"})
		assert.NoError(t, err, "Expected a single failure to be retried")
		assert.Len(t, vectors, 1)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("Fails loudly after retry", func(t *testing.T) {
		inner := &failingProvider{failures: 2}
		provider := NewResilient(inner, time.Second)

		_, err := provider.Embed(context.Background(), []string{"some text"})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrEmbeddingUnavailable), "Expected ErrEmbeddingUnavailable, no silent fallback")
		assert.Contains(t, err.Error(), "backend unavailable", "Expected the provider failure to stay visible in the error")
	})

	t.Run("No retry after context cancellation", func(t *testing.T) {
		inner := &failingProvider{failures: 2}
		provider := NewResilient(inner, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := provider.Embed(ctx, []string{"some text"})
		assert.Error(t, err)
		assert.Equal(t, 1, inner.calls, "Expected no retry when the caller is gone")
	})

	t.Run("Keeps inner identity", func(t *testing.T) {
		provider := NewResilient(&failingProvider{}, 0)
		assert.Equal(t, "failing", provider.Identity())
		assert.Equal(t, DeterministicDim, provider.Dim())
	})
}
