package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// DeterministicDim is the dimensionality of the deterministic provider,
// matching all-MiniLM-L6-v2 so the two providers are interchangeable.
const DeterministicDim = 384

// DeterministicProvider derives vectors from the text content alone, with no
// model involved. The same text always yields the same vector, which makes
// retrieval results reproducible in tests and evals.
type DeterministicProvider struct {
	dim int
}

// NewDeterministicProvider creates a deterministic provider with the default dimension.
func NewDeterministicProvider() *DeterministicProvider {
	return &DeterministicProvider{dim: DeterministicDim}
}

// Embed generates one vector per text. Each component is derived from a hash
// of the text and the component index, mapped into [-1, 1).
func (p *DeterministicProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vector := make([]float32, p.dim)
		for i := range vector {
			sum := sha256.Sum256([]byte(text + "|" + strconv.Itoa(i)))
			head := hex.EncodeToString(sum[:])[:8]
			value, err := strconv.ParseUint(head, 16, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to derive vector component: %w", err)
			}
			vector[i] = float32(float64(value)/4294967296.0*2.0 - 1.0)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

func (p *DeterministicProvider) Identity() string {
	return "deterministic-sha256"
}

func (p *DeterministicProvider) Dim() int {
	return p.dim
}
