package embedding

import "context"

// Provider generates embeddings for texts. The Identity scopes stored vectors:
// vectors produced by different providers are never compared with each other,
// so swapping providers forces a re-index instead of mixing spaces.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Identity is a stable name of the provider and model, used as the
	// provider key of stored embeddings.
	Identity() string
	// Dim is the dimensionality of the produced vectors.
	Dim() int
}
