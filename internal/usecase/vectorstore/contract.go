package vectorstore

import (
	"context"

	"github.com/kailas-cloud/docindex/internal/domain"
	domindex "github.com/kailas-cloud/docindex/internal/domain/index"
)

// IndexStore persists the index snapshot.
type IndexStore interface {
	Path() string
	Exists() (bool, error)
	Load(ctx context.Context) (*domindex.Index, error)
	Save(ctx context.Context, idx *domindex.Index) error
}

// Embedder vectorizes chunk texts and describes the vectors it produces.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
	CheckCredentials() error
	Model() string
	Dimension() int
}
