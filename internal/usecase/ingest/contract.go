package ingest

import (
	"context"

	"github.com/kailas-cloud/docindex/internal/domain/chunk"
	"github.com/kailas-cloud/docindex/internal/parser"
	"github.com/kailas-cloud/docindex/internal/usecase/vectorstore"
)

// Upload is a document received from a caller.
type Upload interface {
	Filename() string
	Save(path string) error
}

// ParserResolver selects a parser by filename.
type ParserResolver interface {
	Resolve(filename string) (parser.Parser, error)
}

// Indexer merges chunks into the persistent index.
type Indexer interface {
	Update(ctx context.Context, chunks []chunk.Chunk) (vectorstore.UpdateResult, error)
}
