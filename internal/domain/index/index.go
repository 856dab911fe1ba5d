package index

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/chunk"
)

// Binding records which embedder produced the vectors of an index.
// Dimension 0 means no vector has been stored yet.
type Binding struct {
	Model     string
	Dimension int
}

// Check reports whether vectors from an embedder described by other may join an index bound to b.
// Empty fields on either side are treated as unknown.
func (b Binding) Check(other Binding) error {
	if b.Model != "" && other.Model != "" && b.Model != other.Model {
		return fmt.Errorf("index bound to model %q, embedder is %q: %w",
			b.Model, other.Model, domain.ErrIndexBindingMismatch)
	}
	if b.Dimension != 0 && other.Dimension != 0 && b.Dimension != other.Dimension {
		return fmt.Errorf("index dimension %d, embedder dimension %d: %w",
			b.Dimension, other.Dimension, domain.ErrIndexBindingMismatch)
	}
	return nil
}

// Entry pairs a chunk with its embedding vector.
type Entry struct {
	chunk  chunk.Chunk
	vector []float32
}

// NewEntry creates an Entry (storage hydration, no validation).
func NewEntry(c chunk.Chunk, vector []float32) Entry {
	return Entry{chunk: c, vector: vector}
}

// Chunk returns the stored chunk.
func (e Entry) Chunk() chunk.Chunk { return e.chunk }

// Vector returns the stored embedding.
func (e Entry) Vector() []float32 { return e.vector }

// Index is the in-memory form of the persistent vector index. Entries only grow.
type Index struct {
	binding Binding
	entries []Entry
}

// New creates an empty index bound to an embedder.
func New(b Binding) (*Index, error) {
	if b.Model == "" {
		return nil, fmt.Errorf("index binding model is required: %w", domain.ErrConfiguration)
	}
	if b.Dimension < 0 {
		return nil, fmt.Errorf("index dimension must be non-negative: %w", domain.ErrConfiguration)
	}
	return &Index{binding: b}, nil
}

// Reconstruct creates an Index without validation (storage hydration).
func Reconstruct(b Binding, entries []Entry) *Index {
	return &Index{binding: b, entries: entries}
}

// Binding returns the embedder binding.
func (x *Index) Binding() Binding { return x.binding }

// Len returns the number of stored entries.
func (x *Index) Len() int { return len(x.entries) }

// Entries returns a copy of the entry list in insertion order.
func (x *Index) Entries() []Entry { return slices.Clone(x.entries) }

// Merge appends one entry per chunk. Nothing is removed, overwritten or deduplicated.
// All vectors are validated before the index is touched, so a failed merge leaves it unchanged.
// An index without a dimension adopts the dimension of the first vector.
func (x *Index) Merge(chunks []chunk.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("got %d vectors for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrEmbeddingProvider)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	dim := x.binding.Dimension
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, fmt.Errorf("empty vector for chunk %d: %w", i, domain.ErrEmbeddingProvider)
		}
		if len(v) != dim {
			return 0, fmt.Errorf("vector %d has dimension %d, index expects %d: %w",
				i, len(v), dim, domain.ErrIndexBindingMismatch)
		}
	}

	x.binding.Dimension = dim
	x.entries = slices.Grow(x.entries, len(chunks))
	for i, c := range chunks {
		x.entries = append(x.entries, Entry{chunk: c, vector: slices.Clone(vectors[i])})
	}
	return len(chunks), nil
}
