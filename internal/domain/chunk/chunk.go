package chunk

import (
	"fmt"
	"maps"
)

// Chunk is a bounded piece of section text with the provenance of its section.
type Chunk struct {
	id       string
	content  string
	metadata map[string]string
	position int
}

// New validates and creates a Chunk. Position is the chunk ordinal within its document.
func New(id, content string, metadata map[string]string, position int) (Chunk, error) {
	if id == "" {
		return Chunk{}, fmt.Errorf("chunk ID is required")
	}
	if content == "" {
		return Chunk{}, fmt.Errorf("chunk content is required")
	}
	if position < 0 {
		return Chunk{}, fmt.Errorf("chunk position must be non-negative")
	}
	var meta map[string]string
	if metadata != nil {
		meta = maps.Clone(metadata)
	}
	return Chunk{id: id, content: content, metadata: meta, position: position}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(id, content string, metadata map[string]string, position int) Chunk {
	return Chunk{id: id, content: content, metadata: metadata, position: position}
}

// ID returns the chunk identifier.
func (c Chunk) ID() string { return c.id }

// Content returns the chunk text.
func (c Chunk) Content() string { return c.content }

// Metadata returns the source section metadata.
func (c Chunk) Metadata() map[string]string { return c.metadata }

// Position returns the chunk ordinal within its document.
func (c Chunk) Position() int { return c.position }

// Contents returns the text of every chunk in order.
func Contents(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.content
	}
	return out
}
