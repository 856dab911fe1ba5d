package health

import "context"

// IndexChecker verifies the index location can be written.
type IndexChecker interface {
	Writable() error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks embedding cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ParserChecker reports document formats whose external tools are missing.
type ParserChecker interface {
	Available() error
}
