package health

import (
	"context"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the index cannot be written, so no update can succeed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentIndex     = "index"
	ComponentEmbedding = "embedding"
	ComponentCache     = "cache"
	ComponentParsers   = "parsers"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index     IndexChecker
	embedding EmbeddingChecker
	cache     CachePinger
	parsers   ParserChecker
	logger    *zap.Logger
}

// New creates a Service. embedding and cache can be nil.
func New(index IndexChecker, embedding EmbeddingChecker, cache CachePinger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, embedding: embedding, cache: cache, logger: logger}
}

// WithParsers adds the parser tool check. A failure degrades the report.
func (s *Service) WithParsers(p ParserChecker) *Service {
	s.parsers = p
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[ComponentIndex] = s.result(ComponentIndex, s.index.Writable())

	if s.embedding != nil {
		checks[ComponentEmbedding] = s.result(ComponentEmbedding, s.embedding.HealthCheck(ctx))
	}
	if s.cache != nil {
		checks[ComponentCache] = s.result(ComponentCache, s.cache.Ping(ctx))
	}
	if s.parsers != nil {
		checks[ComponentParsers] = s.result(ComponentParsers, s.parsers.Available())
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentIndex] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) result(component string, err error) CheckResult {
	if err != nil {
		s.logger.Warn("Health check failed", zap.String("component", component), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
