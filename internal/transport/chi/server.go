package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/domain"
	logpkg "github.com/kailas-cloud/docindex/internal/logger"
	"github.com/kailas-cloud/docindex/internal/metrics"
	healthuc "github.com/kailas-cloud/docindex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docindex/internal/usecase/ingest"
	"github.com/kailas-cloud/docindex/internal/usecase/vectorstore"
)

// FormField is the multipart field carrying the uploaded document.
const FormField = "file"

// DefaultMaxUploadBytes caps the request body when no limit is configured.
const DefaultMaxUploadBytes int64 = 32 << 20

// Ingester runs an upload through the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, up ingestuc.Upload) (ingestuc.IngestResult, error)
}

// StatsReader reports the persisted index state.
type StatsReader interface {
	Stats(ctx context.Context) (vectorstore.IndexStats, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the ingestion HTTP API.
type Server struct {
	ingest         Ingester
	stats          StatsReader
	health         HealthChecker
	maxUploadBytes int64
	apiKeys        []string
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes caps the size of POST /documents bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithAPIKeys enables Bearer authentication with the given keys.
func WithAPIKeys(keys []string) Option {
	return func(s *Server) { s.apiKeys = keys }
}

// NewServer creates an HTTP API server.
func NewServer(ingest Ingester, stats StatsReader, health HealthChecker, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingest:         ingest,
		stats:          stats,
		health:         health,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         logger,
	}
	for _, o := range opts {
		o(s)
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, CodeUnsupportedFormat),
		sentinelHandler(domain.ErrConfiguration, http.StatusBadRequest, CodeInvalidConfig),
		sentinelHandler(domain.ErrMissingCredential, http.StatusServiceUnavailable, CodeMissingCredential),
		sentinelHandler(domain.ErrIndexBindingMismatch, http.StatusConflict, CodeIndexBindingMismatch),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, CodeEmbeddingProvider),
		sentinelHandler(domain.ErrIndexIO, http.StatusInternalServerError, CodeIndexIO),
	}
	return s
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/documents", s.UploadDocument)
	r.Get("/index/stats", s.IndexStats)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// UploadDocument handles POST /documents (multipart field "file").
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[FormField]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("multipart field %q is required", FormField))
		return
	}

	ctx := logpkg.With(r.Context(), zap.String("filename", files[0].Filename))
	res, err := s.ingest.Ingest(ctx, newMultipartUpload(files[0]))
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{
		Filename:    res.Filename,
		Format:      string(res.Format),
		Chunks:      res.Chunks,
		ChunksAdded: res.ChunksAdded,
	})
}

// IndexStats handles GET /index/stats.
func (s *Server) IndexStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexStatsResponse{
		Exists:    st.Exists,
		Entries:   st.Entries,
		Model:     st.Model,
		Dimension: st.Dimension,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text and the failing stage, never the wrapped cause.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		stage, _ := domain.StageOf(err)
		writeJSON(w, status, ErrorResponse{
			Code:    code,
			Message: sentinel.Error(),
			Stage:   string(stage),
		})
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
