package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/document"
	healthuc "github.com/kailas-cloud/docindex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docindex/internal/usecase/ingest"
	"github.com/kailas-cloud/docindex/internal/usecase/vectorstore"
)

// --- Mocks ---

type mockIngester struct {
	t        *testing.T
	err      error
	panicMsg string
	filename string
	content  string
}

func (m *mockIngester) Ingest(_ context.Context, up ingestuc.Upload) (ingestuc.IngestResult, error) {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.filename = up.Filename()
	path := filepath.Join(m.t.TempDir(), "staged")
	if err := up.Save(path); err != nil {
		return ingestuc.IngestResult{}, err
	}
	data, _ := os.ReadFile(path)
	m.content = string(data)
	if m.err != nil {
		return ingestuc.IngestResult{Filename: up.Filename()}, m.err
	}
	return ingestuc.IngestResult{Filename: up.Filename(), Format: document.Text, Chunks: 3, ChunksAdded: 3}, nil
}

type mockStats struct {
	stats vectorstore.IndexStats
	err   error
}

func (m *mockStats) Stats(_ context.Context) (vectorstore.IndexStats, error) { return m.stats, m.err }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newTestServer(t *testing.T, ing *mockIngester, opts ...Option) http.Handler {
	t.Helper()
	ing.t = t
	st := &mockStats{stats: vectorstore.IndexStats{Exists: true, Entries: 7, Model: "text-embedding-004", Dimension: 768}}
	h := &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"index": healthuc.CheckOK}}}
	return NewServer(ing, st, h, zap.NewNop(), opts...).Router()
}

func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest("POST", "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestUploadDocument_Created(t *testing.T) {
	ing := &mockIngester{}
	srv := newTestServer(t, ing)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, FormField, "notes.txt", "hello world"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp IngestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Filename != "notes.txt" || resp.Format != "text" || resp.Chunks != 3 || resp.ChunksAdded != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
	if ing.content != "hello world" {
		t.Errorf("expected staged content, got %q", ing.content)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestUploadDocument_MissingField(t *testing.T) {
	srv := newTestServer(t, &mockIngester{})

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "document", "notes.txt", "x"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeBadRequest {
		t.Errorf("expected %s, got %s", CodeBadRequest, resp.Code)
	}
}

func TestUploadDocument_NotMultipart(t *testing.T) {
	srv := newTestServer(t, &mockIngester{})

	req := httptest.NewRequest("POST", "/documents", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestUploadDocument_TooLarge(t *testing.T) {
	srv := newTestServer(t, &mockIngester{}, WithMaxUploadBytes(256))

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, FormField, "big.txt", strings.Repeat("x", 4096)))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodePayloadTooLarge {
		t.Errorf("expected %s, got %s", CodePayloadTooLarge, resp.Code)
	}
}

func TestUploadDocument_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{domain.NewStageError(domain.StageParsing, domain.ErrUnsupportedFormat), http.StatusUnsupportedMediaType, CodeUnsupportedFormat},
		{fmt.Errorf("chunk_overlap: %w", domain.ErrConfiguration), http.StatusBadRequest, CodeInvalidConfig},
		{domain.NewStageError(domain.StageCredentials, domain.ErrMissingCredential), http.StatusServiceUnavailable, CodeMissingCredential},
		{domain.NewStageError(domain.StageEmbedding, domain.ErrEmbeddingProvider), http.StatusBadGateway, CodeEmbeddingProvider},
		{domain.NewStageError(domain.StageIndexSave, domain.ErrIndexIO), http.StatusInternalServerError, CodeIndexIO},
		{domain.NewStageError(domain.StageIndexMerge, domain.ErrIndexBindingMismatch), http.StatusConflict, CodeIndexBindingMismatch},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			srv := newTestServer(t, &mockIngester{err: tt.err})

			rr := httptest.NewRecorder()
			srv.ServeHTTP(rr, uploadRequest(t, FormField, "a.txt", "text"))

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, resp.Code)
			}
			if stage, ok := domain.StageOf(tt.err); ok && resp.Stage != string(stage) {
				t.Errorf("expected stage %q, got %q", stage, resp.Stage)
			}
		})
	}
}

func TestUploadDocument_ErrorHidesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp 10.0.0.1:443: secret-host: %w", domain.ErrEmbeddingProvider)
	srv := newTestServer(t, &mockIngester{err: cause})

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, FormField, "a.txt", "text"))

	if strings.Contains(rr.Body.String(), "secret-host") {
		t.Errorf("response leaks cause: %s", rr.Body.String())
	}
}

func TestUploadDocument_ErrorLogCarriesRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ing := &mockIngester{t: t, err: domain.NewStageError(domain.StageIndexSave, domain.ErrIndexIO)}
	srv := NewServer(ing, &mockStats{}, &mockHealth{}, zap.New(core)).Router()

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, FormField, "report.txt", "text"))

	entries := logs.FilterMessage("domain error").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 domain error entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["filename"] != "report.txt" {
		t.Errorf("expected filename field, got %v", fields)
	}
	if id, _ := fields["request_id"].(string); id == "" || id != rr.Header().Get("X-Request-ID") {
		t.Errorf("expected request_id %q, got %v", rr.Header().Get("X-Request-ID"), fields["request_id"])
	}
}

func TestUploadDocument_PanicRecovered(t *testing.T) {
	srv := newTestServer(t, &mockIngester{panicMsg: "kaboom"})

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, FormField, "a.txt", "text"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeInternalError {
		t.Errorf("expected %s, got %s", CodeInternalError, resp.Code)
	}
}

func TestIndexStats(t *testing.T) {
	srv := newTestServer(t, &mockIngester{})

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("GET", "/index/stats", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp IndexStatsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Exists || resp.Entries != 7 || resp.Model != "text-embedding-004" || resp.Dimension != 768 {
		t.Errorf("unexpected stats %+v", resp)
	}
}

func TestIndexStats_LoadError(t *testing.T) {
	st := &mockStats{err: domain.NewStageError(domain.StageIndexLoad, domain.ErrIndexIO)}
	h := &mockHealth{}
	srv := NewServer(&mockIngester{t: t}, st, h, nil).Router()

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("GET", "/index/stats", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeIndexIO || resp.Stage != "index_load" {
		t.Errorf("unexpected error %+v", resp)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := &mockHealth{report: healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{"embedding": healthuc.CheckOK},
			}}
			srv := NewServer(&mockIngester{t: t}, &mockStats{}, h, nil).Router()

			rr := httptest.NewRecorder()
			srv.ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.status) || resp.Checks["embedding"] != "ok" {
				t.Errorf("unexpected body %+v", resp)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockIngester{})

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	srv := newTestServer(t, &mockIngester{})

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("GET", "/collections", http.NoBody))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestRouter_AuthEnabled(t *testing.T) {
	srv := newTestServer(t, &mockIngester{}, WithAPIKeys([]string{"secret"}))

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, FormField, "a.txt", "text"))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rr.Code)
	}

	req := uploadRequest(t, FormField, "a.txt", "text")
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Errorf("expected 201 with token, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Errorf("expected /health exempt, got %d", rr.Code)
	}
}
