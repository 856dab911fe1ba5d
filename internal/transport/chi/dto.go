package chi

// ErrorCode is a machine-readable error code returned to clients.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodePayloadTooLarge      ErrorCode = "payload_too_large"
	CodeUnsupportedFormat    ErrorCode = "unsupported_format"
	CodeInvalidConfig        ErrorCode = "invalid_configuration"
	CodeMissingCredential    ErrorCode = "missing_credential"
	CodeEmbeddingProvider    ErrorCode = "embedding_provider_error"
	CodeIndexBindingMismatch ErrorCode = "index_binding_mismatch"
	CodeIndexIO              ErrorCode = "index_io_error"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Stage   string    `json:"stage,omitempty"`
}

// IngestResponse is returned by POST /documents.
type IngestResponse struct {
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	Chunks      int    `json:"chunks"`
	ChunksAdded int    `json:"chunks_added"`
}

// IndexStatsResponse is returned by GET /index/stats.
type IndexStatsResponse struct {
	Exists    bool   `json:"exists"`
	Entries   int    `json:"entries"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
