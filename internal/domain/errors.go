package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat signals a document type no parser accepts.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrConfiguration signals an invalid configuration value.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrMissingCredential signals that the embedding provider credential is absent.
	ErrMissingCredential = errors.New("missing embedding credential")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrIndexIO signals a failure reading or writing the persistent index.
	ErrIndexIO = errors.New("index io error")
	// ErrIndexBindingMismatch signals vectors incompatible with the index embedder binding.
	ErrIndexBindingMismatch = errors.New("index binding mismatch")
)

// Stage names a step of the ingestion pipeline.
type Stage string

// Pipeline stages.
const (
	StageCredentials Stage = "credentials"
	StageStaging     Stage = "staging"
	StageParsing     Stage = "parsing"
	StageChunking    Stage = "chunking"
	StageEmbedding   Stage = "embedding"
	StageIndexLoad   Stage = "index_load"
	StageIndexMerge  Stage = "index_merge"
	StageIndexSave   Stage = "index_save"
)

// StageError attaches the failing pipeline stage to an error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the stage it failed in. A nil err stays nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf reports the stage recorded on err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
