package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/chunk"
	"github.com/kailas-cloud/docindex/internal/domain/document"
	"github.com/kailas-cloud/docindex/internal/metrics"
	"github.com/kailas-cloud/docindex/internal/parser"
	"github.com/kailas-cloud/docindex/internal/usecase/chunking"
)

const stagePattern = "docindex-upload-*"

// IngestResult summarises one ingested document.
type IngestResult struct {
	Filename    string
	Format      document.Format
	Chunks      int
	ChunksAdded int
}

// Service runs uploads through parse, chunk and index update.
type Service struct {
	parsers  ParserResolver
	splitter *chunking.Splitter
	indexer  Indexer
	tempDir  string
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTempDir stages uploads under dir instead of os.TempDir().
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

// New creates an ingestion service.
func New(
	parsers ParserResolver, splitter *chunking.Splitter, indexer Indexer,
	logger *zap.Logger, opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{parsers: parsers, splitter: splitter, indexer: indexer, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ProcessDocument stages the upload, parses it and splits it into chunks.
// The staging directory is removed before return on every path.
func (s *Service) ProcessDocument(ctx context.Context, up Upload) ([]chunk.Chunk, error) {
	chunks, _, err := s.process(ctx, up)
	return chunks, err
}

// Ingest processes the upload and merges its chunks into the index.
// A document without text yields zero chunks and leaves the index untouched.
func (s *Service) Ingest(ctx context.Context, up Upload) (IngestResult, error) {
	chunks, format, err := s.process(ctx, up)
	res := IngestResult{Filename: up.Filename(), Format: format, Chunks: len(chunks)}
	if err != nil {
		return res, err
	}

	upd, err := s.indexer.Update(ctx, chunks)
	if err != nil {
		return res, fmt.Errorf("update index: %w", err)
	}
	res.ChunksAdded = upd.ChunksAdded

	s.logger.Info("Document ingested",
		zap.String("filename", res.Filename),
		zap.String("format", string(format)),
		zap.Int("chunks", res.Chunks),
		zap.Int("added", res.ChunksAdded),
	)
	return res, nil
}

func (s *Service) process(ctx context.Context, up Upload) ([]chunk.Chunk, document.Format, error) {
	name := up.Filename()
	p, err := s.parsers.Resolve(name)
	if err != nil {
		metrics.DocumentsProcessedTotal.WithLabelValues("unknown", "rejected").Inc()
		s.logger.Warn("Unsupported document", zap.String("filename", name), zap.Error(err))
		return nil, "", domain.NewStageError(domain.StageParsing, err)
	}
	format := p.Format()

	chunks, err := s.stageAndSplit(ctx, up, p)
	if err != nil {
		metrics.DocumentsProcessedTotal.WithLabelValues(string(format), "error").Inc()
		stage, _ := domain.StageOf(err)
		s.logger.Error("Document processing failed",
			zap.String("filename", name),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return nil, format, err
	}

	status := "ok"
	if len(chunks) == 0 {
		status = "empty"
	}
	metrics.DocumentsProcessedTotal.WithLabelValues(string(format), status).Inc()
	metrics.ChunksProducedTotal.WithLabelValues(string(format)).Add(float64(len(chunks)))
	return chunks, format, nil
}

func (s *Service) stageAndSplit(ctx context.Context, up Upload, p parser.Parser) ([]chunk.Chunk, error) {
	dir, err := os.MkdirTemp(s.tempDir, stagePattern)
	if err != nil {
		return nil, domain.NewStageError(domain.StageStaging, fmt.Errorf("create staging dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("Staging cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}()

	source := baseName(up.Filename())
	path := filepath.Join(dir, source)
	if err := up.Save(path); err != nil {
		return nil, domain.NewStageError(domain.StageStaging, fmt.Errorf("save upload: %w", err))
	}

	sections, err := p.Parse(ctx, path, source)
	if err != nil {
		return nil, domain.NewStageError(domain.StageParsing, err)
	}

	var chunks []chunk.Chunk
	for _, c := range s.splitter.Iter(sections) {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewStageError(domain.StageChunking, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// baseName strips any directory part a client sent with the filename.
func baseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == "" {
		return "upload"
	}
	return base
}
