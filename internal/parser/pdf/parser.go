// Package pdf extracts page text from PDF files with the poppler pdftotext tool.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docindex/internal/domain/document"
	"github.com/kailas-cloud/docindex/internal/parser"
)

var _ parser.Parser = (*Parser)(nil)

// DefaultBinary is the pdftotext executable looked up on PATH.
const DefaultBinary = "pdftotext"

// ErrToolNotFound signals that pdftotext is not installed.
var ErrToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Parser handles .pdf files, one section per non-empty page.
type Parser struct {
	binary string
	runner CommandRunner
}

// Option configures the Parser.
type Option func(*Parser)

// WithBinary overrides the pdftotext executable path.
func WithBinary(path string) Option {
	return func(p *Parser) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithRunner replaces command execution, used in tests.
func WithRunner(r CommandRunner) Option {
	return func(p *Parser) {
		if r != nil {
			p.runner = r
		}
	}
}

// New creates a PDF parser.
func New(opts ...Option) *Parser {
	p := &Parser{binary: DefaultBinary, runner: execRunner{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the parser name.
func (p *Parser) Name() string { return "pdf" }

// Format returns the document format tag.
func (p *Parser) Format() document.Format { return document.PDF }

// Match accepts .pdf files.
func (p *Parser) Match(filename string) bool { return parser.HasSuffix(filename, ".pdf") }

// Priority returns the selection priority.
func (p *Parser) Priority() int { return 50 }

// Available reports whether the pdftotext binary can be found.
func (p *Parser) Available() error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return ErrToolNotFound
	}
	return nil
}

// Parse extracts text page by page. Page numbers start at 0.
func (p *Parser) Parse(ctx context.Context, path, source string) ([]document.Section, error) {
	out, err := p.runner.Run(ctx, p.binary, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrToolNotFound
		}
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	pages := strings.Split(string(out), "\f")
	sections := make([]document.Section, 0, len(pages))
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		sections = append(sections, document.NewSection(page, map[string]string{
			document.MetaSource: source,
			document.MetaPage:   strconv.Itoa(i),
		}))
	}
	return sections, nil
}
