// Package plaintext parses UTF-8 text files into a single section.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/docindex/internal/domain/document"
	"github.com/kailas-cloud/docindex/internal/parser"
)

var _ parser.Parser = (*Parser)(nil)

const bom = "\uFEFF"

// Parser handles .txt files.
type Parser struct{}

// New creates a plain text parser.
func New() *Parser {
	return &Parser{}
}

// Name returns the parser name.
func (p *Parser) Name() string { return "plaintext" }

// Format returns the document format tag.
func (p *Parser) Format() document.Format { return document.Text }

// Match accepts .txt files.
func (p *Parser) Match(filename string) bool { return parser.HasSuffix(filename, ".txt") }

// Priority returns the selection priority.
func (p *Parser) Priority() int { return 5 }

// Parse reads the whole file as one section. Empty files produce no sections.
func (p *Parser) Parse(_ context.Context, path, source string) ([]document.Section, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%s is not valid UTF-8", source)
	}

	text := strings.TrimPrefix(string(raw), bom)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	return []document.Section{
		document.NewSection(text, map[string]string{document.MetaSource: source}),
	}, nil
}
