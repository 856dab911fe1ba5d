// Package parser turns staged uploads into ordered document sections.
package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/document"
)

// Parser extracts sections from a file on local disk.
// source is the original upload name recorded in section metadata.
type Parser interface {
	Name() string
	Format() document.Format
	Match(filename string) bool
	Priority() int
	Parse(ctx context.Context, path, source string) ([]document.Section, error)
}

// ToolChecker is implemented by parsers that depend on an external program.
type ToolChecker interface {
	Available() error
}

// Registry selects a parser by filename. Higher priority wins.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry of the given parsers.
func NewRegistry(parsers ...Parser) *Registry {
	sorted := slices.Clone(parsers)
	slices.SortStableFunc(sorted, func(a, b Parser) int {
		return b.Priority() - a.Priority()
	})
	return &Registry{parsers: sorted}
}

// Resolve returns the parser for filename or ErrUnsupportedFormat.
func (r *Registry) Resolve(filename string) (Parser, error) {
	for _, p := range r.parsers {
		if p.Match(filename) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", filepath.Base(filename), domain.ErrUnsupportedFormat)
}

// Formats lists the formats the registry can parse.
func (r *Registry) Formats() []document.Format {
	var out []document.Format
	for _, p := range r.parsers {
		if !slices.Contains(out, p.Format()) {
			out = append(out, p.Format())
		}
	}
	return out
}

// Available checks every parser that depends on an external tool and joins the failures.
func (r *Registry) Available() error {
	var errs []error
	for _, p := range r.parsers {
		if tc, ok := p.(ToolChecker); ok {
			if err := tc.Available(); err != nil {
				errs = append(errs, fmt.Errorf("%s parser (%s): %w", p.Name(), p.Format(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// HasSuffix reports whether filename ends in one of the suffixes, ignoring case.
func HasSuffix(filename string, suffixes ...string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext != "" && slices.Contains(suffixes, ext)
}
