package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/document"
)

type fakeParser struct {
	name     string
	format   document.Format
	suffixes []string
	priority int
}

func (f *fakeParser) Name() string            { return f.name }
func (f *fakeParser) Format() document.Format { return f.format }
func (f *fakeParser) Match(name string) bool  { return HasSuffix(name, f.suffixes...) }
func (f *fakeParser) Priority() int           { return f.priority }
func (f *fakeParser) Parse(context.Context, string, string) ([]document.Section, error) {
	return nil, nil
}

func TestRegistry_Resolve(t *testing.T) {
	txt := &fakeParser{name: "plaintext", format: document.Text, suffixes: []string{".txt"}, priority: 5}
	pdf := &fakeParser{name: "pdf", format: document.PDF, suffixes: []string{".pdf"}, priority: 50}
	r := NewRegistry(txt, pdf)

	p, err := r.Resolve("Report.PDF")
	require.NoError(t, err)
	assert.Equal(t, "pdf", p.Name())

	p, err = r.Resolve("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "plaintext", p.Name())
}

func TestRegistry_ResolveUnsupported(t *testing.T) {
	r := NewRegistry(&fakeParser{name: "plaintext", format: document.Text, suffixes: []string{".txt"}})

	for _, name := range []string{"notes.csv", "README", "archive.txt.gz"} {
		_, err := r.Resolve(name)
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat, name)
	}
}

func TestRegistry_PriorityWins(t *testing.T) {
	low := &fakeParser{name: "low", format: document.Text, suffixes: []string{".txt"}, priority: 1}
	high := &fakeParser{name: "high", format: document.Text, suffixes: []string{".txt"}, priority: 10}

	p, err := NewRegistry(low, high).Resolve("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "high", p.Name())
}

func TestRegistry_Formats(t *testing.T) {
	r := NewRegistry(
		&fakeParser{format: document.Text, priority: 1},
		&fakeParser{format: document.PDF, priority: 2},
		&fakeParser{format: document.Text, priority: 3},
	)
	assert.ElementsMatch(t, []document.Format{document.Text, document.PDF}, r.Formats())
}

func TestHasSuffix(t *testing.T) {
	assert.True(t, HasSuffix("a.TXT", ".txt"))
	assert.False(t, HasSuffix("txt", ".txt"))
	assert.False(t, HasSuffix("a.txt", ".pdf"))
}

type toolParser struct {
	fakeParser
	err error
}

func (p *toolParser) Available() error { return p.err }

func TestRegistry_Available(t *testing.T) {
	txt := &fakeParser{name: "plaintext", format: document.Text, suffixes: []string{".txt"}}
	missing := errors.New("not on PATH")
	pdf := &toolParser{fakeParser: fakeParser{name: "pdf", format: document.PDF, suffixes: []string{".pdf"}}, err: missing}

	require.NoError(t, NewRegistry(txt).Available())

	err := NewRegistry(txt, pdf).Available()
	require.ErrorIs(t, err, missing)
	assert.Contains(t, err.Error(), "pdf parser")

	pdf.err = nil
	assert.NoError(t, NewRegistry(txt, pdf).Available())
}
