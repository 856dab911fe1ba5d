package document

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"
)

// Format is the type tag derived from an uploaded filename.
type Format string

// Supported document formats.
const (
	PDF  Format = "pdf"
	Text Format = "text"
)

// Metadata keys attached to every section.
const (
	MetaSource = "source"
	MetaPage   = "page"
)

// FormatFromFilename derives the format tag from the filename suffix (case-insensitive).
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return PDF, nil
	case ".txt":
		return Text, nil
	default:
		return "", fmt.Errorf("no format for %q", filepath.Base(name))
	}
}

// Section is one logical unit of parsed text (a PDF page or a whole text file).
type Section struct {
	text     string
	metadata map[string]string
}

// NewSection creates a Section, copying metadata.
func NewSection(text string, metadata map[string]string) Section {
	return Section{text: text, metadata: cloneMetadata(metadata)}
}

// Text returns the section text.
func (s Section) Text() string { return s.text }

// Metadata returns the provenance metadata (source, page).
func (s Section) Metadata() map[string]string { return s.metadata }

// Source returns the source metadata value.
func (s Section) Source() string { return s.metadata[MetaSource] }

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
