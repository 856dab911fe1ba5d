// Package chunking splits parsed document sections into overlapping, size-bounded chunks.
package chunking

import (
	"fmt"
	"iter"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/chunk"
	"github.com/kailas-cloud/docindex/internal/domain/document"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
const DefaultChunkOverlap = 200

// separators in priority order. The empty separator splits into single characters.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

// Splitter is a recursive character splitter. Lengths are counted in runes.
type Splitter struct {
	size    int
	overlap int
	newID   func() string
}

// Option configures the Splitter.
type Option func(*Splitter)

// WithIDFunc overrides chunk ID generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Splitter) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates a Splitter. Requires size > 0 and 0 <= overlap < size.
func New(size, overlap int, opts ...Option) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrConfiguration)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d: %w",
			size, overlap, domain.ErrConfiguration)
	}
	s := &Splitter{size: size, overlap: overlap, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Split is a one-shot helper: New followed by Splitter.Split.
func Split(sections []document.Section, size, overlap int) ([]chunk.Chunk, error) {
	s, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return s.Split(sections), nil
}

// Size returns the maximum chunk length.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the target overlap between adjacent chunks.
func (s *Splitter) Overlap() int { return s.overlap }

// Split materialises Iter.
func (s *Splitter) Split(sections []document.Section) []chunk.Chunk {
	var out []chunk.Chunk
	for _, c := range s.Iter(sections) {
		out = append(out, c)
	}
	return out
}

// Iter yields chunks in document order keyed by position. Each section is split on its own,
// so a chunk never spans two sections. Every call walks the input again.
func (s *Splitter) Iter(sections []document.Section) iter.Seq2[int, chunk.Chunk] {
	return func(yield func(int, chunk.Chunk) bool) {
		pos := 0
		for _, sec := range sections {
			for _, text := range s.splitText(sec.Text()) {
				c := chunk.Reconstruct(s.newID(), text, maps.Clone(sec.Metadata()), pos)
				if !yield(pos, c) {
					return
				}
				pos++
			}
		}
	}
}

func (s *Splitter) splitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if runeLen(text) <= s.size {
		return []string{strings.TrimSpace(text)}
	}
	return s.merge(s.pieces(text, separators))
}

// pieces breaks text at the highest-priority separator present, keeping the separator on the
// left piece. Pieces longer than the overlap are split further so the tail of a chunk can be
// carried; splitting below word level only happens for words longer than size-overlap.
func (s *Splitter) pieces(text string, seps []string) []string {
	sep, rest := pickSeparator(text, seps)

	var parts []string
	if sep == "" {
		parts = splitRunes(text)
	} else {
		parts = strings.SplitAfter(text, sep)
	}

	target := s.overlap
	if target == 0 {
		target = s.size
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			// keeps "\n\n" whole on the piece that ends a paragraph
			if len(out) > 0 {
				out[len(out)-1] += p
			}
			continue
		}
		n := runeLen(p)
		switch {
		case n <= target, len(rest) == 0:
			out = append(out, p)
		case rest[0] == "" && n <= s.size-s.overlap:
			out = append(out, p)
		default:
			out = append(out, s.pieces(p, rest)...)
		}
	}
	return out
}

// merge packs pieces greedily into chunks of at most size runes. A chunk is cut back to a
// paragraph end when one lies within the last quarter of it; the pieces after the cut open the
// next chunk, preceded by the trailing pieces of the emitted chunk that fit in overlap.
func (s *Splitter) merge(pieces []string) []string {
	var (
		out    []string
		window []string
		total  int
		lead   int // pieces at the front of window repeated from the previous chunk
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.size && len(window) > 0 {
			cut := s.paragraphCut(window, lead, n)
			out = appendChunk(out, window[:cut])
			window, total, lead = s.carry(window, cut, n)
		}
		window = append(window, p)
		total += n
	}
	if len(window) > 0 {
		out = appendChunk(out, window)
	}
	return out
}

// paragraphCut returns how many leading pieces of window to emit. The cut never drops below
// lead, and the pieces left over must still fit next to the incoming piece.
func (s *Splitter) paragraphCut(window []string, lead, next int) int {
	lookback := s.size / 4
	tail := 0
	for j := len(window); j > lead; j-- {
		if isParagraphEnd(window[j-1]) {
			return j
		}
		tail += runeLen(window[j-1])
		if tail > lookback || tail+next > s.size {
			break
		}
	}
	return len(window)
}

// carry builds the window that follows a cut and returns it with its length and lead count.
func (s *Splitter) carry(window []string, cut, next int) ([]string, int, int) {
	rest := 0
	for _, p := range window[cut:] {
		rest += runeLen(p)
	}
	start, overlap := cut, 0
	for start > 0 {
		n := runeLen(window[start-1])
		if overlap+n > s.overlap || overlap+n+rest+next > s.size {
			break
		}
		overlap += n
		start--
	}
	return window[start:], overlap + rest, cut - start
}

func isParagraphEnd(piece string) bool {
	return strings.HasSuffix(strings.TrimRight(piece, " \t"), "\n\n")
}

func appendChunk(out, window []string) []string {
	text := strings.TrimSpace(strings.Join(window, ""))
	if text == "" {
		return out
	}
	return append(out, text)
}

func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" || strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

func splitRunes(text string) []string {
	out := make([]string, 0, len(text))
	for len(text) > 0 {
		_, n := utf8.DecodeRuneInString(text)
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
