package chunking

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/chunk"
	"github.com/kailas-cloud/docindex/internal/domain/document"
)

func section(text string) document.Section {
	return document.NewSection(text, map[string]string{document.MetaSource: "doc.txt"})
}

func contents(chunks []chunk.Chunk) []string {
	return chunk.Contents(chunks)
}

// sharedBoundary returns the longest suffix of a that is also a prefix of b.
func sharedBoundary(a, b string) string {
	for k := min(len(a), len(b)); k > 0; k-- {
		if strings.HasSuffix(a, b[:k]) {
			return b[:k]
		}
	}
	return ""
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			require.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}

	s, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Equal(t, 1000, s.Size())
	assert.Equal(t, 200, s.Overlap())
}

func TestSplit_ConfigurationError(t *testing.T) {
	_, err := Split([]document.Section{section("text")}, 20, 20)
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSplit_EmptyDocument(t *testing.T) {
	s, err := New(20, 5)
	require.NoError(t, err)

	assert.Empty(t, s.Split(nil))
	assert.Empty(t, s.Split([]document.Section{section("")}))
	assert.Empty(t, s.Split([]document.Section{section("  \n\n\t ")}))
}

func TestSplit_ShortDocumentIsSingleChunk(t *testing.T) {
	s, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	got := s.Split([]document.Section{section("  Hello there.\nSecond line.  ")})

	require.Len(t, got, 1)
	assert.Equal(t, "Hello there.\nSecond line.", got[0].Content())
	assert.Equal(t, "doc.txt", got[0].Metadata()[document.MetaSource])
	assert.Equal(t, 0, got[0].Position())
}

func TestSplit_QuickBrownFox(t *testing.T) {
	text := "A quick brown fox. A lazy dog runs far."
	got, err := Split([]document.Section{section(text)}, 20, 5)
	require.NoError(t, err)

	texts := contents(got)
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Equal(t, []string{"A quick brown fox.", "fox. A lazy dog", "dog runs far."}, texts)

	for _, c := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 20, c)
	}
	for _, word := range strings.Fields(text) {
		found := false
		for _, c := range texts {
			if strings.Contains(c, word) {
				found = true
				break
			}
		}
		assert.True(t, found, "word %q not covered", word)
	}
	for i := 1; i < len(texts); i++ {
		shared := strings.TrimSpace(sharedBoundary(texts[i-1], texts[i]))
		assert.NotEmpty(t, shared, "chunks %d and %d do not overlap", i-1, i)
	}
}

func TestSplit_LongDocumentRespectsBounds(t *testing.T) {
	var b strings.Builder
	for p := 0; p < 20; p++ {
		for s := 0; s < 8; s++ {
			fmt.Fprintf(&b, "Paragraph %d sentence %d talks about vectors and chunks. ", p, s)
		}
		b.WriteString("\n\n")
	}

	s, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	got := s.Split([]document.Section{section(b.String())})
	texts := contents(got)

	require.Greater(t, len(texts), 5)
	for i, c := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize)
		assert.Equal(t, i, got[i].Position())
	}
	for i := 1; i < len(texts); i++ {
		shared := sharedBoundary(texts[i-1], texts[i])
		assert.NotEmpty(t, strings.TrimSpace(shared), "chunks %d and %d do not overlap", i-1, i)
		assert.LessOrEqual(t, utf8.RuneCountInString(shared), DefaultChunkOverlap)
	}
	assert.True(t, strings.HasPrefix(texts[0], "Paragraph 0 sentence 0"))
	assert.True(t, strings.HasSuffix(texts[len(texts)-1], "Paragraph 19 sentence 7 talks about vectors and chunks."))
}

func TestSplit_PrefersParagraphEnd(t *testing.T) {
	var b strings.Builder
	for p := 0; p < 5; p++ {
		for s := 0; s < 5; s++ {
			fmt.Fprintf(&b, "Paragraph %d sentence %d carries some filler words. ", p, s)
		}
		b.WriteString("\n\n")
	}

	got, err := Split([]document.Section{section(b.String())}, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	texts := contents(got)

	require.Len(t, texts, 2)
	assert.True(t, strings.HasSuffix(texts[0], "Paragraph 2 sentence 4 carries some filler words."), texts[0])
	assert.NotContains(t, texts[0], "Paragraph 3")
	assert.True(t, strings.HasPrefix(texts[1], "Paragraph 2 sentence 2"), texts[1])
	assert.True(t, strings.HasSuffix(texts[1], "Paragraph 4 sentence 4 carries some filler words."), texts[1])
	assert.Contains(t, texts[0], "words. \n\nParagraph 1", "paragraph breaks are kept inside a chunk")
	for _, c := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize)
	}
}

func TestSplit_DistantParagraphEndIgnored(t *testing.T) {
	var b strings.Builder
	b.WriteString("Short opening paragraph.\n\n")
	for s := 0; s < 40; s++ {
		fmt.Fprintf(&b, "Long paragraph sentence %02d adds more filler. ", s)
	}

	got, err := Split([]document.Section{section(b.String())}, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	texts := contents(got)

	require.Len(t, texts, 3)
	assert.Greater(t, utf8.RuneCountInString(texts[0]), 900)
	assert.True(t, strings.HasSuffix(texts[0], "sentence 20 adds more filler."), texts[0])
}

func TestSplit_LongWordFallsBackToCharacters(t *testing.T) {
	word := strings.Repeat("x", 45)
	got, err := Split([]document.Section{section(word)}, 20, 5)
	require.NoError(t, err)

	texts := contents(got)
	require.GreaterOrEqual(t, len(texts), 3)
	for _, c := range texts {
		assert.LessOrEqual(t, len(c), 20)
	}
}

func TestSplit_CountsRunes(t *testing.T) {
	text := strings.Repeat("ж", 15) + " " + strings.Repeat("я", 15)
	got, err := Split([]document.Section{section(text)}, 20, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{strings.Repeat("ж", 15), strings.Repeat("я", 15)}, contents(got))
}

func TestSplit_ZeroOverlap(t *testing.T) {
	got, err := Split([]document.Section{section("one two three four five six seven")}, 10, 0)
	require.NoError(t, err)

	texts := contents(got)
	assert.Equal(t, []string{"one two", "three", "four five", "six seven"}, texts)
}

func TestSplit_SectionsNeverMix(t *testing.T) {
	sections := []document.Section{
		document.NewSection("first page text that is long enough to split", map[string]string{"page": "1"}),
		document.NewSection("second page", map[string]string{"page": "2"}),
	}
	got, err := Split(sections, 20, 5)
	require.NoError(t, err)

	last := got[len(got)-1]
	assert.Equal(t, "second page", last.Content())
	assert.Equal(t, "2", last.Metadata()["page"])
	for _, c := range got[:len(got)-1] {
		assert.Equal(t, "1", c.Metadata()["page"])
		assert.NotContains(t, c.Content(), "second")
	}
}

func TestIter_RestartableAndStoppable(t *testing.T) {
	n := 0
	s, err := New(10, 2, WithIDFunc(func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}))
	require.NoError(t, err)
	sections := []document.Section{section("alpha beta gamma delta epsilon zeta")}

	first := s.Split(sections)
	second := s.Split(sections)
	assert.Equal(t, contents(first), contents(second))
	assert.Equal(t, "id-1", first[0].ID())
	assert.NotEqual(t, first[0].ID(), second[0].ID())

	seen := 0
	for pos := range s.Iter(sections) {
		seen++
		if pos == 1 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}
