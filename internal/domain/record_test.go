package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare DOI unchanged",
			input:    "10.1/X",
			expected: "10.1/x",
		},
		{
			name:     "doi.org prefix stripped",
			input:    "https://doi.org/10.1/X",
			expected: "10.1/x",
		},
		{
			name:     "http prefix stripped",
			input:    "http://doi.org/10.1038/nature12373",
			expected: "10.1038/nature12373",
		},
		{
			name:     "uppercase dx resolver stripped",
			input:    "HTTPS://DX.DOI.ORG/10.1/x",
			expected: "10.1/x",
		},
		{
			name:     "doi scheme stripped",
			input:    "doi:10.1234/abcd",
			expected: "10.1234/abcd",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  10.5555/test  ",
			expected: "10.5555/test",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDOI(tt.input))
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and strips punctuation",
			input:    "Climate Change and Agriculture.",
			expected: "climate change and agriculture",
		},
		{
			name:     "collapses whitespace",
			input:    "Deep   Learning\t for\n Vision",
			expected: "deep learning for vision",
		},
		{
			name:     "keeps digits",
			input:    "COVID-19 Vaccines",
			expected: "covid19 vaccines",
		},
		{
			name:     "placeholder title normalizes to empty",
			input:    "Untitled",
			expected: "",
		},
		{
			name:     "empty stays empty",
			input:    "   ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTitle(tt.input))
		})
	}
}

func TestNormalizeAuthorName(t *testing.T) {
	assert.Equal(t, "jane doe", NormalizeAuthorName("Jane Doe"))
	assert.Equal(t, "jane doe", NormalizeAuthorName("Doe, Jane"))
	assert.Equal(t, "j r r tolkien", NormalizeAuthorName("J. R. R. Tolkien"))
	assert.Equal(t, "oconnor", NormalizeAuthorName("O'Connor"))
	assert.Equal(t, "", NormalizeAuthorName("  "))
}

func TestRecordSanitize(t *testing.T) {
	t.Run("fills placeholders", func(t *testing.T) {
		r := Record{Source: SourceDOAJ}
		r.Sanitize()

		assert.Equal(t, UnknownID, r.ID)
		assert.Equal(t, PlaceholderTitle, r.Title)
		assert.Equal(t, []Author{{Name: PlaceholderAuthor}}, r.Authors)
	})

	t.Run("caps authors", func(t *testing.T) {
		r := Record{ID: "x", Title: "t"}
		for i := 0; i < 9; i++ {
			r.Authors = append(r.Authors, Author{Name: "A"})
		}
		r.Sanitize()
		assert.Len(t, r.Authors, MaxAuthors)
	})

	t.Run("normalizes DOI and truncates abstract", func(t *testing.T) {
		r := Record{
			ID:       "x",
			Title:    "t",
			DOI:      "https://doi.org/10.1/ABC",
			Abstract: strings.Repeat("a", MaxAbstractLen+100),
		}
		r.Sanitize()

		assert.Equal(t, "10.1/abc", r.DOI)
		assert.Len(t, r.Abstract, MaxAbstractLen+3)
		assert.True(t, strings.HasSuffix(r.Abstract, "..."))
	})

	t.Run("clamps negative citations", func(t *testing.T) {
		r := Record{ID: "x", Title: "t", CitedByCount: -1}
		r.Sanitize()
		assert.Equal(t, 0, r.CitedByCount)
	})
}

func TestSourcePriority(t *testing.T) {
	// OpenAlex anchors merges over every other source.
	assert.Less(t, SourcePriority(SourceOpenAlex), SourcePriority(SourceCrossRef))
	assert.Less(t, SourcePriority(SourceCrossRef), SourcePriority(SourceArXiv))
	assert.Less(t, SourcePriority(SourceDOAJ), SourcePriority(SourceUnpaywall))

	// Unknown sources rank below everything known.
	assert.Greater(t, SourcePriority("Mystery Index"), SourcePriority(SourceUnpaywall))
}

func TestRecordSources(t *testing.T) {
	r := Record{Source: "OpenAlex+CrossRef"}
	assert.Equal(t, []string{"OpenAlex", "CrossRef"}, r.Sources())

	r = Record{Source: "arXiv"}
	assert.Equal(t, []string{"arXiv"}, r.Sources())

	r = Record{}
	assert.Nil(t, r.Sources())
}
