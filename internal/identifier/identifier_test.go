package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDOI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "registrar url",
			input:  "https://doi.org/10.1038/s41586-020-2012-7",
			want:   "10.1038/s41586-020-2012-7",
			wantOK: true,
		},
		{
			name:   "legacy dx host",
			input:  "http://dx.doi.org/10.1016/j.cell.2020.02.052",
			want:   "10.1016/j.cell.2020.02.052",
			wantOK: true,
		},
		{
			name:   "case preserved",
			input:  "https://doi.org/10.1016/S0140-6736(20)30183-5",
			want:   "10.1016/S0140-6736(20)30183-5",
			wantOK: true,
		},
		{
			name:   "trailing punctuation and whitespace",
			input:  "see https://doi.org/10.1093/nar/gkaa1100.  ",
			want:   "10.1093/nar/gkaa1100",
			wantOK: true,
		},
		{
			name:   "unbalanced closing paren from prose",
			input:  "(doi: 10.1126/science.abb2507)",
			want:   "10.1126/science.abb2507",
			wantOK: true,
		},
		{
			name:   "query string dropped",
			input:  "https://doi.org/10.1371/journal.pone.0230405?utm_source=x",
			want:   "10.1371/journal.pone.0230405",
			wantOK: true,
		},
		{
			name:   "percent encoded slash",
			input:  "https://doi.org/10.1000%2Fxyz123",
			want:   "10.1000/xyz123",
			wantOK: true,
		},
		{
			name:   "percent escape inside a matched doi is kept",
			input:  "https://doi.org/10.1038/ABC%2Fdef",
			want:   "10.1038/ABC%2Fdef",
			wantOK: true,
		},
		{
			name:   "html anchor around registrar url",
			input:  `<a href="https://doi.org/10.1038/abc">https://doi.org/10.1038/abc</a>`,
			want:   "10.1038/abc",
			wantOK: true,
		},
		{
			name:   "single quoted href",
			input:  "<a href='https://doi.org/10.1126/science.abb2507'>paper</a>",
			want:   "10.1126/science.abb2507",
			wantOK: true,
		},
		{
			name:   "bare doi in publisher url",
			input:  "https://www.nature.com/articles/10.1038/nature12373",
			want:   "10.1038/nature12373",
			wantOK: true,
		},
		{
			name:   "bare doi string",
			input:  "10.1002/anie.202004934",
			want:   "10.1002/anie.202004934",
			wantOK: true,
		},
		{
			name:  "pubmed is unsupported",
			input: "https://pubmed.ncbi.nlm.nih.gov/32350462/",
		},
		{
			name:  "prefix too short",
			input: "https://doi.org/10.12/abc",
		},
		{
			name:  "empty",
			input: "   ",
		},
		{
			name:  "no suffix",
			input: "10.1038/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractDOI(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindDOI, Classify("https://doi.org/10.1038/s41586-020-2012-7"))
	assert.Equal(t, KindPubMed, Classify("https://pubmed.ncbi.nlm.nih.gov/32350462/"))
	assert.Equal(t, KindORCID, Classify("https://orcid.org/0000-0002-1825-0097"))
	assert.Equal(t, KindUnknown, Classify("https://example.org/paper.pdf"))
	assert.Equal(t, KindUnknown, Classify(""))
	assert.Equal(t, "pubmed", KindPubMed.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestNormalizeORCID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "https://orcid.org/0000-0002-1825-0097", want: "0000-0002-1825-0097", wantOK: true},
		{input: "HTTP://ORCID.ORG/0000-0003-3051-737x", want: "0000-0003-3051-737X", wantOK: true},
		{input: "orcid.org/0000-0002-1234-5678/", want: "0000-0002-1234-5678", wantOK: true},
		{input: "0000000218250097", want: "0000-0002-1825-0097", wantOK: true},
		{input: " 0000-0002-1234-5678 ", want: "0000-0002-1234-5678", wantOK: true},
		{input: "0000-0002-1234", wantOK: false},
		{input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizeORCID(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateORCID(t *testing.T) {
	t.Parallel()

	got, err := ValidateORCID("https://orcid.org/0000-0002-1825-0097")
	require.NoError(t, err)
	assert.Equal(t, "0000-0002-1825-0097", got)

	got, err = ValidateORCID("0000-0003-3051-737X")
	require.NoError(t, err)
	assert.Equal(t, "0000-0003-3051-737X", got)

	_, err = ValidateORCID("0000-0002-1825-0098")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7")

	_, err = ValidateORCID("not-an-orcid")
	assert.Error(t, err)
}

func TestExtractORCIDs(t *testing.T) {
	t.Parallel()

	text := "Authors: A (https://orcid.org/0000-0002-1825-0097), B 0000-0003-3051-737x, " +
		"A again orcid.org/0000-0002-1825-0097"
	assert.Equal(t, []string{"0000-0002-1825-0097", "0000-0003-3051-737X"}, ExtractORCIDs(text))
	assert.Empty(t, ExtractORCIDs("no identifiers here"))
}

func TestSameORCID(t *testing.T) {
	t.Parallel()

	assert.True(t, SameORCID("https://orcid.org/0000-0002-1234-5678", "0000-0002-1234-5678"))
	assert.False(t, SameORCID("0000-0002-1234-5678", "0000-0002-1234-5679"))
	assert.True(t, SameORCID("scopus:123", "SCOPUS:123"))
	assert.False(t, SameORCID("", ""))
}
