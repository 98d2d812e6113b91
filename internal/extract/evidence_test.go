package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factstudy/internal/model"
)

func TestPageText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"drops header", "URL: https://example.com\nFirst line.\nSecond line.", "First line. Second line."},
		{"trims lines", "header\n   padded  \n\tTabbed.\t", "padded Tabbed."},
		{"crlf", "header\r\nOne.\r\nTwo.", "One. Two."},
		{"header only", "header", ""},
		{"empty", "", ""},
		{"blank lines kept as gaps", "header\nA.\n\nB.", "A.  B."},
		{"final newline", "header\nA.\nB.\n", "A. B."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PageText(tt.raw))
		})
	}
}

func TestDomainName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/path?q=1", "example.com"},
		{"http://news.example.org", "news.example.org"},
		{"example.net/article", "example.net"},
		{"www.example.com", "example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DomainName(tt.in), "DomainName(%q)", tt.in)
	}
}

func TestSafeURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a", SafeURL("https://example.com/a"))
	assert.Equal(t, "http://example.com", SafeURL(" http://example.com "))
	assert.Equal(t, "#", SafeURL("javascript:alert(1)"))
	assert.Equal(t, "#", SafeURL("data:text/html,hi"))
	assert.Equal(t, "#", SafeURL("/relative"))
}

func TestBuildEvidence(t *testing.T) {
	record := model.ClaimRecord{
		EvidenceParagraphs: []string{"first paragraph", "second paragraph"},
		EvidenceURLs:       []string{"https://fallback.example/one", "https://fallback.example/two"},
		PageIndices:        []int{3, 1},
	}
	infos := []model.SearchInfo{
		{Title: "Page One", URL: "https://www.one.example/a"},
		{Title: "Page Two", URL: "https://two.example/b"},
		{Title: "Page Three", URL: ""},
	}

	evidence, err := BuildEvidence(record, infos)
	require.NoError(t, err)
	require.Len(t, evidence, 2)

	assert.Equal(t, "Page Three", evidence[0].Title)
	assert.Equal(t, "https://fallback.example/one", evidence[0].URL, "empty search-info URL falls back to evidence URL")
	assert.Equal(t, 3, evidence[0].PageIndex)

	assert.Equal(t, "Page One", evidence[1].Title)
	assert.Equal(t, "one.example", evidence[1].Domain)
}

func TestBuildEvidence_PageIndexOutOfRange(t *testing.T) {
	record := model.ClaimRecord{
		EvidenceParagraphs: []string{"p"},
		PageIndices:        []int{0},
	}

	_, err := BuildEvidence(record, []model.SearchInfo{{Title: "t"}})
	assert.ErrorIs(t, err, ErrPageIndex)

	record.PageIndices = []int{2}
	_, err = BuildEvidence(record, []model.SearchInfo{{Title: "t"}})
	assert.ErrorIs(t, err, ErrPageIndex)
}

func TestBuildEvidence_LengthMismatch(t *testing.T) {
	record := model.ClaimRecord{
		EvidenceParagraphs: []string{"a", "b"},
		PageIndices:        []int{1},
	}

	_, err := BuildEvidence(record, []model.SearchInfo{{}})
	assert.ErrorIs(t, err, ErrPageIndex)
}
