package validate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/results"
)

const claimsJSON = `[
  {
    "claim": "Sky",
    "predictions": {"justification": "The sky is blue. Water boils at 100C.", "verdict": "Supported"},
    "context_sources": ["The sky appears blue.", "Water boils at 100C."],
    "top_evidence_docs": ["Intro. The sky appears blue.", "Water boils at 100C. Fact."],
    "top_evidence_urls": ["https://sky.example", "ftp://water.example"],
    "top_evidence_idxs": [1, 2]
  },
  {
    "claim": "Out of order",
    "predictions": {"justification": "Anything.", "verdict": "Refuted"},
    "context_sources": ["second paragraph text", "first paragraph text"],
    "top_evidence_docs": ["first paragraph text", "second paragraph text"],
    "top_evidence_urls": ["https://a.example", "https://b.example"],
    "top_evidence_idxs": [1, 1]
  }
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupResults(t *testing.T) (string, *Validator) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "results.json"), claimsJSON)

	writeFile(t, filepath.Join(dir, "Answer_Attributions/claim_0/answer_attributions.json"), `[[10, 2], [1, 9], [1, 1]]`)
	writeFile(t, filepath.Join(dir, "Web_Evidence/claim_0/search_infos.json"),
		`[{"title": "Sky", "url": "https://sky.example"}, {"title": "Water", "url": "https://water.example"}]`)
	writeFile(t, filepath.Join(dir, "Web_Evidence/claim_0/search_result_1.txt"), "header\nIntro. The sky appears blue.\n")
	writeFile(t, filepath.Join(dir, "Web_Evidence/claim_0/search_result_2.txt"), "header\nWater boils at 100C. Fact.\n")

	cfg := model.DefaultConfig()
	cfg.Results = model.ResultsConfig{Dir: dir, ClaimsFile: filepath.Join(dir, "results.json")}
	cfg.Concurrency.Workers = 2

	v, err := NewValidator(cfg, results.NewStore(cfg.Results, nil, 0))
	require.NoError(t, err)

	return dir, v
}

func hasIssue(issues []model.Issue, kind model.IssueKind, sev model.IssueSeverity) bool {
	for _, is := range issues {
		if is.Kind == kind && is.Severity == sev {
			return true
		}
	}
	return false
}

func TestValidator_Validate(t *testing.T) {
	_, v := setupResults(t)

	reports, err := v.Validate(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	for i, r := range reports {
		assert.Equal(t, i, r.ClaimIndex)
	}

	first := reports[0]
	assert.False(t, first.Critical(), "claim 0 renders: %+v", first.Issues)
	assert.True(t, hasIssue(first.Issues, model.IssueTruncation, model.SeverityWarning),
		"truncation warning for 2 sentences and 3 rows: %+v", first.Issues)
	assert.True(t, hasIssue(first.Issues, model.IssueShape, model.SeverityWarning),
		"warning for ftp evidence url: %+v", first.Issues)

	second := reports[1]
	require.True(t, second.Critical(), "out-of-order sources are critical")
	assert.True(t, hasIssue(second.Issues, model.IssueShape, model.SeverityCritical))

	assert.Equal(t, Summary{Claims: 2, Clean: 0, Warning: 1, Critical: 1}, Summarize(reports))
}

func TestValidator_CheckClaim_CitedSourceMissing(t *testing.T) {
	dir, v := setupResults(t)
	writeFile(t, filepath.Join(dir, "Web_Evidence/claim_0/search_result_2.txt"), "header\nPage rewritten.\n")

	issues := v.CheckClaim(context.Background(), 0)

	assert.True(t, hasIssue(issues, model.IssueLookupMiss, model.SeverityCritical),
		"critical lookup miss for cited source [2]: %+v", issues)
	assert.Equal(t, model.SeverityCritical, issues[0].Severity, "critical issues come first")
}

func TestValidator_CheckClaim_UncitedSourceMissing(t *testing.T) {
	dir, v := setupResults(t)
	writeFile(t, filepath.Join(dir, "Answer_Attributions/claim_0/answer_attributions.json"), `[[10, 2], [9, 1]]`)
	writeFile(t, filepath.Join(dir, "Web_Evidence/claim_0/search_result_2.txt"), "header\nPage rewritten.\n")

	issues := v.CheckClaim(context.Background(), 0)

	assert.True(t, hasIssue(issues, model.IssueLookupMiss, model.SeverityWarning))
	assert.False(t, hasIssue(issues, model.IssueLookupMiss, model.SeverityCritical), "uncited source is not critical")
}

func TestValidator_CheckClaim_ColumnMismatch(t *testing.T) {
	dir, v := setupResults(t)
	writeFile(t, filepath.Join(dir, "Answer_Attributions/claim_0/answer_attributions.json"), `[[10, 2, 3], [1, 9]]`)

	issues := v.CheckClaim(context.Background(), 0)

	assert.True(t, hasIssue(issues, model.IssueShape, model.SeverityCritical), "row width: %+v", issues)
}

func TestValidator_CheckClaim_CitationPastSources(t *testing.T) {
	dir, v := setupResults(t)
	writeFile(t, filepath.Join(dir, "Answer_Attributions/claim_0/answer_attributions.json"), `[[1, 2, 10], [1, 9]]`)

	issues := v.CheckClaim(context.Background(), 0)

	var found bool
	for _, is := range issues {
		if strings.Contains(is.Message, "cites [3]") {
			found = true
			assert.Equal(t, model.IssueShape, is.Kind)
			assert.Equal(t, model.SeverityCritical, is.Severity)
		}
	}
	assert.True(t, found, "citation past the context sources is reported: %+v", issues)
}

func TestValidator_CheckClaim_CitationsInRange(t *testing.T) {
	_, v := setupResults(t)

	for _, is := range v.CheckClaim(context.Background(), 0) {
		assert.NotContains(t, is.Message, "cites [")
	}
}

func TestValidator_CheckClaim_MissingAttributions(t *testing.T) {
	dir, v := setupResults(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "Answer_Attributions")))

	issues := v.CheckClaim(context.Background(), 0)

	assert.True(t, hasIssue(issues, model.IssueResource, model.SeverityCritical))
}

func TestValidator_CheckClaim_OutOfRange(t *testing.T) {
	_, v := setupResults(t)

	issues := v.CheckClaim(context.Background(), 7)

	require.Len(t, issues, 1)
	assert.Equal(t, model.IssueResource, issues[0].Kind)
}

func TestValidator_ContextCancellation(t *testing.T) {
	_, v := setupResults(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := v.Validate(ctx)
	assert.Error(t, err)
	assert.Len(t, reports, 2, "a report per claim")
}
