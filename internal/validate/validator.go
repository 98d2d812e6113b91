// Package validate checks a results directory for input problems before a study runs.
package validate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/ppiankov/factstudy/internal/cite"
	"github.com/ppiankov/factstudy/internal/excerpt"
	"github.com/ppiankov/factstudy/internal/extract"
	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/results"
)

// Report lists the issues found for one claim
type Report struct {
	ClaimIndex int           `json:"claim_index"`
	Issues     []model.Issue `json:"issues"`
}

// Critical reports whether any issue stops the claim from rendering
func (r Report) Critical() bool {
	for _, is := range r.Issues {
		if is.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

// Validator checks claims concurrently
type Validator struct {
	store      *results.Store
	annotator  *cite.Annotator
	resolver   *excerpt.Resolver
	maxWorkers int
}

// NewValidator creates a new validator
func NewValidator(cfg *model.Config, store *results.Store) (*Validator, error) {
	tokenizer, err := extract.NewTokenizer()
	if err != nil {
		return nil, err
	}

	maxWorkers := cfg.Concurrency.Workers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	selector := cite.Selector{
		MinAbs:       cfg.Citation.MinAbsThreshold,
		MaxRatio:     cfg.Citation.MaxRatioThreshold,
		MaxCitations: cfg.Citation.MaxCitations,
	}

	return &Validator{
		store:      store,
		annotator:  cite.NewAnnotator(tokenizer, selector),
		resolver:   excerpt.NewResolver(tokenizer, cfg.Excerpt.SentencesBefore, cfg.Excerpt.SentencesAfter),
		maxWorkers: maxWorkers,
	}, nil
}

// Validate checks every claim in the results file concurrently.
// Reports are returned in claim order.
func (v *Validator) Validate(ctx context.Context) ([]Report, error) {
	n, err := v.store.Count()
	if err != nil {
		return nil, err
	}

	reports := make([]Report, n)
	var wg sync.WaitGroup

	// Create semaphore to limit concurrent checks
	semaphore := make(chan struct{}, v.maxWorkers)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case <-ctx.Done():
				reports[idx] = Report{ClaimIndex: idx, Issues: []model.Issue{
					issue(idx, model.IssueResource, model.SeverityCritical, "check cancelled: %v", ctx.Err()),
				}}
				return
			case semaphore <- struct{}{}:
			}

			// Release semaphore when done
			defer func() { <-semaphore }()

			reports[idx] = Report{ClaimIndex: idx, Issues: v.CheckClaim(ctx, idx)}
		}(i)
	}

	// Wait for all checks to complete
	wg.Wait()

	return reports, ctx.Err()
}

// CheckClaim runs every input check for claim idx. It keeps going after a
// problem where later checks do not depend on the failed one.
func (v *Validator) CheckClaim(ctx context.Context, idx int) []model.Issue {
	var issues []model.Issue
	add := func(kind model.IssueKind, sev model.IssueSeverity, format string, args ...any) {
		issues = append(issues, issue(idx, kind, sev, format, args...))
	}

	record, err := v.store.Claim(idx)
	if err != nil {
		add(model.IssueResource, model.SeverityCritical, "%v", err)
		return issues
	}

	for i, u := range record.EvidenceURLs {
		if extract.SafeURL(u) == "#" {
			add(model.IssueShape, model.SeverityWarning, "evidence url %d is not an http(s) url: %q", i, u)
		}
	}

	infos, err := v.store.SearchInfos(idx)
	if err != nil {
		add(model.IssueResource, model.SeverityCritical, "%v", err)
	} else if _, err := extract.BuildEvidence(record, infos); err != nil {
		add(model.IssueShape, model.SeverityCritical, "%v", err)
	}

	maps, err := extract.BuildSourceMaps(record.ContextSources, record.EvidenceParagraphs)
	if err != nil {
		add(model.IssueShape, model.SeverityCritical, "%v", err)
		return issues
	}

	matrix, err := v.store.Attributions(idx)
	if err != nil {
		add(model.IssueResource, model.SeverityCritical, "%v", err)
		return issues
	}

	for r, row := range matrix {
		if len(row) != len(record.ContextSources) {
			add(model.IssueShape, model.SeverityCritical, "attribution row %d has %d columns for %d context sources", r, len(row), len(record.ContextSources))
		}
	}

	ann, err := v.annotator.Annotate(record.Justification, matrix)
	if err != nil {
		add(model.IssueShape, model.SeverityCritical, "%v", err)
		return issues
	}

	for _, k := range cite.ParseMarkers(ann.Text) {
		if k < 1 || k > len(record.ContextSources) {
			add(model.IssueShape, model.SeverityCritical, "justification cites [%d] but there are %d context sources", k, len(record.ContextSources))
		}
	}

	if ann.Mismatch() {
		add(model.IssueTruncation, model.SeverityWarning, "%d justification sentences, %d attribution rows", ann.SentenceCount, ann.RowCount)
	}

	if len(record.PageIndices) != len(record.EvidenceParagraphs) {
		return issues
	}

	cited := citedSources(ann.Citations)
	for s, source := range record.ContextSources {
		if ctx.Err() != nil {
			add(model.IssueResource, model.SeverityCritical, "check cancelled: %v", ctx.Err())
			return issues
		}

		sev := model.SeverityWarning
		if cited[s+1] {
			sev = model.SeverityCritical
		}

		page := record.PageIndices[maps.Paragraph(s)]
		text, err := v.store.PageText(idx, page)
		if err != nil {
			add(model.IssueResource, sev, "%v", err)
			continue
		}

		if _, err := v.resolver.Resolve(source, text); err != nil {
			kind := model.IssueResource
			if errors.Is(err, excerpt.ErrFragmentNotFound) {
				kind = model.IssueLookupMiss
			}
			add(kind, sev, "context source [%d] in page %d: %v", s+1, page, err)
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity == model.SeverityCritical && issues[j].Severity != model.SeverityCritical
	})

	return issues
}

func citedSources(citations [][]int) map[int]bool {
	cited := make(map[int]bool)
	for _, cs := range citations {
		for _, k := range cs {
			cited[k] = true
		}
	}
	return cited
}

func issue(idx int, kind model.IssueKind, sev model.IssueSeverity, format string, args ...any) model.Issue {
	return model.Issue{
		ClaimIndex: idx,
		Kind:       kind,
		Severity:   sev,
		Message:    fmt.Sprintf(format, args...),
	}
}

// Summary counts claims by outcome
type Summary struct {
	Claims   int
	Clean    int
	Warning  int
	Critical int
}

// Summarize counts reports by their worst issue
func Summarize(reports []Report) Summary {
	s := Summary{Claims: len(reports)}
	for _, r := range reports {
		switch {
		case r.Critical():
			s.Critical++
		case len(r.Issues) > 0:
			s.Warning++
		default:
			s.Clean++
		}
	}
	return s
}
