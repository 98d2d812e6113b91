package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ppiankov/factstudy/internal/model"
)

// Renderer renders the view of a single claim
type Renderer interface {
	RenderClaim(ctx context.Context, idx int, group model.ExperimentGroup) (*model.ClaimView, error)
}

// RenderResult is the outcome of rendering one claim in one group
type RenderResult struct {
	ClaimIndex int
	Group      model.ExperimentGroup
	View       *model.ClaimView
	Error      error
}

// BatchProcessor renders many claims concurrently
type BatchProcessor struct {
	renderer    Renderer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(renderer Renderer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		renderer:    renderer,
		concurrency: concurrency,
	}
}

// ProcessClaims renders every claim in every group.
// Results are ordered by claim, then by group.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, indices []int, groups []model.ExperimentGroup) []*RenderResult {
	if len(indices) == 0 || len(groups) == 0 {
		return []*RenderResult{}
	}

	tasks := make([]Task[*RenderResult], 0, len(indices)*len(groups))
	for _, idx := range indices {
		for _, group := range groups {
			tasks = append(tasks, func(ctx context.Context) (*RenderResult, error) {
				view, err := b.renderer.RenderClaim(ctx, idx, group)
				return &RenderResult{ClaimIndex: idx, Group: group, View: view, Error: err}, nil
			})
		}
	}

	results := make([]*RenderResult, len(tasks))
	for _, o := range Run(ctx, b.concurrency, tasks) {
		results[o.Index] = o.Value
	}

	// Tasks dropped after cancellation still get a result
	for i, r := range results {
		if r == nil {
			results[i] = &RenderResult{
				ClaimIndex: indices[i/len(groups)],
				Group:      groups[i%len(groups)],
				Error:      context.Cause(ctx),
			}
		}
	}

	return results
}

// ProcessFile reads claim indices from a file and renders them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, groups []model.ExperimentGroup) ([]*RenderResult, error) {
	indices, err := ReadIndicesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claim indices: %w", err)
	}

	return b.ProcessClaims(ctx, indices, groups), nil
}

// ReadIndicesFromFile reads claim indices from a file (one per line)
func ReadIndicesFromFile(filePath string) ([]int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var indices []int
	seen := make(map[int]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx, err := strconv.Atoi(line)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("line %d: invalid claim index %q", lineNo, line)
		}

		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return indices, nil
}
