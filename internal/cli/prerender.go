package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/render"
	"github.com/ppiankov/factstudy/internal/worker"
)

var (
	prerenderGroups  []int
	prerenderFile    string
	prerenderOutDir  string
	prerenderWorkers int
	prerenderTimeout time.Duration
)

// prerenderCmd represents the prerender command
var prerenderCmd = &cobra.Command{
	Use:   "prerender",
	Short: "Render every claim in parallel and warm the view cache",
	Long: `Prerender renders claims concurrently:
- All claims of the results file, or the indices listed in --claims (one per line)
- Every requested experiment group
- Rendered views are stored in the view cache used by serve
- With --output-dir, a standalone HTML page is written per claim and group

Example:
  factstudy prerender
  factstudy prerender --groups 1,2 --output-dir ./pages
  factstudy prerender --claims subset.txt --workers 8`,
	Args: cobra.NoArgs,
	RunE: runPrerender,
}

func init() {
	rootCmd.AddCommand(prerenderCmd)

	prerenderCmd.Flags().IntSliceVar(&prerenderGroups, "groups", []int{int(model.GroupPlain), int(model.GroupCitations)}, "experiment groups to render")
	prerenderCmd.Flags().StringVar(&prerenderFile, "claims", "", "file with claim indices, one per line (default: all claims)")
	prerenderCmd.Flags().StringVar(&prerenderOutDir, "output-dir", "", "write one HTML page per claim and group into this directory")
	prerenderCmd.Flags().IntVar(&prerenderWorkers, "workers", 0, "number of concurrent workers (default: concurrency.workers)")
	prerenderCmd.Flags().DurationVar(&prerenderTimeout, "timeout", 10*time.Minute, "total timeout for prerendering")
}

func runPrerender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	groups := make([]model.ExperimentGroup, 0, len(prerenderGroups))
	for _, g := range prerenderGroups {
		if !model.ValidGroup(g) {
			return fmt.Errorf("group must be 1, 2 or 3, got %d", g)
		}
		groups = append(groups, model.ExperimentGroup(g))
	}

	workers := cfg.Concurrency.Workers
	if prerenderWorkers > 0 {
		workers = prerenderWorkers
	}

	logger := newLogger(os.Stderr, cfg.AppEnv, cfg.Output.Verbose)

	ctx, cancel := context.WithTimeout(context.Background(), prerenderTimeout)
	defer cancel()

	p, err := newPipeline(cfg, &logger)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	var pages *render.Pages
	if prerenderOutDir != "" {
		if pages, err = render.NewPages(cfg.Theme, cfg.Excerpt.HighlightClass); err != nil {
			return err
		}
		if err := os.MkdirAll(prerenderOutDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  factstudy Prerender\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Results dir:  %s\n", cfg.Results.Dir)
	fmt.Fprintf(os.Stderr, "  Groups:       %v\n", groups)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	if prerenderOutDir != "" {
		fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", prerenderOutDir)
	}
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(p, workers)

	var results []*worker.RenderResult
	if prerenderFile != "" {
		results, err = processor.ProcessFile(ctx, prerenderFile, groups)
		if err != nil {
			return fmt.Errorf("process file: %w", err)
		}
	} else {
		count, err := p.Store().Count()
		if err != nil {
			return fmt.Errorf("load claims: %w", err)
		}
		indices := make([]int, count)
		for i := range indices {
			indices[i] = i
		}
		results = processor.ProcessClaims(ctx, indices, groups)
	}

	successCount, failureCount, warningCount := 0, 0, 0

	for _, result := range results {
		label := fmt.Sprintf("claim %d [%s]", result.ClaimIndex, result.Group)

		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, result.Error)
			continue
		}

		if len(result.View.Warnings) > 0 {
			warningCount++
			for _, w := range result.View.Warnings {
				fmt.Fprintf(os.Stderr, "⚠ %s: %s\n", label, w)
			}
		}

		if pages != nil {
			if err := writeClaimPage(pages, result); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
				continue
			}
		}

		successCount++
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ %s\n", label)
		}
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Prerender Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d pages\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Warnings:  %d\n", warningCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d pages failed to render", failureCount, len(results))
	}

	return nil
}

// writeClaimPage writes a standalone page named claim_<idx>_<group>.html
func writeClaimPage(pages *render.Pages, result *worker.RenderResult) error {
	var buf bytes.Buffer
	if err := pages.RenderClaim(&buf, &render.ClaimPageData{View: result.View, Preview: true}); err != nil {
		return err
	}

	path := filepath.Join(prerenderOutDir, fmt.Sprintf("claim_%d_%s.html", result.ClaimIndex, result.Group))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
