package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/render"
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render <claim-idx>",
	Short: "Render one claim page to HTML",
	Long: `Render builds the complete page a participant would see for one claim,
without navigation, and writes it to a file or stdout.

Example:
  factstudy render 4
  factstudy render 4 --group 1 --out claim4-plain.html`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderGroup   int
	renderOut     string
	renderTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().IntVar(&renderGroup, "group", 0, "experiment group (default: study.group)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output HTML path (default: stdout)")
	renderCmd.Flags().DurationVar(&renderTimeout, "timeout", time.Minute, "render timeout")
}

func runRender(cmd *cobra.Command, args []string) error {
	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 0 {
		return fmt.Errorf("claim index must be a non-negative integer, got %q", args[0])
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	group := cfg.Study.Group
	if renderGroup != 0 {
		group = renderGroup
	}
	if !model.ValidGroup(group) {
		return fmt.Errorf("group must be 1, 2 or 3, got %d", group)
	}

	logger := newLogger(os.Stderr, cfg.AppEnv, cfg.Output.Verbose)

	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()

	p, err := newPipeline(cfg, &logger)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	pages, err := render.NewPages(cfg.Theme, cfg.Excerpt.HighlightClass)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Rendering claim %d (group %s)\n", idx, model.ExperimentGroup(group))
	}

	view, err := p.RenderClaim(ctx, idx, model.ExperimentGroup(group))
	if err != nil {
		return fmt.Errorf("render claim %d: %w", idx, err)
	}

	var buf bytes.Buffer
	if err := pages.RenderClaim(&buf, &render.ClaimPageData{View: view, Preview: true}); err != nil {
		return err
	}

	for _, w := range view.Warnings {
		fmt.Fprintf(os.Stderr, "⚠ %s\n", w)
	}

	return writeOutput(cmd.OutOrStdout(), renderOut, buf.Bytes())
}

// writeOutput writes data to path, or to stdout when path is empty or "-"
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	}

	return nil
}
