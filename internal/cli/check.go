package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/validate"
)

var (
	checkJSON    string
	checkStrict  bool
	checkTimeout time.Duration
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the results directory for input problems",
	Long: `Check validates every claim before a study runs:
- Evidence page indices and search infos
- Context sources are found in the evidence paragraphs, in order
- Attribution matrices are well formed and match the justification
- Cited sources can be located in their evidence pages

Example:
  factstudy check
  factstudy check --json issues.json --strict`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkJSON, "json", "", "write all reports as JSON to this path")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "fail on warnings as well as critical issues")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Minute, "total timeout for the check")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	store, _ := newStore(cfg)

	v, err := validate.NewValidator(cfg, store)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Checking claims in %s...\n", cfg.Results.Dir)
	}

	reports, err := v.Validate(ctx)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	printReports(cmd.OutOrStdout(), reports)

	if checkJSON != "" {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal reports: %w", err)
		}
		if err := writeOutput(cmd.OutOrStdout(), checkJSON, data); err != nil {
			return err
		}
	}

	summary := validate.Summarize(reports)
	switch {
	case summary.Critical > 0:
		return fmt.Errorf("%d of %d claims have critical issues", summary.Critical, summary.Claims)
	case checkStrict && summary.Warning > 0:
		return fmt.Errorf("%d of %d claims have warnings", summary.Warning, summary.Claims)
	}

	return nil
}

// printReports prints every issue followed by a summary
func printReports(w io.Writer, reports []validate.Report) {
	for _, r := range reports {
		for _, is := range r.Issues {
			mark := "⚠"
			if is.Severity == model.SeverityCritical {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s claim %d [%s] %s\n", mark, r.ClaimIndex, is.Kind, is.Message)
		}
	}

	s := validate.Summarize(reports)
	fmt.Fprintf(w, "\nClaims: %d  Clean: %d  Warnings: %d  Critical: %d\n", s.Claims, s.Clean, s.Warning, s.Critical)
}
