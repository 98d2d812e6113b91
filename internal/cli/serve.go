package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/server"
	"github.com/ppiankov/factstudy/internal/study"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the study to participants",
	Long: `Serve starts the HTTP server that routes participants through the study:
- GET  /             current page (pre-survey, a claim, or post-survey)
- POST /next, /prev  page navigation
- GET  /claims/{idx} claim preview (only with --preview)
- GET  /healthz, /metrics, /robots.txt

Example:
  factstudy serve --results-dir ./fc_results --claims-file ./data/results.json
  factstudy serve --addr :9000 --group 1
  FACTSTUDY_STUDY_COOKIE_SECRET=... factstudy serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Int("group", 0, "default experiment group: 1 plain, 2 citations, 3 interactive (overrides study.group)")
	serveCmd.Flags().Bool("preview", false, "serve /claims/{idx} previews (overrides server.enable_preview)")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("study.group", serveCmd.Flags().Lookup("group"))
	_ = viper.BindPFlag("server.enable_preview", serveCmd.Flags().Lookup("preview"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.AppEnv, cfg.Output.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(cfg, &logger)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	count, err := p.Store().Count()
	if err != nil {
		return fmt.Errorf("load claims: %w", err)
	}

	st, err := study.New(cfg.Study, count)
	if err != nil {
		return err
	}

	if cfg.Study.CookieSecret == "" {
		logger.Warn().Msg("No cookie secret configured; participant sessions will not survive a restart")
	}

	codec, err := study.NewSessionCodec(cfg.Study.CookieSecret, cfg.Study.CookieMaxAge)
	if err != nil {
		return err
	}

	handler, err := server.NewHandler(cfg, st, codec, p, &logger)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	logger.Info().
		Int("claims", count).
		Str("results_dir", cfg.Results.Dir).
		Str("group", model.ExperimentGroup(cfg.Study.Group).String()).
		Bool("preview", cfg.Server.EnablePreview).
		Msg("Study loaded")

	return server.NewServer(cfg.Server, handler, &logger).Start(ctx)
}
