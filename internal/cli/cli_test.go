package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/validate"
)

// withViper gives a test a clean global viper with defaults and env binding
func withViper(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	require.NoError(t, setDefaults(viper.GetViper(), model.DefaultConfig()))
	viper.SetEnvPrefix("FACTSTUDY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("no-cache", false, "")
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	withViper(t)

	cfg, err := loadConfig(testCommand())
	require.NoError(t, err)

	want := model.DefaultConfig()
	assert.Equal(t, want.Citation, cfg.Citation)
	assert.Equal(t, want.Excerpt, cfg.Excerpt)
	assert.Equal(t, want.Study.CookieMaxAge, cfg.Study.CookieMaxAge)
	assert.Equal(t, want.Server.RobotsDisallow, cfg.Server.RobotsDisallow)
	assert.Equal(t, want.Theme, cfg.Theme)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	withViper(t)

	t.Setenv("FACTSTUDY_STUDY_COOKIE_SECRET", "from-env")
	t.Setenv("FACTSTUDY_CITATION_MAX_CITATIONS", "5")
	t.Setenv("FACTSTUDY_SERVER_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := loadConfig(testCommand())
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Study.CookieSecret)
	assert.Equal(t, 5, cfg.Citation.MaxCitations)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	withViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("results:\n  dir: /data/fc\nexcerpt:\n  sentences_before: 1\n"), 0o600))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := loadConfig(testCommand())
	require.NoError(t, err)

	assert.Equal(t, "/data/fc", cfg.Results.Dir)
	assert.Equal(t, 1, cfg.Excerpt.SentencesBefore)
	assert.Equal(t, model.DefaultConfig().Excerpt.SentencesAfter, cfg.Excerpt.SentencesAfter)
}

func TestLoadConfig_Invalid(t *testing.T) {
	withViper(t)

	t.Setenv("FACTSTUDY_STUDY_GROUP", "7")

	_, err := loadConfig(testCommand())
	assert.ErrorContains(t, err, "study.group")
}

func TestLoadConfig_NoCacheFlag(t *testing.T) {
	withViper(t)

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("no-cache", "true"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.False(t, cfg.Cache.Enabled)
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".factstudy")

	path, err := writeDefaultConfig(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig().Citation, cfg.Citation)
	assert.Contains(t, string(data), "FACTSTUDY_STUDY_COOKIE_SECRET")

	_, err = writeDefaultConfig(dir)
	assert.ErrorContains(t, err, "already exists")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, version+"\n", out.String())
}

func TestPrintReports(t *testing.T) {
	reports := []validate.Report{
		{ClaimIndex: 0},
		{ClaimIndex: 1, Issues: []model.Issue{
			{ClaimIndex: 1, Kind: model.IssueLookupMiss, Severity: model.SeverityCritical, Message: "source [2] not found"},
		}},
		{ClaimIndex: 2, Issues: []model.Issue{
			{ClaimIndex: 2, Kind: model.IssueTruncation, Severity: model.SeverityWarning, Message: "4 sentences, 3 rows"},
		}},
	}

	var out bytes.Buffer
	printReports(&out, reports)

	text := out.String()
	assert.Contains(t, text, "✗ claim 1 [lookup_miss] source [2] not found")
	assert.Contains(t, text, "⚠ claim 2 [truncation] 4 sentences, 3 rows")
	assert.Contains(t, text, "Claims: 3  Clean: 1  Warnings: 1  Critical: 1")
}

func TestWriteOutput(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, writeOutput(&stdout, "", []byte("to stdout")))
	assert.Equal(t, "to stdout", stdout.String())

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, writeOutput(&stdout, path, []byte("<html></html>")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer

	logger := newLogger(&out, "production", false)
	logger.Info().Str("claim", "3").Msg("rendered")
	logger.Debug().Msg("hidden")

	assert.Contains(t, out.String(), `"claim":"3"`)
	assert.NotContains(t, out.String(), "hidden")

	out.Reset()
	logger = newLogger(&out, "local", true)
	logger.Debug().Msg("shown")

	assert.Contains(t, out.String(), "shown")
	assert.NotContains(t, out.String(), "{")
}
