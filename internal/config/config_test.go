package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Platforms, cfg.Platforms)
	assert.Equal(t, 7, cfg.Threshold)
	assert.Equal(t, "Europe/Amsterdam", cfg.Schedule.Timezone)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Empty(t, cfg.Backend.SearchModel, "web search is opt-in")
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "socialbot.yml", `
platforms: [LinkedIn, X]
threshold: 8
backend:
  model: gpt-4.1-mini
  searchModel: gpt-4o-search-preview
  timeout: 45s
schedule:
  startHour: 13
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"LinkedIn", "X"}, cfg.Platforms)
	assert.Equal(t, 8, cfg.Threshold)
	assert.Equal(t, "gpt-4.1-mini", cfg.Backend.Model)
	assert.Equal(t, "gpt-4o-search-preview", cfg.Backend.SearchModel)
	assert.Equal(t, 45*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 13, cfg.Schedule.StartHour)
	assert.Equal(t, 17, cfg.Schedule.EndHour, "unset fields keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Backend.ToolTimeout)
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", "threshold: 5\n")

	cfg, err := Load(t.TempDir(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Threshold)
}

func TestLoad_MissingExplicitPathFails(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SOCIALBOT_THRESHOLD", "9")
	t.Setenv("SOCIALBOT_PLATFORMS", "Threads, LinkedIn ,")

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Backend.APIKey)
	assert.Equal(t, 9, cfg.Threshold)
	assert.Equal(t, []string{"Threads", "LinkedIn"}, cfg.Platforms)
}

func TestLoad_DotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "SOCIALBOT_MODEL=from-dotenv\nSOCIALBOT_THRESHOLD=3\n")
	t.Setenv("SOCIALBOT_THRESHOLD", "6")
	t.Setenv("SOCIALBOT_MODEL", "")
	os.Unsetenv("SOCIALBOT_MODEL")
	t.Cleanup(func() { os.Unsetenv("SOCIALBOT_MODEL") })

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Threshold)
	assert.Equal(t, "from-dotenv", cfg.Backend.Model)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"no platforms", func(c *Config) { c.Platforms = nil }, "platform"},
		{"blank platform", func(c *Config) { c.Platforms = []string{" "} }, "platform"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "timezone"},
		{"inverted window", func(c *Config) { c.Schedule.StartHour = 18 }, "window"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "s3" }, "storage"},
		{"unknown calendar", func(c *Config) { c.Calendar.Driver = "outlook" }, "calendar"},
		{"unknown transcript", func(c *Config) { c.Transcript.Source = "vimeo" }, "transcript"},
		{"drive without credentials", func(c *Config) { c.Storage.Driver = "drive" }, "credentialsFile"},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }, "maxIterations"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errSub)
		})
	}

	cfg := Default()
	assert.NoError(t, cfg.Validate())
}
