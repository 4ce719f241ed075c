package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"waitroom/internal/config"
	"waitroom/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a temporary YAML config file
func createTestYAML(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

const (
	validYAML = `
data_dir: /srv/waitroom
server:
  port: 9090
display:
  source: remote
  server_url: http://kiosk-gw:9090
  poll_interval: 10
  manual_advance: true
  renderer: plain
layout:
  single_line_max: 16
log:
  debug: true
theme:
  name: clinic
`
	invalidSyntaxYAML = `
display:
  source: "local
  renderer: [
`
	invalidValueYAML = `
display:
  renderer: "browser"
`
	invalidRemoteYAML = `
display:
  source: remote
  server_url: "not a url"
`
)

func TestLoadConfigFile(t *testing.T) {
	t.Run("load valid config", func(t *testing.T) {
		cfg, err := config.LoadConfigFile(createTestYAML(t, validYAML))
		require.NoError(t, err)

		assert.Equal(t, "/srv/waitroom", cfg.DataDir)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset values keep defaults")
		assert.Equal(t, config.SourceRemote, cfg.Display.Source)
		assert.Equal(t, "http://kiosk-gw:9090", cfg.Display.ServerURL)
		assert.Equal(t, 10, cfg.Display.PollInterval)
		assert.True(t, cfg.Display.ManualAdvance)
		assert.Equal(t, config.RendererPlain, cfg.Display.Renderer)
		assert.Equal(t, 16, cfg.Layout.SingleLineMax)
		assert.Equal(t, 5, cfg.Layout.BreakWindow)
		assert.True(t, cfg.Log.Debug)
		assert.Equal(t, "clinic", cfg.Theme.Name)
		assert.Equal(t, "31", cfg.Theme.Primary)
	})

	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := config.LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, config.New(), cfg)
	})

	t.Run("invalid syntax", func(t *testing.T) {
		_, err := config.LoadConfigFile(createTestYAML(t, invalidSyntaxYAML))
		require.Error(t, err)
		assert.True(t, errors.IsInvalidConfig(err))
	})

	t.Run("invalid renderer", func(t *testing.T) {
		_, err := config.LoadConfigFile(createTestYAML(t, invalidValueYAML))
		require.Error(t, err)
		var ce *errors.ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "display.renderer", ce.Param())
	})

	t.Run("remote without absolute url", func(t *testing.T) {
		_, err := config.LoadConfigFile(createTestYAML(t, invalidRemoteYAML))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "display.server_url")
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WAITROOM_DATA_DIR", "/from/env")
	t.Setenv("WAITROOM_PORT", "7000")
	t.Setenv("WAITROOM_DEBUG", "true")

	cfg, err := config.LoadConfigFile(createTestYAML(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.True(t, cfg.Log.Debug)

	t.Setenv("WAITROOM_PORT", "eighty")
	_, err = config.LoadConfigFile(createTestYAML(t, validYAML))
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WAITROOM_TEST_ONLY_KEY=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("WAITROOM_TEST_ONLY_KEY") })

	require.NoError(t, config.LoadEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-dotenv", os.Getenv("WAITROOM_TEST_ONLY_KEY"))

	assert.NoError(t, config.LoadEnv(filepath.Join(dir, "missing.env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		param  string
	}{
		{"empty data dir", func(c *config.Config) { c.DataDir = "" }, "data_dir"},
		{"bad port", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown source", func(c *config.Config) { c.Display.Source = "ftp" }, "display.source"},
		{"zero poll", func(c *config.Config) { c.Display.PollInterval = 0 }, "display.poll_interval"},
		{"fonts inverted", func(c *config.Config) { c.Layout.MinFont = 300 }, "layout.min_font"},
		{"tiny line budget", func(c *config.Config) { c.Layout.SingleLineMax = 1 }, "layout.single_line_max"},
	}

	assert.NoError(t, config.New().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var ce *errors.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.param, ce.Param())
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.New()
	cfg.DataDir = "/var/lib/waitroom"
	cfg.Display.PollInterval = 7
	cfg.ApplyTheme("dark")

	require.NoError(t, config.SaveConfig(cfg, path))

	loaded, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/waitroom", loaded.DataDir)
	assert.Equal(t, 7, loaded.Display.PollInterval)
	assert.Equal(t, "dark", loaded.Theme.Name)
}

func TestThemes(t *testing.T) {
	for _, name := range config.ListThemes() {
		theme := config.GetTheme(name)
		assert.NotEmpty(t, theme["primary"], name)
	}
	assert.Equal(t, config.GetTheme("default"), config.GetTheme("no-such-theme"))
}
