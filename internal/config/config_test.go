package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("TANDEM_CONFIG", "")
	t.Setenv("TANDEM_MODEL", "")
	t.Setenv("TANDEM_LOG_LEVEL", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
}

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_ProjectJSONCWithComments(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, "tandem.jsonc", `{
		// pick the small model for local work
		"model": "anthropic/claude-3-5-haiku-20241022",
		"session": {"max_turns": 5},
		"planner": {"prompt_compression": true}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-5-haiku-20241022", cfg.Model)
	assert.Equal(t, 5, cfg.Session.MaxTurns)
	assert.True(t, cfg.Planner.PromptCompression)
}

func TestLoad_GlobalThenProjectPrecedence(t *testing.T) {
	isolateEnv(t)
	globalDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "tandem")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))
	writeConfig(t, globalDir, "tandem.json", `{"model": "openai/gpt-4o", "log_level": "DEBUG"}`)

	projectDir := t.TempDir()
	writeConfig(t, projectDir, "tandem.json", `{"model": "openai/gpt-4o-mini"}`)

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	// Project overrides the model; the global log level survives.
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Model)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TEST_SECRET_KEY", "sk-12345")

	dir := t.TempDir()
	writeConfig(t, dir, "tandem.json", `{"provider": {"openai": {"api_key": "{env:TEST_SECRET_KEY}"}}}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-12345", cfg.Provider["openai"].APIKey)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, "tandem.json", `{"model": "openai/gpt-4o"}`)

	t.Setenv("TANDEM_MODEL", "anthropic/claude-sonnet-4-20250514")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4-20250514", cfg.Model)
	assert.Equal(t, "sk-ant-test", cfg.Provider["anthropic"].APIKey)
}

func TestLoad_DefaultsApply(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, GetPaths().Data, cfg.Session.Dir)
	assert.Zero(t, cfg.Session.MaxTurns)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "WARN"}`), 0o644))
	t.Setenv("TANDEM_CONFIG", path)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.LogLevel)
}
