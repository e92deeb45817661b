package interpreter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *ShellExecutor {
	t.Helper()
	e, err := NewShellExecutor(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestShellExecutor_CapturesOutput(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Run(context.Background(), `echo "hello world"`, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello world", result.Output)
}

func TestShellExecutor_ReportsExitCode(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Run(context.Background(), `echo "before failure"; exit 3`, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "before failure", result.Output)
}

func TestShellExecutor_TracksNewArtifacts(t *testing.T) {
	e := newTestExecutor(t)

	preexisting := filepath.Join(e.cwd, "already-there.txt")
	require.NoError(t, os.WriteFile(preexisting, []byte("x"), 0o644))

	result, err := e.Run(context.Background(), `echo "data" > report.csv; mkdir -p out; echo "p" > out/plot.svg`, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []string{filepath.Join("out", "plot.svg"), "report.csv"}, result.ArtifactPaths)
}

func TestShellExecutor_SessionVariablesReachTheProgram(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Run(context.Background(), `echo "user is $TANDEM_USER"`, map[string]string{
		"TANDEM_USER": "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "user is alice", result.Output)
}

func TestShellExecutor_ParseErrorDoesNotExecute(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Run(context.Background(), `if then fi (`, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "parse error")
	assert.Empty(t, result.ArtifactPaths)
}

func TestShellExecutor_RunsInWorkspace(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Run(context.Background(), `pwd`, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	got, err := filepath.EvalSymlinks(result.Output)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(e.cwd)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
