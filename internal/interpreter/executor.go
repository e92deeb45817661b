package interpreter

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const defaultExecTimeout = 2 * time.Minute

// ExecutionResult is the outcome of running one generated program.
type ExecutionResult struct {
	Success       bool
	Output        string
	Error         string
	ExitCode      int
	ArtifactPaths []string
}

// ShellExecutor parses and runs generated shell programs inside the
// session workspace. A fresh runner is built per execution so one
// program's shell state never leaks into the next.
type ShellExecutor struct {
	cwd     string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewShellExecutor creates an executor rooted at cwd, creating the
// directory if needed.
func NewShellExecutor(cwd string, logger zerolog.Logger) (*ShellExecutor, error) {
	if err := os.MkdirAll(cwd, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &ShellExecutor{
		cwd:     cwd,
		timeout: defaultExecTimeout,
		logger:  logger,
	}, nil
}

// Parse checks the program without running it.
func (e *ShellExecutor) Parse(code string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(code), "")
	return err
}

// Run executes the program and reports its output, exit status, and any
// files that appeared in the workspace during the run.
func (e *ShellExecutor) Run(ctx context.Context, code string, env map[string]string) (*ExecutionResult, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(code), "")
	if err != nil {
		return &ExecutionResult{Success: false, Error: fmt.Sprintf("parse error: %v", err), ExitCode: -1}, nil
	}

	before, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	environ := os.Environ()
	environ = append(environ, "PWD="+e.cwd)
	for k, v := range env {
		environ = append(environ, k+"="+v)
	}

	runner, err := interp.New(
		interp.Dir(e.cwd),
		interp.StdIO(strings.NewReader(""), &stdout, &stderr),
		interp.Env(expand.ListEnviron(environ...)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating shell runner: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	runErr := runner.Run(runCtx, file)
	elapsed := time.Since(start)

	result := &ExecutionResult{
		Success: runErr == nil,
		Output:  combineOutput(stdout.String(), stderr.String()),
	}
	if runErr != nil {
		if status, ok := interp.IsExitStatus(runErr); ok {
			result.ExitCode = int(status)
		} else {
			result.ExitCode = -1
		}
		result.Error = runErr.Error()
		if runCtx.Err() == context.DeadlineExceeded {
			result.Error = fmt.Sprintf("execution timed out after %s", e.timeout)
		}
	}

	after, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	result.ArtifactPaths = newPaths(before, after)

	e.logger.Debug().
		Bool("success", result.Success).
		Int("exit_code", result.ExitCode).
		Dur("elapsed", elapsed).
		Int("artifacts", len(result.ArtifactPaths)).
		Msg("executed generated program")

	return result, nil
}

// snapshot lists the workspace's current files, relative to cwd.
func (e *ShellExecutor) snapshot() (map[string]bool, error) {
	files := make(map[string]bool)
	err := filepath.WalkDir(e.cwd, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(e.cwd, path)
		if relErr != nil {
			return relErr
		}
		files[rel] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning workspace: %w", err)
	}
	return files, nil
}

func newPaths(before, after map[string]bool) []string {
	var paths []string
	for path := range after {
		if !before[path] {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

func combineOutput(stdout, stderr string) string {
	stdout = strings.TrimRight(stdout, "\n")
	stderr = strings.TrimRight(stderr, "\n")
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}
