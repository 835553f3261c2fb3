package app_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rbt/internal/adapters/config"
	"go.trai.ch/rbt/internal/adapters/fs"
	"go.trai.ch/rbt/internal/adapters/linear"
	"go.trai.ch/rbt/internal/adapters/logger"
	"go.trai.ch/rbt/internal/adapters/shell"
	"go.trai.ch/rbt/internal/adapters/telemetry"
	"go.trai.ch/rbt/internal/app"
	"go.trai.ch/rbt/internal/core/domain"
)

const pipeline = `name: pipeline
default: twice
jobs:
  gen:
    tool: sh
    args: [-c, "cat a.txt > out.txt"]
    input_files: [a.txt]
    outputs: [out.txt]
  twice:
    tool: sh
    args: [-c, "cat out.txt out.txt > twice.txt"]
    inputs: [gen]
    outputs: [twice.txt]
`

const failing = `name: failing
default: after
jobs:
  bad:
    tool: sh
    args: [-c, "echo boom >&2; exit 3"]
    outputs: [never.txt]
  after:
    tool: sh
    args: [-c, "cp never.txt after.txt"]
    inputs: [bad]
    outputs: [after.txt]
`

type harness struct {
	dir    string
	app    *app.App
	stdout bytes.Buffer
	stderr bytes.Buffer
	logs   bytes.Buffer
}

func newHarness(t *testing.T, definition string) *harness {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	h := &harness{dir: t.TempDir()}
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, domain.BuildFileName), []byte(definition), 0o644))

	log := logger.New()
	log.SetOutput(&h.logs)

	var out bytes.Buffer
	h.app = app.New(
		config.NewLoader(log, fs.NewResolver()),
		shell.NewExecutor(log),
		shell.NewPathResolver(),
		fs.NewVerifier(),
		fs.NewWalker(),
		telemetry.NewNoOpTracer(),
		log,
		linear.NewRenderer(&out, &h.stderr),
	).WithStdout(&h.stdout).WithBuildIDs(func() string { return "build-id" })
	return h
}

func (h *harness) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, name), []byte(content), 0o644))
}

func readSummary(t *testing.T, path string) domain.Summary {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var s domain.Summary
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestApp_Run_BuildsAndCaches(t *testing.T) {
	h := newHarness(t, pipeline)
	h.write(t, "a.txt", "hello\n")
	summaryPath := filepath.Join(t.TempDir(), "summary.json")

	opts := app.RunOptions{File: h.dir, SummaryPath: summaryPath, PrintRootOutputPaths: true}

	// First run executes both jobs.
	require.NoError(t, h.app.Run(t.Context(), nil, opts))

	first := readSummary(t, summaryPath)
	assert.Equal(t, "build-id", first.BuildID)
	assert.Equal(t, domain.Counts{Succeeded: 2}, first.Counts)

	storePath := strings.TrimSpace(h.stdout.String())
	require.NotEmpty(t, storePath)
	assert.True(t, strings.HasPrefix(storePath, filepath.Join(h.dir, domain.RootDirName, domain.StoreDirName)))

	data, err := os.ReadFile(filepath.Join(storePath, "twice.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nhello\n", string(data))

	// Second run reuses everything.
	h.stdout.Reset()
	require.NoError(t, h.app.Run(t.Context(), nil, opts))

	second := readSummary(t, summaryPath)
	assert.Equal(t, domain.Counts{Skipped: 2}, second.Counts)
	assert.Equal(t, storePath, strings.TrimSpace(h.stdout.String()))
	for i := range second.Jobs {
		assert.Equal(t, first.Jobs[i].Artifacts, second.Jobs[i].Artifacts)
	}

	// Changing an input file invalidates both jobs.
	h.write(t, "a.txt", "changed!\n")
	require.NoError(t, h.app.Run(t.Context(), nil, opts))
	assert.Equal(t, domain.Counts{Succeeded: 2}, readSummary(t, summaryPath).Counts)

	_, err = os.Stat(filepath.Join(h.dir, domain.RootDirName, domain.FileHashesFileName))
	assert.NoError(t, err)
}

func TestApp_Run_SelectsJobs(t *testing.T) {
	h := newHarness(t, pipeline)
	h.write(t, "a.txt", "hello\n")
	summaryPath := filepath.Join(t.TempDir(), "summary.json")

	require.NoError(t, h.app.Run(t.Context(), []string{"gen"}, app.RunOptions{File: h.dir, SummaryPath: summaryPath}))

	s := readSummary(t, summaryPath)
	require.Len(t, s.Jobs, 1)
	assert.True(t, s.Jobs[0].Root)
	assert.Contains(t, s.Jobs[0].Label, "sh -c")
}

func TestApp_Run_Failure(t *testing.T) {
	h := newHarness(t, failing)
	summaryPath := filepath.Join(t.TempDir(), "summary.json")

	err := h.app.Run(t.Context(), nil, app.RunOptions{File: h.dir, SummaryPath: summaryPath, PrintRootOutputPaths: true})
	require.ErrorIs(t, err, domain.ErrBuildFailed)

	s := readSummary(t, summaryPath)
	assert.Equal(t, domain.Counts{Failed: 2}, s.Counts)
	assert.Contains(t, s.Jobs[0].Error, "exited with code 3")
	assert.Equal(t, s.Jobs[0].Fingerprint, s.Jobs[1].Cause)

	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), "boom")
	assert.Contains(t, h.stderr.String(), "Build failed")
	assert.Contains(t, h.stderr.String(), "Not attempted:")
}

func TestApp_Run_UnknownJob(t *testing.T) {
	h := newHarness(t, pipeline)
	h.write(t, "a.txt", "hello\n")

	err := h.app.Run(t.Context(), []string{"nope"}, app.RunOptions{File: h.dir})
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestApp_Run_ConfigNotFound(t *testing.T) {
	h := newHarness(t, pipeline)

	err := h.app.Run(t.Context(), nil, app.RunOptions{File: t.TempDir()})
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestApp_Run_InvalidOnCancel(t *testing.T) {
	h := newHarness(t, pipeline)
	h.write(t, "a.txt", "hello\n")

	err := h.app.Run(t.Context(), nil, app.RunOptions{File: h.dir, OnCancel: "explode"})
	require.Error(t, err)
}

func TestApp_Run_RootDirOverride(t *testing.T) {
	h := newHarness(t, pipeline)
	h.write(t, "a.txt", "hello\n")
	rootDir := filepath.Join(t.TempDir(), "state")

	require.NoError(t, h.app.Run(t.Context(), nil, app.RunOptions{File: h.dir, RootDir: rootDir, WorkerThreads: 1}))

	_, err := os.Stat(filepath.Join(rootDir, domain.StoreDirName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(h.dir, domain.RootDirName))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApp_Run_UnreachableRemoteCacheIsDisabled(t *testing.T) {
	definition := "settings:\n  remote_cache:\n    endpoint: 127.0.0.1:1\n    bucket: rbt\n" + pipeline
	h := newHarness(t, definition)
	h.write(t, "a.txt", "hello\n")
	summaryPath := filepath.Join(t.TempDir(), "summary.json")

	require.NoError(t, h.app.Run(t.Context(), nil, app.RunOptions{File: h.dir, SummaryPath: summaryPath}))

	assert.Equal(t, domain.Counts{Succeeded: 2}, readSummary(t, summaryPath).Counts)
	assert.Equal(t, 1, strings.Count(h.logs.String(), "remote cache disabled"))
	assert.NotContains(t, h.logs.String(), "remote cache lookup failed")
}

func TestApp_Run_ProgressLog(t *testing.T) {
	h := newHarness(t, pipeline)
	h.write(t, "a.txt", "hello\n")
	progressLog := filepath.Join(t.TempDir(), "progress.jsonl")

	require.NoError(t, h.app.Run(t.Context(), nil, app.RunOptions{File: h.dir, ProgressLog: progressLog}))

	data, err := os.ReadFile(progressLog)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestApp_Clean(t *testing.T) {
	h := newHarness(t, pipeline)
	h.write(t, "a.txt", "hello\n")
	root := filepath.Join(h.dir, domain.RootDirName)

	require.NoError(t, h.app.Run(t.Context(), nil, app.RunOptions{File: h.dir}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, domain.WorkspacesDirName, "leftover"), 0o750))

	require.NoError(t, h.app.Clean(t.Context(), app.CleanOptions{File: h.dir, Workspaces: true}))

	_, err := os.Stat(filepath.Join(root, domain.WorkspacesDirName))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(root, domain.StoreDirName))
	require.NoError(t, err)

	require.NoError(t, h.app.Clean(t.Context(), app.CleanOptions{File: h.dir}))

	_, err = os.Stat(root)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
