package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/rbt/internal/adapters/config"
	"go.trai.ch/rbt/internal/adapters/fs"
	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports/mocks"
)

func createFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
}

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	return config.NewLoader(mockLogger, fs.NewResolver())
}

const helloRbt = `
name: hello
default: greet
settings:
  worker_threads: 4
  keep_going: true
  on_cancel: finish
jobs:
  compile:
    tool: cc
    args: [-o, hello, hello.c]
    input_files: [hello.c, "include/*.h"]
    outputs: [hello]
  greet:
    tool: {job: compile, output: hello}
    args: [world]
    outputs: [greeting.txt, ./greeting.txt]
`

func TestLoader_Load(t *testing.T) {
	rootDir := t.TempDir()
	createFile(t, rootDir, domain.BuildFileName, helloRbt)
	createFile(t, rootDir, "hello.c", "int main;")
	createFile(t, rootDir, "include/b.h", "")
	createFile(t, rootDir, "include/a.h", "")

	project, err := newLoader(t).Load(rootDir)
	require.NoError(t, err)

	assert.Equal(t, rootDir, project.Root)
	assert.Equal(t, "hello", project.Rbt.Name())
	assert.Equal(t, []string{"compile", "greet"}, project.Rbt.Names())

	assert.Equal(t, filepath.Join(rootDir, ".rbt"), project.Settings.RootDir)
	assert.Equal(t, 4, project.Settings.WorkerThreads)
	assert.True(t, project.Settings.KeepGoing)
	assert.Equal(t, domain.CancelFinish, project.Settings.OnCancel)
	assert.Nil(t, project.Settings.Remote)

	compile, ok := project.Rbt.Job("compile")
	require.True(t, ok)
	assert.Equal(t, "cc", compile.Command().Tool().Name())
	assert.Equal(t, []string{"-o", "hello", "hello.c"}, compile.Command().Args())
	assert.Equal(t, []string{"hello.c", "include/a.h", "include/b.h"}, compile.InputFiles())

	greet := project.Rbt.Default()
	tool := greet.Command().Tool()
	assert.Equal(t, domain.ToolBuilt, tool.Kind())
	assert.Same(t, compile, tool.Job())
	assert.Equal(t, []*domain.Job{compile}, greet.Inputs(), "built tool job is an implicit input")
	assert.Equal(t, []string{"greeting.txt"}, greet.Outputs())
}

func TestLoader_Load_DiscoversFromSubdirectory(t *testing.T) {
	rootDir := t.TempDir()
	createFile(t, rootDir, domain.BuildFileName, "jobs:\n  only:\n    tool: true\n")
	sub := filepath.Join(rootDir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, domain.DirPerm))

	loader := newLoader(t)

	discovered, err := loader.DiscoverRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, rootDir, discovered)

	project, err := loader.Load(sub)
	require.NoError(t, err)
	assert.Equal(t, "only", project.Rbt.DefaultName(), "a single job is the default")
	assert.Equal(t, filepath.Base(rootDir), project.Rbt.Name())
}

func TestLoader_Load_ExplicitFile(t *testing.T) {
	rootDir := t.TempDir()
	createFile(t, rootDir, "custom.yaml", "default: a\njobs:\n  a:\n    tool: true\n  b:\n    tool: false\n")

	project, err := newLoader(t).Load(filepath.Join(rootDir, "custom.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "a", project.Rbt.DefaultName())
}

func TestLoader_Load_RemoteCache(t *testing.T) {
	t.Setenv("RBT_S3_ACCESS_KEY", "access")
	t.Setenv("CI_SECRET", "secret")

	rootDir := t.TempDir()
	createFile(t, rootDir, domain.BuildFileName, `
settings:
  root_dir: /var/cache/rbt
  remote_cache:
    endpoint: localhost:9000
    bucket: rbt-cache
    prefix: ci
    secret_key_env: CI_SECRET
jobs:
  a:
    tool: true
`)

	project, err := newLoader(t).Load(rootDir)
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/rbt", project.Settings.RootDir)
	remote := project.Settings.Remote
	require.NotNil(t, remote)
	assert.True(t, remote.Enabled())
	assert.Equal(t, "access", remote.AccessKey)
	assert.Equal(t, "secret", remote.SecretKey)
	assert.Equal(t, "ci", remote.Prefix)
}

func TestLoader_Load_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		sentinel error
		contains string
	}{
		{
			name:     "name cycle",
			content:  "default: a\njobs:\n  a:\n    tool: true\n    inputs: [b]\n  b:\n    tool: true\n    inputs: [a]\n",
			sentinel: domain.ErrCycle,
			contains: "a -> b -> a",
		},
		{
			name:     "built tool cycle",
			content:  "default: a\njobs:\n  a:\n    tool: {job: a, output: bin}\n    outputs: [bin]\n",
			sentinel: domain.ErrCycle,
		},
		{
			name:     "unknown input",
			content:  "default: a\njobs:\n  a:\n    tool: true\n    inputs: [ghost]\n",
			sentinel: domain.ErrJobNotFound,
		},
		{
			name:     "undeclared tool output",
			content:  "default: b\njobs:\n  a:\n    tool: true\n    outputs: [x]\n  b:\n    tool: {job: a, output: y}\n",
			sentinel: domain.ErrUndeclaredToolOutput,
		},
		{
			name:     "absolute output",
			content:  "default: a\njobs:\n  a:\n    tool: true\n    outputs: [/etc/passwd]\n",
			sentinel: domain.ErrAbsolutePath,
		},
		{
			name:     "parent output",
			content:  "default: a\njobs:\n  a:\n    tool: true\n    outputs: [../x]\n",
			sentinel: domain.ErrParentPath,
		},
		{
			name:     "missing default",
			content:  "jobs:\n  a:\n    tool: true\n  b:\n    tool: true\n",
			sentinel: domain.ErrNoDefaultJob,
		},
		{
			name:     "bad cancel mode",
			content:  "settings:\n  on_cancel: explode\njobs:\n  a:\n    tool: true\n",
			contains: "invalid on_cancel value",
		},
		{
			name:     "incomplete remote cache",
			content:  "settings:\n  remote_cache:\n    bucket: b\njobs:\n  a:\n    tool: true\n",
			sentinel: domain.ErrInvalidConfig,
		},
		{
			name:     "malformed tool",
			content:  "jobs:\n  a:\n    tool: [cc]\n",
			contains: domain.ErrConfigParseFailed.Error(),
		},
		{
			name:     "missing input file",
			content:  "jobs:\n  a:\n    tool: true\n    input_files: [nope.c]\n",
			sentinel: domain.ErrInputNotFound,
			contains: "input not found",
		},
		{
			name:     "absolute input file",
			content:  "jobs:\n  a:\n    tool: true\n    input_files: [/etc/hosts]\n",
			sentinel: domain.ErrAbsolutePath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootDir := t.TempDir()
			createFile(t, rootDir, domain.BuildFileName, tt.content)

			_, err := newLoader(t).Load(rootDir)
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			if tt.contains != "" {
				assert.ErrorContains(t, err, tt.contains)
			}
		})
	}
}

func TestLoader_Load_NotFound(t *testing.T) {
	_, err := newLoader(t).Load(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}
