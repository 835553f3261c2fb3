package shell_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/rbt/internal/adapters/shell"
	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports/mocks"
)

func shInvocation(t *testing.T, script string) *domain.Invocation {
	t.Helper()
	sh, err := shell.NewPathResolver().Resolve("sh")
	require.NoError(t, err)
	return &domain.Invocation{
		Label:      "test",
		Executable: sh,
		Args:       []string{"-c", script},
		WorkingDir: t.TempDir(),
	}
}

func TestExecutor_Execute_MultiLineOutput(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockLogger := mocks.NewMockLogger(ctrl)
	gomock.InOrder(
		mockLogger.EXPECT().Info("line1", "job", "test").Times(1),
		mockLogger.EXPECT().Info("line2", "job", "test").Times(1),
	)

	executor := shell.NewExecutor(mockLogger)

	code, err := executor.Execute(context.Background(), shInvocation(t, "echo line1; echo line2"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestExecutor_Execute_FragmentedOutput(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info("part1part2", "job", "test").Times(1)
	mockLogger.EXPECT().Warn("tail", "job", "test").Times(1)

	executor := shell.NewExecutor(mockLogger)

	inv := shInvocation(t, "printf part1; sleep 0.1; echo part2; printf tail >&2")
	_, err := executor.Execute(context.Background(), inv, nil, nil)
	require.NoError(t, err)
}

func TestExecutor_Execute_Writers(t *testing.T) {
	ctrl := gomock.NewController(t)

	// Logger is not used when writers are provided.
	executor := shell.NewExecutor(mocks.NewMockLogger(ctrl))

	var stdout, stderr bytes.Buffer
	inv := shInvocation(t, "echo hello to stdout; echo hello to stderr >&2; pwd")
	_, err := executor.Execute(context.Background(), inv, &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "hello to stdout")
	assert.Contains(t, stderr.String(), "hello to stderr")

	wd, err := filepath.EvalSymlinks(inv.WorkingDir)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), wd)
}

func TestExecutor_Execute_HermeticEnvironment(t *testing.T) {
	t.Setenv("RBT_LEAK", "secret")
	t.Setenv("HOME", "/home/rbt")

	ctrl := gomock.NewController(t)
	executor := shell.NewExecutor(mocks.NewMockLogger(ctrl))

	var stdout bytes.Buffer
	_, err := executor.Execute(context.Background(), shInvocation(t, "env"), &stdout, &bytes.Buffer{})
	require.NoError(t, err)

	env := stdout.String()
	assert.NotContains(t, env, "RBT_LEAK")
	assert.Contains(t, env, "HOME=/home/rbt")
	for _, line := range strings.Split(strings.TrimSpace(env), "\n") {
		key, _, _ := strings.Cut(line, "=")
		assert.Contains(t, []string{"HOME", "PATH", "TERM", "TMPDIR", "USER", "PWD", "SHLVL", "_"}, key)
	}
}

func TestExecutor_Execute_ExitCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := shell.NewExecutor(mocks.NewMockLogger(ctrl))

	code, err := executor.Execute(context.Background(), shInvocation(t, "exit 3"), &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestExecutor_Execute_MissingExecutable(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := shell.NewExecutor(mocks.NewMockLogger(ctrl))

	inv := &domain.Invocation{
		Label:      "ghost",
		Executable: filepath.Join(t.TempDir(), "ghost"),
		WorkingDir: t.TempDir(),
	}
	code, err := executor.Execute(context.Background(), inv, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.ErrorContains(t, err, "command failed")
}

func TestExecutor_Execute_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := shell.NewExecutor(mocks.NewMockLogger(ctrl))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	code, err := executor.Execute(ctx, shInvocation(t, "sleep 10"), &bytes.Buffer{}, &bytes.Buffer{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, code)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPathResolver_Resolve(t *testing.T) {
	binDir := t.TempDir()
	tool := filepath.Join(binDir, "my-tool")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o700)) //nolint:gosec // Test requires executable file
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "data.txt"), []byte("x"), 0o600))

	resolver := shell.NewPathResolverWith(binDir)

	got, err := resolver.Resolve("my-tool")
	require.NoError(t, err)
	assert.Equal(t, tool, got)

	got, err = resolver.Resolve(tool)
	require.NoError(t, err)
	assert.Equal(t, tool, got)

	_, err = resolver.Resolve("data.txt")
	require.ErrorIs(t, err, domain.ErrToolNotFound)

	_, err = resolver.Resolve("missing-tool")
	require.ErrorIs(t, err, domain.ErrToolNotFound)
}
