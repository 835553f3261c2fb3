// Package shell runs job commands as child processes and locates system tools.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

// waitDelay bounds how long a killed command may hold its output pipes open.
const waitDelay = 2 * time.Second

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger  ports.Logger
	environ func() []string
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{
		logger:  logger,
		environ: os.Environ,
	}
}

// Execute runs the invocation in its working directory with an allow-listed
// environment. A command that ran and exited reports its exit code with a nil
// error; the error is set only when the command could not be run to
// completion. Output goes to stdout and stderr, or to the logger when they are nil.
func (e *Executor) Execute(ctx context.Context, inv *domain.Invocation, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...) //nolint:gosec // Job commands are user provided
	cmd.Dir = inv.WorkingDir
	cmd.Env = filterEnvironment(e.environ())
	cmd.WaitDelay = waitDelay

	if stdout == nil {
		w := &logWriter{logger: e.logger, label: inv.Label, level: "info"}
		defer w.Close() //nolint:errcheck // Flushes buffered output
		stdout = w
	}
	if stderr == nil {
		w := &logWriter{logger: e.logger, label: inv.Label, level: "error"}
		defer w.Close() //nolint:errcheck // Flushes buffered output
		stderr = w
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return exitErr.ExitCode(), nil
	}
	return -1, zerr.With(zerr.Wrap(err, "command failed"), "executable", inv.Executable)
}

type logWriter struct {
	logger ports.Logger
	label  string
	level  string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")

	if w.level == "info" {
		w.logger.Info(msg, "job", w.label)
	} else {
		w.logger.Warn(msg, "job", w.label)
	}
}

// allowListedEnvVars are the system environment variables inherited by job
// commands. Everything else is dropped.
var allowListedEnvVars = []string{"HOME", "PATH", "TERM", "TMPDIR", "USER"}

func filterEnvironment(sysEnv []string) []string {
	result := make([]string, 0, len(allowListedEnvVars))
	for _, entry := range sysEnv {
		k, _, ok := strings.Cut(entry, "=")
		if ok && slices.Contains(allowListedEnvVars, k) {
			result = append(result, entry)
		}
	}
	slices.Sort(result)
	return result
}
