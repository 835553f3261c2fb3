package domain

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

var (
	// ErrCycle is returned when a job transitively depends on itself.
	ErrCycle = zerr.New("dependency cycle detected")

	// ErrOutputCollision is returned when two distinct jobs declare the same output path.
	ErrOutputCollision = zerr.New("output path declared by more than one job")

	// ErrUnresolvedTool is returned when a built tool's defining job has no fingerprint yet.
	ErrUnresolvedTool = zerr.New("tool job has not been fingerprinted")

	// ErrCacheCorruption is returned when a fingerprint is stored with outputs that differ from an existing entry.
	ErrCacheCorruption = zerr.New("cache entry holds different outputs for the same fingerprint")

	// ErrCommandExecution is returned when a command exits non-zero or cannot be run.
	ErrCommandExecution = zerr.New("command execution failed")

	// ErrPropagatedFailure is returned for jobs that were not run because a dependency failed.
	ErrPropagatedFailure = zerr.New("dependency failed")

	// ErrBuildFailed is returned when at least one required job did not succeed.
	ErrBuildFailed = zerr.New("build failed")

	// ErrBuildCancelled is returned when the build was stopped by a cancellation signal.
	ErrBuildCancelled = zerr.New("build cancelled")

	// ErrMissingTool is returned when a command is constructed without a tool.
	ErrMissingTool = zerr.New("command has no tool")

	// ErrEmptyToolName is returned when a system tool is constructed with an empty name.
	ErrEmptyToolName = zerr.New("tool name must not be empty")

	// ErrNilJob is returned when a nil job is used as a tool source or input.
	ErrNilJob = zerr.New("job must not be nil")

	// ErrUndeclaredToolOutput is returned when a built tool names a path its job does not declare as output.
	ErrUndeclaredToolOutput = zerr.New("tool output is not declared by its job")

	// ErrInvalidPath is returned when an input or output path is empty or refers to the workspace itself.
	ErrInvalidPath = zerr.New("invalid path")

	// ErrAbsolutePath is returned when an output or input file path is absolute.
	ErrAbsolutePath = zerr.New("absolute paths are not allowed")

	// ErrParentPath is returned when an output or input file path contains a ".." segment.
	ErrParentPath = zerr.New("paths containing '..' are not allowed")

	// ErrMissingFileDigest is returned when fingerprinting finds no content hash for a declared input file.
	ErrMissingFileDigest = zerr.New("couldn't find a hash for input file")

	// ErrInputNotFingerprinted is returned when a job is fingerprinted before one of its inputs.
	ErrInputNotFingerprinted = zerr.New("input job has not been fingerprinted")

	// ErrInvalidFingerprint is returned when a string is not a well-formed fingerprint.
	ErrInvalidFingerprint = zerr.New("invalid fingerprint")

	// ErrJobNotFound is returned when a requested job name does not exist in the build.
	ErrJobNotFound = zerr.New("job not found")

	// ErrNoDefaultJob is returned when a build is defined without a default job.
	ErrNoDefaultJob = zerr.New("build has no default job")

	// ErrMissingDependency is returned when a graph node references an input that is not in the graph.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrMissingOutput is returned when a command succeeds without producing a declared output.
	ErrMissingOutput = zerr.New("declared output was not produced")

	// ErrInvalidTransition is returned when a job state change is not allowed by the state machine.
	ErrInvalidTransition = zerr.New("invalid job state transition")

	// ErrConfigNotFound is returned when no build definition exists at or above the working directory.
	ErrConfigNotFound = zerr.New("could not find rbt.yaml")

	// ErrConfigReadFailed is returned when the build definition file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read build definition")

	// ErrConfigParseFailed is returned when the build definition file is not valid YAML.
	ErrConfigParseFailed = zerr.New("failed to parse build definition")

	// ErrInvalidConfig is returned when the build definition is structurally invalid.
	ErrInvalidConfig = zerr.New("invalid build definition")

	// ErrStoreReadFailed is returned when a cache manifest cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read cache entry")

	// ErrStoreWriteFailed is returned when a cache manifest or artifact cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write cache entry")

	// ErrWorkspaceFailed is returned when a job workspace cannot be prepared or collected.
	ErrWorkspaceFailed = zerr.New("failed to prepare job workspace")

	// ErrToolNotFound is returned when a system tool cannot be located on the PATH.
	ErrToolNotFound = zerr.New("tool not found")

	// ErrRemoteCacheFailed is returned when the remote cache tier cannot be reached.
	ErrRemoteCacheFailed = zerr.New("remote cache operation failed")

	// ErrInputNotFound is returned when an input pattern matches nothing.
	ErrInputNotFound = zerr.New("input not found")

	// ErrInvalidManifest is returned when a cache manifest names an unusable artifact path.
	ErrInvalidManifest = zerr.New("invalid cache manifest")
)

// CycleError reports a dependency cycle. Jobs lists the cycle in traversal
// order, starting and ending with the same job.
type CycleError struct {
	Jobs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle.Error(), strings.Join(e.Jobs, " -> "))
}

// Unwrap returns ErrCycle.
func (e *CycleError) Unwrap() error { return ErrCycle }

// OutputCollisionError reports two distinct jobs declaring the same output path.
type OutputCollisionError struct {
	Path   string
	First  string
	Second string
}

func (e *OutputCollisionError) Error() string {
	return fmt.Sprintf("%s: %q is declared by %s and %s", ErrOutputCollision.Error(), e.Path, e.First, e.Second)
}

// Unwrap returns ErrOutputCollision.
func (e *OutputCollisionError) Unwrap() error { return ErrOutputCollision }

// UnresolvedToolError reports a built tool whose defining job was not fingerprinted first.
type UnresolvedToolError struct {
	Tool string
	Job  string
}

func (e *UnresolvedToolError) Error() string {
	return fmt.Sprintf("%s: tool %q of %s", ErrUnresolvedTool.Error(), e.Tool, e.Job)
}

// Unwrap returns ErrUnresolvedTool.
func (e *UnresolvedToolError) Unwrap() error { return ErrUnresolvedTool }

// CacheCorruptionError reports an attempt to store different outputs under an existing fingerprint.
type CacheCorruptionError struct {
	Fingerprint Fingerprint
	Path        string
	Existing    string
	Incoming    string
}

func (e *CacheCorruptionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrCacheCorruption.Error(), e.Fingerprint)
	}
	return fmt.Sprintf("%s: %s: %q has digest %s, stored %s",
		ErrCacheCorruption.Error(), e.Fingerprint, e.Path, e.Incoming, e.Existing)
}

// Unwrap returns ErrCacheCorruption.
func (e *CacheCorruptionError) Unwrap() error { return ErrCacheCorruption }

// CommandExecutionError reports a command that exited non-zero or could not be run.
// ExitCode is -1 when the process never produced an exit status.
type CommandExecutionError struct {
	Job      string
	ExitCode int
	Err      error
}

func (e *CommandExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrCommandExecution.Error(), e.Job)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" exited with code %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the runner error, if any, and ErrCommandExecution.
func (e *CommandExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCommandExecution}
	}
	return []error{ErrCommandExecution, e.Err}
}

// PropagatedFailure marks a job that was never attempted because Origin failed.
type PropagatedFailure struct {
	Job    string
	Origin Fingerprint
}

func (e *PropagatedFailure) Error() string {
	return fmt.Sprintf("%s: %s not attempted, %s failed", ErrPropagatedFailure.Error(), e.Job, e.Origin)
}

// Unwrap returns ErrPropagatedFailure.
func (e *PropagatedFailure) Unwrap() error { return ErrPropagatedFailure }
