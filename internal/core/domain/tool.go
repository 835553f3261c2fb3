package domain

import (
	"slices"

	"go.trai.ch/zerr"
)

// ToolKind distinguishes how a Tool is located at execution time.
type ToolKind uint8

const (
	// ToolSystem is an executable resolved by name on the PATH.
	ToolSystem ToolKind = iota + 1
	// ToolBuilt is an executable produced as an output of another Job.
	ToolBuilt
)

// Tool is the executable a Command runs. The zero Tool is invalid.
type Tool struct {
	kind   ToolKind
	name   string
	job    *Job
	output string
}

// SystemTool returns a Tool resolved by name at execution time.
func SystemTool(name string) (Tool, error) {
	if name == "" {
		return Tool{}, ErrEmptyToolName
	}
	return Tool{kind: ToolSystem, name: name}, nil
}

// BuiltTool returns a Tool that executes the output path of job.
// The output must be one of job's declared outputs.
func BuiltTool(job *Job, output string) (Tool, error) {
	if job == nil {
		return Tool{}, zerr.Wrap(ErrNilJob, "built tool requires a defining job")
	}

	clean, err := CleanRelPath(output)
	if err != nil {
		return Tool{}, zerr.With(err, "tool_output", output)
	}

	if _, found := slices.BinarySearch(job.outputs, clean); !found {
		return Tool{}, zerr.With(zerr.With(zerr.Wrap(ErrUndeclaredToolOutput, "invalid built tool"),
			"tool_output", clean), "job", job.String())
	}

	return Tool{kind: ToolBuilt, job: job, output: clean}, nil
}

// Kind reports whether the tool is a system or built tool.
func (t Tool) Kind() ToolKind { return t.kind }

// IsZero reports whether t was not produced by a constructor.
func (t Tool) IsZero() bool { return t.kind == 0 }

// Job returns the defining job of a built tool, or nil for system tools.
func (t Tool) Job() *Job { return t.job }

// Output returns the output path of a built tool, or "" for system tools.
func (t Tool) Output() string { return t.output }

// Name returns the system tool name, or the output path for built tools.
func (t Tool) Name() string {
	if t.kind == ToolBuilt {
		return t.output
	}
	return t.name
}

func (t Tool) String() string {
	return t.Name()
}
