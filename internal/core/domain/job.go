package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// displayBudget bounds how many characters of arguments Job.String renders.
const displayBudget = 20

// Job is one reproducible build step: a Command, the jobs whose outputs it
// consumes, the project files it reads and the paths it promises to produce.
// Jobs are immutable once constructed.
type Job struct {
	command    Command
	inputs     []*Job
	inputFiles []string
	outputs    []string
}

type jobConfig struct {
	inputs     []*Job
	inputFiles []string
	outputs    []string
}

// JobOption configures a Job under construction.
type JobOption func(*jobConfig)

// WithInputs adds dependency jobs. Their outputs are available to the command.
func WithInputs(jobs ...*Job) JobOption {
	return func(c *jobConfig) {
		c.inputs = append(c.inputs, jobs...)
	}
}

// WithInputFiles adds project-relative files the command reads.
func WithInputFiles(paths ...string) JobOption {
	return func(c *jobConfig) {
		c.inputFiles = append(c.inputFiles, paths...)
	}
}

// WithOutputs adds workspace-relative paths the command produces.
func WithOutputs(paths ...string) JobOption {
	return func(c *jobConfig) {
		c.outputs = append(c.outputs, paths...)
	}
}

// NewJob validates and returns a Job running cmd.
//
// Input files and outputs are normalized, sorted and deduplicated. When the
// command runs a built tool, the tool's job is added to the inputs if it is not
// already listed.
func NewJob(cmd Command, opts ...JobOption) (*Job, error) {
	if cmd.tool.IsZero() {
		return nil, ErrMissingTool
	}

	cfg := &jobConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	for _, in := range cfg.inputs {
		if in == nil {
			return nil, zerr.Wrap(ErrNilJob, "job inputs must not contain nil")
		}
	}

	inputs := slices.Clone(cfg.inputs)
	if tj := cmd.tool.job; tj != nil && !slices.Contains(inputs, tj) {
		inputs = append(inputs, tj)
	}

	inputFiles, err := cleanRelPaths(cfg.inputFiles)
	if err != nil {
		return nil, zerr.Wrap(err, "invalid input file")
	}

	outputs, err := cleanRelPaths(cfg.outputs)
	if err != nil {
		return nil, zerr.Wrap(err, "invalid output")
	}

	return &Job{
		command:    cmd,
		inputs:     inputs,
		inputFiles: inputFiles,
		outputs:    outputs,
	}, nil
}

// Command returns the job's command.
func (j *Job) Command() Command { return j.command }

// Inputs returns a copy of the dependency jobs in declaration order.
func (j *Job) Inputs() []*Job { return slices.Clone(j.inputs) }

// InputFiles returns a copy of the sorted input file paths.
func (j *Job) InputFiles() []string { return slices.Clone(j.inputFiles) }

// Outputs returns a copy of the sorted output paths.
func (j *Job) Outputs() []string { return slices.Clone(j.outputs) }

// String renders a best-effort shell-like preview of the command, such as
// `cat a.txt "b c.txt"`. Arguments stop being appended once the preview is
// longer than a short budget.
func (j *Job) String() string {
	var b strings.Builder

	base := j.command.tool.Name()
	b.WriteString(base)
	chars := len(base)

	for _, arg := range j.command.args {
		if chars >= displayBudget {
			break
		}
		if strings.Contains(arg, " ") {
			b.WriteString(` "` + arg + `"`)
			chars += len(arg) + 3
		} else {
			b.WriteString(" " + arg)
			chars += len(arg) + 1
		}
	}

	return b.String()
}
