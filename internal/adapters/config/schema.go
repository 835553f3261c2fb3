package config

import (
	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Rbtfile represents the structure of the rbt.yaml build definition.
type Rbtfile struct {
	Name     string            `yaml:"name"`
	Default  string            `yaml:"default"`
	Settings SettingsDTO       `yaml:"settings"`
	Jobs     map[string]JobDTO `yaml:"jobs"`
}

// SettingsDTO represents the settings block of the build definition.
type SettingsDTO struct {
	RootDir       string          `yaml:"root_dir"`
	WorkerThreads int             `yaml:"worker_threads"`
	KeepGoing     bool            `yaml:"keep_going"`
	OnCancel      string          `yaml:"on_cancel"`
	RemoteCache   *RemoteCacheDTO `yaml:"remote_cache"`
}

// RemoteCacheDTO configures the remote cache tier. Credentials are read from
// the named environment variables, never from the file.
type RemoteCacheDTO struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Prefix       string `yaml:"prefix"`
	UseSSL       bool   `yaml:"use_ssl"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// JobDTO represents a job definition in the build definition.
type JobDTO struct {
	Tool       ToolDTO  `yaml:"tool"`
	Args       []string `yaml:"args"`
	Inputs     []string `yaml:"inputs"`
	InputFiles []string `yaml:"input_files"`
	Outputs    []string `yaml:"outputs"`
}

// ToolDTO is either a system tool name or a reference to another job's output.
type ToolDTO struct {
	System string
	Job    string
	Output string
}

// UnmarshalYAML accepts a scalar tool name or a {job, output} mapping.
func (t *ToolDTO) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&t.System)
	case yaml.MappingNode:
		var ref struct {
			Job    string `yaml:"job"`
			Output string `yaml:"output"`
		}
		if err := node.Decode(&ref); err != nil {
			return err
		}
		if ref.Job == "" || ref.Output == "" {
			return zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "built tool requires job and output"), "line", node.Line)
		}
		t.Job, t.Output = ref.Job, ref.Output
		return nil
	default:
		return zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "tool must be a name or a {job, output} mapping"), "line", node.Line)
	}
}

// Built reports whether the tool refers to another job's output.
func (t ToolDTO) Built() bool {
	return t.Job != ""
}
