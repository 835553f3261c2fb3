// Package config provides the build definition loader for rbt.
package config

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	defaultAccessKeyEnv = "RBT_S3_ACCESS_KEY"
	defaultSecretKeyEnv = "RBT_S3_SECRET_KEY"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger   ports.Logger
	Resolver ports.InputResolver
}

// NewLoader creates a new Loader.
func NewLoader(logger ports.Logger, resolver ports.InputResolver) *Loader {
	return &Loader{Logger: logger, Resolver: resolver}
}

// Load reads the build definition. cwd is either the definition file itself
// or a directory at or below the one holding rbt.yaml.
func (l *Loader) Load(cwd string) (*domain.Project, error) {
	configPath, err := l.findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	var rbtfile Rbtfile
	if err := readAndUnmarshalYAML(configPath, &rbtfile); err != nil {
		return nil, err
	}

	root := filepath.Dir(configPath)
	l.Logger.Debug("loading build definition", "path", configPath)

	settings, err := buildSettings(root, rbtfile.Settings)
	if err != nil {
		return nil, withMeta(err, "file", configPath)
	}

	b := &jobBuilder{
		root:     root,
		defs:     rbtfile.Jobs,
		resolver: l.Resolver,
		built:    make(map[string]*domain.Job, len(rbtfile.Jobs)),
		visiting: make(map[string]bool),
	}
	for _, name := range slices.Sorted(maps.Keys(rbtfile.Jobs)) {
		if err := validateJobName(name); err != nil {
			return nil, withMeta(err, "file", configPath)
		}
		if _, err := b.build(name, nil); err != nil {
			return nil, withMeta(err, "file", configPath)
		}
	}

	name := rbtfile.Name
	if name == "" {
		name = filepath.Base(root)
	}
	defaultName := rbtfile.Default
	if defaultName == "" && len(b.built) == 1 {
		for only := range b.built {
			defaultName = only
		}
	}

	r, err := domain.NewRbt(name, b.built, defaultName)
	if err != nil {
		return nil, withMeta(err, "file", configPath)
	}

	return &domain.Project{Root: root, Rbt: r, Settings: settings}, nil
}

// DiscoverRoot returns the directory holding the build definition for cwd.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	configPath, err := l.findConfiguration(cwd)
	if err != nil {
		return "", err
	}
	return filepath.Dir(configPath), nil
}

func (l *Loader) findConfiguration(cwd string) (string, error) {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "cwd", cwd)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "cwd", cwd)
	}
	if !info.IsDir() {
		return abs, nil
	}

	for currentDir := abs; ; {
		candidate := filepath.Join(currentDir, domain.BuildFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", withMeta(domain.ErrConfigNotFound, "cwd", abs)
		}
		currentDir = parentDir
	}
}

func buildSettings(root string, dto SettingsDTO) (domain.Settings, error) {
	onCancel, err := domain.ParseCancelMode(dto.OnCancel)
	if err != nil {
		return domain.Settings{}, err
	}
	if dto.WorkerThreads < 0 {
		return domain.Settings{}, zerr.With(
			zerr.Wrap(domain.ErrInvalidConfig, "worker_threads must not be negative"), "worker_threads", dto.WorkerThreads)
	}

	rootDir := dto.RootDir
	if rootDir == "" {
		rootDir = domain.RootDirName
	}
	if !filepath.IsAbs(rootDir) {
		rootDir = filepath.Join(root, rootDir)
	}

	settings := domain.Settings{
		RootDir:       rootDir,
		WorkerThreads: dto.WorkerThreads,
		KeepGoing:     dto.KeepGoing,
		OnCancel:      onCancel,
	}

	if rc := dto.RemoteCache; rc != nil {
		remote := &domain.RemoteCache{
			Endpoint:  rc.Endpoint,
			Bucket:    rc.Bucket,
			Region:    rc.Region,
			Prefix:    rc.Prefix,
			UseSSL:    rc.UseSSL,
			AccessKey: os.Getenv(valueOr(rc.AccessKeyEnv, defaultAccessKeyEnv)),
			SecretKey: os.Getenv(valueOr(rc.SecretKeyEnv, defaultSecretKeyEnv)),
		}
		if !remote.Enabled() {
			return domain.Settings{}, zerr.Wrap(domain.ErrInvalidConfig, "remote_cache requires endpoint and bucket")
		}
		settings.Remote = remote
	}

	return settings, nil
}

// jobBuilder turns job definitions into domain jobs, depth first, so every
// referenced job exists before the jobs that use it.
type jobBuilder struct {
	root     string
	defs     map[string]JobDTO
	resolver ports.InputResolver
	built    map[string]*domain.Job
	visiting map[string]bool
}

func (b *jobBuilder) build(name string, path []string) (*domain.Job, error) {
	if job, ok := b.built[name]; ok {
		return job, nil
	}

	path = append(path, name)
	if b.visiting[name] {
		start := slices.Index(path, name)
		return nil, &domain.CycleError{Jobs: slices.Clone(path[start:])}
	}

	def, ok := b.defs[name]
	if !ok {
		referrer := ""
		if len(path) > 1 {
			referrer = path[len(path)-2]
		}
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrJobNotFound, "unknown job referenced"),
			"job", name), "referenced_by", referrer)
	}

	b.visiting[name] = true
	defer delete(b.visiting, name)

	tool, err := b.tool(def.Tool, path)
	if err != nil {
		return nil, withMeta(err, "job", name)
	}

	cmd, err := domain.NewCommand(tool, def.Args...)
	if err != nil {
		return nil, withMeta(err, "job", name)
	}

	inputs := make([]*domain.Job, 0, len(def.Inputs))
	for _, dep := range def.Inputs {
		job, err := b.build(dep, path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, job)
	}

	var inputFiles []string
	if len(def.InputFiles) > 0 {
		inputFiles, err = b.resolver.ResolveInputs(def.InputFiles, b.root)
		if err != nil {
			return nil, withMeta(err, "job", name)
		}
	}

	job, err := domain.NewJob(cmd,
		domain.WithInputs(inputs...),
		domain.WithInputFiles(inputFiles...),
		domain.WithOutputs(def.Outputs...),
	)
	if err != nil {
		return nil, withMeta(err, "job", name)
	}

	b.built[name] = job
	return job, nil
}

func (b *jobBuilder) tool(dto ToolDTO, path []string) (domain.Tool, error) {
	if !dto.Built() {
		if dto.System == "" {
			return domain.Tool{}, domain.ErrEmptyToolName
		}
		return domain.SystemTool(dto.System)
	}

	job, err := b.build(dto.Job, path)
	if err != nil {
		return domain.Tool{}, err
	}
	return domain.BuiltTool(job, dto.Output)
}

func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // Path is discovered from the user's working directory
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "file", configPath)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "file", configPath)
	}
	return nil
}

func validateJobName(name string) error {
	if name == "" {
		return zerr.Wrap(domain.ErrInvalidConfig, "job name must not be empty")
	}
	return nil
}

// withMeta attaches key and value to err without hiding the error it wraps.
func withMeta(err error, key string, value any) error {
	return zerr.With(zerr.Wrap(err, ""), key, value)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
