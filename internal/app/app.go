// Package app implements the application layer for rbt.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/rbt/internal/adapters/cas"
	"go.trai.ch/rbt/internal/adapters/fs"
	"go.trai.ch/rbt/internal/adapters/linear"
	"go.trai.ch/rbt/internal/adapters/remote"
	"go.trai.ch/rbt/internal/adapters/telemetry"
	"go.trai.ch/rbt/internal/adapters/telemetry/progrock"
	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/rbt/internal/engine/planner"
	"go.trai.ch/rbt/internal/engine/report"
	"go.trai.ch/rbt/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	executor     ports.Executor
	tools        ports.ToolResolver
	verifier     ports.Verifier
	walker       *fs.Walker
	tracer       ports.Tracer
	logger       ports.Logger
	renderer     *linear.Renderer

	stdout io.Writer
	now    func() time.Time
	newID  func() string
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	executor ports.Executor,
	tools ports.ToolResolver,
	verifier ports.Verifier,
	walker *fs.Walker,
	tracer ports.Tracer,
	log ports.Logger,
	renderer *linear.Renderer,
) *App {
	return &App{
		configLoader: loader,
		executor:     executor,
		tools:        tools,
		verifier:     verifier,
		walker:       walker,
		tracer:       tracer,
		logger:       log,
		renderer:     renderer,
		stdout:       os.Stdout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// WithStdout redirects the printed root output paths.
func (a *App) WithStdout(w io.Writer) *App {
	a.stdout = w
	return a
}

// WithBuildIDs replaces the build ID generator.
func (a *App) WithBuildIDs(newID func() string) *App {
	a.newID = newID
	return a
}

// RunOptions configuration for the Run method. Zero values keep the
// settings of the build definition.
type RunOptions struct {
	// File is the build definition, or a directory at or below it.
	File                 string
	RootDir              string
	WorkerThreads        int
	KeepGoing            bool
	NoCache              bool
	OnCancel             string
	PrintRootOutputPaths bool
	// SummaryPath receives the JSON build summary.
	SummaryPath string
	// ProgressLog receives the progress stream as JSON lines.
	ProgressLog string
}

// Run builds the named jobs, or the default job when none are named.
//
// It returns domain.ErrBuildFailed when any job failed or was cancelled.
//
//nolint:cyclop // orchestration function
func (a *App) Run(ctx context.Context, targetNames []string, opts RunOptions) error {
	// 1. Load the build definition
	project, err := a.load(opts.File)
	if err != nil {
		return err
	}

	settings, err := applyOverrides(project.Settings, opts)
	if err != nil {
		return err
	}

	targets, err := project.Rbt.Select(targetNames...)
	if err != nil {
		return err
	}

	layout := domain.NewLayout(settings.RootDir)

	// 2. Plan the graph
	hashes, err := fs.LoadHashCache(layout.FileHashesPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := hashes.Save(); err != nil {
			a.logger.Warn("failed to save file hash cache", "error", err.Error())
		}
	}()

	graph, err := planner.NewPlanner(fs.NewHasher(a.walker, hashes), a.logger).Plan(ctx, project.Root, targets)
	if err != nil {
		return zerr.Wrap(err, "failed to plan build")
	}

	// 3. Assemble the session
	tel, err := a.telemetry(opts.ProgressLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Close(); err != nil {
			a.logger.Warn("failed to close progress log", "error", err.Error())
		}
	}()

	sched := scheduler.NewScheduler(
		a.executor,
		a.cacheStore(ctx, layout, settings.Remote),
		fs.NewWorkspaces(layout),
		a.tools,
		a.verifier,
		a.tracer,
		tel,
		a.logger,
	)

	// 4. Run
	buildID := a.newID()
	startedAt := a.now()
	a.logger.Debug("starting build", "build", buildID, "jobs", graph.Len(), "workers", settings.Workers())

	results, runErr := sched.Run(ctx, graph, project.Root, scheduler.Options{
		Workers:   settings.Workers(),
		KeepGoing: settings.KeepGoing,
		OnCancel:  settings.OnCancel,
		NoCache:   opts.NoCache,
	})

	// 5. Report
	summary := report.Summarize(buildID, startedAt, a.now().Sub(startedAt), results)
	a.renderer.RenderSummary(summary)

	if opts.SummaryPath != "" {
		if err := report.WriteFile(opts.SummaryPath, summary); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !summary.OK() {
		return domain.ErrBuildFailed
	}

	if opts.PrintRootOutputPaths {
		for _, p := range report.RootOutputs(summary) {
			_, _ = fmt.Fprintln(a.stdout, p)
		}
	}
	return nil
}

func (a *App) load(file string) (*domain.Project, error) {
	if file == "" {
		file = "."
	}
	project, err := a.configLoader.Load(file)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return project, nil
}

func applyOverrides(settings domain.Settings, opts RunOptions) (domain.Settings, error) {
	if opts.RootDir != "" {
		dir, err := filepath.Abs(opts.RootDir)
		if err != nil {
			return settings, zerr.With(zerr.Wrap(err, "invalid root directory"), "root_dir", opts.RootDir)
		}
		settings.RootDir = dir
	}
	if opts.WorkerThreads > 0 {
		settings.WorkerThreads = opts.WorkerThreads
	}
	if opts.KeepGoing {
		settings.KeepGoing = true
	}
	if opts.OnCancel != "" {
		mode, err := domain.ParseCancelMode(opts.OnCancel)
		if err != nil {
			return settings, err
		}
		settings.OnCancel = mode
	}
	return settings, nil
}

// cacheStore returns the local store, fronted by the remote tier when one
// is configured and reachable.
func (a *App) cacheStore(ctx context.Context, layout domain.Layout, cfg *domain.RemoteCache) ports.CacheStore {
	local := cas.NewStore(layout)
	if !cfg.Enabled() {
		return local
	}

	client, err := remote.NewMinioClient(cfg)
	if err != nil {
		a.logger.Warn("remote cache disabled", "endpoint", cfg.Endpoint, "error", err.Error())
		return local
	}
	if err := remote.CheckBucket(ctx, client, cfg.Bucket); err != nil {
		a.logger.Warn("remote cache disabled", "endpoint", cfg.Endpoint, "error", err.Error())
		return local
	}
	return remote.NewStore(local, client, cfg, layout.StagingDir(), a.logger)
}

// telemetry returns the terminal renderer, fanned out to a progress log when
// path is set.
func (a *App) telemetry(path string) (ports.Telemetry, error) {
	if path == "" {
		return a.renderer, nil
	}

	f, err := os.Create(path) //nolint:gosec // Path is provided by the user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create progress log"), "path", path)
	}
	return telemetry.Fanout{a.renderer, progrock.NewRecorder(progrock.NewJSONWriter(f))}, nil
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	File    string
	RootDir string
	// Workspaces limits the removal to job workspaces.
	Workspaces bool
}

// Clean removes the state directory of the build, or only its workspaces.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	project, err := a.load(options.File)
	if err != nil {
		return err
	}

	settings, err := applyOverrides(project.Settings, RunOptions{RootDir: options.RootDir})
	if err != nil {
		return err
	}
	layout := domain.NewLayout(settings.RootDir)

	var errs error

	remove := func(name string, purge func() error) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := purge(); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	remove("workspaces", fs.NewWorkspaces(layout).Purge)
	if options.Workspaces {
		return errs
	}

	remove("cache store", cas.NewStore(layout).Purge)
	remove("root directory", func() error {
		if err := os.RemoveAll(layout.Root); err != nil {
			return zerr.With(err, "path", layout.Root)
		}
		return nil
	})

	return errs
}
