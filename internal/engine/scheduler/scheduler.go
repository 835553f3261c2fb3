// Package scheduler executes a sealed job graph on a bounded worker pool,
// reusing cached outputs where the store already holds them.
package scheduler

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"time"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

// Options tunes one run.
type Options struct {
	// Workers bounds the number of concurrently running commands.
	Workers int
	// KeepGoing keeps dispatching independent jobs after a failure.
	KeepGoing bool
	// OnCancel selects whether running commands are killed or allowed to
	// finish when the build is cancelled.
	OnCancel domain.CancelMode
	// NoCache skips cache lookups. Outputs are still stored.
	NoCache bool
}

// Scheduler runs the jobs of a graph in dependency order.
type Scheduler struct {
	executor   ports.Executor
	store      ports.CacheStore
	workspaces ports.Workspaces
	tools      ports.ToolResolver
	verifier   ports.Verifier
	tracer     ports.Tracer
	telemetry  ports.Telemetry
	logger     ports.Logger
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(
	executor ports.Executor,
	store ports.CacheStore,
	workspaces ports.Workspaces,
	tools ports.ToolResolver,
	verifier ports.Verifier,
	tracer ports.Tracer,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		executor:   executor,
		store:      store,
		workspaces: workspaces,
		tools:      tools,
		verifier:   verifier,
		tracer:     tracer,
		telemetry:  telemetry,
		logger:     logger,
	}
}

// Run executes graph. Input files are mounted from root.
//
// It returns one result per job in topological order. The error is non-nil
// only when the build was aborted: by cache corruption, which is fatal, or by
// cancellation of ctx. Job failures are reported through the results.
func (s *Scheduler) Run(ctx context.Context, graph *domain.Graph, root string, opts Options) ([]domain.JobResult, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	labels := make([]string, 0, graph.Len())
	for node := range graph.Walk() {
		labels = append(labels, node.String())
	}
	s.tracer.EmitPlan(ctx, labels)

	ctx, span := s.tracer.Start(ctx, "build",
		ports.WithAttribute("rbt.jobs", graph.Len()),
		ports.WithAttribute("rbt.workers", opts.Workers),
	)
	defer span.End()

	state := s.newRunState(ctx, graph, root, opts)
	defer state.abort()

	err := state.loop()
	if err != nil {
		span.RecordError(err)
	}
	return state.results(), err
}

type result struct {
	fp       domain.Fingerprint
	outputs  *domain.Outputs
	err      error
	duration time.Duration
}

// job is the per-run record of one node.
type job struct {
	node      *domain.Node
	state     domain.JobState
	remaining int
	outputs   *domain.Outputs
	err       error
	cause     domain.Fingerprint
	duration  time.Duration
}

// task is everything a worker needs, resolved on the scheduling goroutine.
type task struct {
	node       *domain.Node
	mounts     []ports.Mount
	executable string
}

type runState struct {
	s     *Scheduler
	graph *domain.Graph
	root  string
	opts  Options

	ctx       context.Context
	workCtx   context.Context
	abort     context.CancelFunc
	jobs      map[domain.Fingerprint]*job
	probe     []domain.Fingerprint
	ready     []domain.Fingerprint
	active    int
	resultsCh chan result
	failed    bool
	fatal     error
}

func (s *Scheduler) newRunState(ctx context.Context, graph *domain.Graph, root string, opts Options) *runState {
	// Running commands observe cancellation of ctx only in kill mode. The
	// abort function always stops them.
	base := ctx
	if opts.OnCancel == domain.CancelFinish {
		base = context.WithoutCancel(ctx)
	}
	workCtx, abort := context.WithCancel(base)

	state := &runState{
		s:         s,
		graph:     graph,
		root:      root,
		opts:      opts,
		ctx:       ctx,
		workCtx:   workCtx,
		abort:     abort,
		jobs:      make(map[domain.Fingerprint]*job, graph.Len()),
		resultsCh: make(chan result, opts.Workers),
	}

	for node := range graph.Walk() {
		j := &job{node: node, state: domain.StatePending, remaining: len(node.Inputs())}
		state.jobs[node.Fingerprint()] = j
		if j.remaining == 0 {
			state.probe = append(state.probe, node.Fingerprint())
		}
	}
	return state
}

func (state *runState) stopping() bool {
	return state.fatal != nil || state.ctx.Err() != nil || (state.failed && !state.opts.KeepGoing)
}

func (state *runState) loop() error {
	cancelled := state.ctx.Done()

	for {
		state.promote()
		state.schedule()

		if state.active == 0 {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-cancelled:
			cancelled = nil
			state.s.logger.Warn("build cancelled, waiting for running jobs", "running", state.active)
		}
	}

	state.cancelRemaining()

	if state.fatal != nil {
		return state.fatal
	}
	if err := state.ctx.Err(); err != nil {
		return zerr.Wrap(errors.Join(domain.ErrBuildCancelled, err), "stopped before all jobs ran")
	}
	return nil
}

// promote probes the cache for every job whose inputs are satisfied. Hits
// become Skipped and release their dependents; misses become Ready.
func (state *runState) promote() {
	for len(state.probe) > 0 && !state.stopping() {
		fp := state.probe[0]
		state.probe = state.probe[1:]
		j := state.jobs[fp]

		outputs, err := state.lookup(j)
		if err != nil {
			state.fatal = err
			state.abort()
			state.fail(j, err)
			continue
		}
		if outputs == nil {
			state.transition(j, domain.StateReady)
			state.ready = append(state.ready, fp)
			continue
		}

		state.transition(j, domain.StateSkipped)
		j.outputs = outputs

		_, vertex := state.s.telemetry.Record(state.ctx, j.node.String())
		vertex.Cached()
		vertex.Complete(nil)

		state.release(fp)
	}
}

// lookup returns the cached outputs of j when they are still materialized.
func (state *runState) lookup(j *job) (*domain.Outputs, error) {
	if state.opts.NoCache {
		return nil, nil
	}

	fp := j.node.Fingerprint()
	outputs, err := state.s.store.Get(state.ctx, fp)
	if err != nil {
		if errors.Is(err, domain.ErrCacheCorruption) {
			return nil, err
		}
		state.s.logger.Warn("cache lookup failed, running job", "job", j.node.String(), "error", err.Error())
		return nil, nil
	}
	if outputs == nil {
		return nil, nil
	}

	ok, err := state.s.verifier.VerifyOutputs(outputs.Dir, outputs)
	if err != nil || !ok {
		state.s.logger.Debug("cached outputs are gone, running job", "job", j.node.String())
		return nil, nil
	}
	return outputs, nil
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.opts.Workers && !state.stopping() {
		fp := state.ready[0]
		state.ready = state.ready[1:]
		j := state.jobs[fp]

		t, err := state.prepare(j)
		if err != nil {
			state.transition(j, domain.StateRunning)
			state.fail(j, err)
			continue
		}

		state.transition(j, domain.StateRunning)
		state.active++
		go func() {
			state.resultsCh <- state.s.execute(state.workCtx, t)
		}()
	}
}

// prepare resolves the mounts and executable of j from the outputs of its inputs.
func (state *runState) prepare(j *job) (*task, error) {
	job := j.node.Job()
	t := &task{node: j.node}

	for _, rel := range job.InputFiles() {
		t.mounts = append(t.mounts, ports.Mount{
			Source: filepath.Join(state.root, filepath.FromSlash(rel)),
			Target: rel,
		})
	}
	for _, in := range j.node.Inputs() {
		outputs := state.jobs[in].outputs
		for _, a := range outputs.Artifacts {
			t.mounts = append(t.mounts, ports.Mount{Source: outputs.Path(a.Path), Target: a.Path})
		}
	}

	tool := job.Command().Tool()
	switch tool.Kind() {
	case domain.ToolBuilt:
		toolFP, ok := state.findInput(j, tool.Job())
		if !ok {
			return nil, &domain.UnresolvedToolError{Tool: tool.Output(), Job: j.node.String()}
		}
		t.executable = state.jobs[toolFP].outputs.Path(tool.Output())
	default:
		path, err := state.s.tools.Resolve(tool.Name())
		if err != nil {
			return nil, &domain.CommandExecutionError{Job: j.node.String(), ExitCode: -1, Err: err}
		}
		t.executable = path
	}
	return t, nil
}

func (state *runState) findInput(j *job, tool *domain.Job) (domain.Fingerprint, bool) {
	for _, in := range j.node.Inputs() {
		if state.jobs[in].node.Job() == tool {
			return in, true
		}
	}
	return "", false
}

func (state *runState) handleResult(res result) {
	state.active--
	j := state.jobs[res.fp]
	j.duration = res.duration

	if res.err != nil {
		if errors.Is(res.err, domain.ErrCacheCorruption) {
			state.fatal = res.err
			state.abort()
		}
		state.fail(j, res.err)
		return
	}

	state.transition(j, domain.StateSucceeded)
	j.outputs = res.outputs
	state.release(res.fp)
}

// release counts fp as satisfied for its dependents.
func (state *runState) release(fp domain.Fingerprint) {
	for _, dep := range state.graph.Dependents(fp) {
		d := state.jobs[dep]
		d.remaining--
		if d.remaining == 0 && d.state == domain.StatePending {
			state.probe = append(state.probe, dep)
		}
	}
}

// fail marks j failed and every job downstream of it as not attempted.
func (state *runState) fail(j *job, err error) {
	fp := j.node.Fingerprint()
	state.transition(j, domain.StateFailed)
	j.err = err
	state.failed = true

	if !errors.Is(err, domain.ErrCacheCorruption) {
		state.s.logger.Error(zerr.With(zerr.Wrap(err, "job failed"), "job", j.node.String()))
	}

	for _, dep := range state.graph.Downstream(fp) {
		d := state.jobs[dep]
		if d.state.Terminal() {
			continue
		}
		state.transition(d, domain.StateFailed)
		d.cause = fp
		d.err = &domain.PropagatedFailure{Job: d.node.String(), Origin: fp}
	}
}

// cancelRemaining marks every job that never reached a terminal state.
func (state *runState) cancelRemaining() {
	for node := range state.graph.Walk() {
		j := state.jobs[node.Fingerprint()]
		if !j.state.Terminal() {
			state.transition(j, domain.StateCancelled)
		}
	}
}

func (state *runState) transition(j *job, next domain.JobState) {
	s, err := j.state.Transition(next)
	if err != nil {
		panic(zerr.With(err, "job", j.node.String()))
	}
	j.state = s
}

func (state *runState) results() []domain.JobResult {
	roots := state.graph.Roots()
	out := make([]domain.JobResult, 0, len(state.jobs))
	for node := range state.graph.Walk() {
		fp := node.Fingerprint()
		j := state.jobs[fp]
		r := domain.JobResult{
			Fingerprint: fp,
			Label:       node.String(),
			State:       j.state,
			Root:        slices.Contains(roots, fp),
			Duration:    j.duration,
			Cause:       j.cause,
			Err:         j.err,
		}
		if j.err != nil {
			r.Error = j.err.Error()
		}
		if j.outputs != nil && j.state.Satisfied() {
			r.StorePath = j.outputs.Dir
			r.Artifacts = j.outputs.Artifacts
		}
		out = append(out, r)
	}
	return out
}

// execute runs one job in a fresh workspace and stores its outputs.
func (s *Scheduler) execute(ctx context.Context, t *task) result {
	start := time.Now()
	fp := t.node.Fingerprint()
	label := t.node.String()

	ctx, vertex := s.telemetry.Record(ctx, label)
	ctx, span := s.tracer.Start(ctx, "job",
		ports.WithAttribute("rbt.fingerprint", fp.String()),
		ports.WithAttribute("rbt.job", t.node.Job().String()),
	)

	outputs, err := s.run(ctx, t, io.MultiWriter(vertex.Stdout(), span), io.MultiWriter(vertex.Stderr(), span))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	vertex.Complete(err)

	return result{fp: fp, outputs: outputs, err: err, duration: time.Since(start)}
}

func (s *Scheduler) run(ctx context.Context, t *task, stdout, stderr io.Writer) (*domain.Outputs, error) {
	fp := t.node.Fingerprint()
	label := t.node.String()
	job := t.node.Job()

	dir, err := s.workspaces.Prepare(ctx, fp, t.mounts)
	if err != nil {
		return nil, &domain.CommandExecutionError{Job: label, ExitCode: -1, Err: err}
	}

	inv := &domain.Invocation{
		Label:      label,
		Executable: t.executable,
		Args:       job.Command().Args(),
		WorkingDir: dir,
	}
	s.logger.Debug("running job", "job", label, "workspace", dir)

	code, err := s.executor.Execute(ctx, inv, stdout, stderr)
	if err != nil {
		return nil, &domain.CommandExecutionError{Job: label, ExitCode: -1, Err: err}
	}
	if code != 0 {
		return nil, &domain.CommandExecutionError{Job: label, ExitCode: code}
	}

	collected, err := s.workspaces.Collect(dir, fp, job.Outputs())
	if err != nil {
		return nil, &domain.CommandExecutionError{Job: label, ExitCode: -1, Err: err}
	}

	stored, err := s.store.Put(context.WithoutCancel(ctx), fp, collected)
	if err != nil {
		if errors.Is(err, domain.ErrCacheCorruption) {
			return nil, err
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "job", label)
	}

	if err := s.workspaces.Remove(fp); err != nil {
		s.logger.Warn("failed to remove workspace", "job", label, "error", err.Error())
	}
	return stored, nil
}
