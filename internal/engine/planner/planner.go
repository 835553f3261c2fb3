// Package planner turns selected jobs into a sealed, fingerprinted job graph.
package planner

import (
	"context"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Planner hashes input files, fingerprints jobs and flattens them into a DAG.
type Planner struct {
	hasher ports.Hasher
	logger ports.Logger
}

// NewPlanner creates a new Planner.
func NewPlanner(hasher ports.Hasher, logger ports.Logger) *Planner {
	return &Planner{hasher: hasher, logger: logger}
}

// Plan builds the graph of targets and everything they depend on. Input files
// are read relative to root.
func (p *Planner) Plan(ctx context.Context, root string, targets []*domain.Job) (*domain.Graph, error) {
	jobs, err := collect(targets)
	if err != nil {
		return nil, err
	}

	files, err := p.hashInputFiles(ctx, root, jobs)
	if err != nil {
		return nil, err
	}

	fingerprinter := domain.NewFingerprinter(files)
	graph := domain.NewGraph()

	for _, job := range jobs {
		fp, err := fingerprinter.Fingerprint(job)
		if err != nil {
			return nil, err
		}

		inputs := make([]domain.Fingerprint, 0, len(job.Inputs()))
		for _, in := range job.Inputs() {
			inFP, _ := fingerprinter.Lookup(in)
			inputs = append(inputs, inFP)
		}

		added, err := graph.AddNode(fp, job, inputs)
		if err != nil {
			return nil, err
		}
		if !added {
			p.logger.Debug("deduplicated job", "fingerprint", fp.String(), "job", job.String())
		}
	}

	for _, target := range targets {
		fp, _ := fingerprinter.Lookup(target)
		graph.AddRoot(fp)
	}

	if err := graph.Seal(); err != nil {
		return nil, err
	}

	p.logger.Debug("planned build", "jobs", graph.Len(), "input_files", len(files))
	return graph, nil
}

// collect returns every job reachable from targets in post-order, so each job
// follows all of its inputs.
func collect(targets []*domain.Job) ([]*domain.Job, error) {
	var (
		order   []*domain.Job
		done    = make(map[*domain.Job]bool)
		onStack = make(map[*domain.Job]bool)
		path    []*domain.Job
	)

	var visit func(job *domain.Job) error
	visit = func(job *domain.Job) error {
		if done[job] {
			return nil
		}
		if onStack[job] {
			start := slices.Index(path, job)
			cycle := make([]string, 0, len(path)-start+1)
			for _, j := range path[start:] {
				cycle = append(cycle, j.String())
			}
			return &domain.CycleError{Jobs: append(cycle, job.String())}
		}

		onStack[job] = true
		path = append(path, job)
		for _, in := range job.Inputs() {
			if err := visit(in); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		onStack[job] = false

		done[job] = true
		order = append(order, job)
		return nil
	}

	for _, target := range targets {
		if target == nil {
			return nil, zerr.Wrap(domain.ErrNilJob, "invalid build target")
		}
		if err := visit(target); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// hashInputFiles hashes every distinct input file of jobs concurrently.
func (p *Planner) hashInputFiles(ctx context.Context, root string, jobs []*domain.Job) (domain.FileDigests, error) {
	var paths []string
	for _, job := range jobs {
		paths = append(paths, job.InputFiles()...)
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)

	files := make(domain.FileDigests, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			digest, err := p.hasher.HashPath(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to hash input file"), "path", rel)
			}
			mu.Lock()
			files[rel] = digest
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
