package domain

import (
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// Rbt is a named collection of jobs with one designated default job.
type Rbt struct {
	name        string
	jobs        map[string]*Job
	defaultName string
}

// NewRbt returns a build whose entry point is jobs[defaultName].
func NewRbt(name string, jobs map[string]*Job, defaultName string) (*Rbt, error) {
	if defaultName == "" {
		return nil, zerr.Wrap(ErrNoDefaultJob, "set a default job")
	}
	for jobName, job := range jobs {
		if job == nil {
			return nil, zerr.With(zerr.Wrap(ErrNilJob, "invalid build"), "job", jobName)
		}
	}
	if _, ok := jobs[defaultName]; !ok {
		return nil, zerr.With(zerr.Wrap(ErrJobNotFound, "default job is not defined"), "job", defaultName)
	}
	return &Rbt{name: name, jobs: maps.Clone(jobs), defaultName: defaultName}, nil
}

// Name returns the build's name.
func (r *Rbt) Name() string { return r.name }

// Default returns the entry point job.
func (r *Rbt) Default() *Job { return r.jobs[r.defaultName] }

// DefaultName returns the name of the entry point job.
func (r *Rbt) DefaultName() string { return r.defaultName }

// Job returns the job registered under name.
func (r *Rbt) Job(name string) (*Job, bool) {
	j, ok := r.jobs[name]
	return j, ok
}

// Names returns all job names in sorted order.
func (r *Rbt) Names() []string {
	return slices.Sorted(maps.Keys(r.jobs))
}

// Select returns the jobs for the given names, or the default job when names is empty.
func (r *Rbt) Select(names ...string) ([]*Job, error) {
	if len(names) == 0 {
		return []*Job{r.Default()}, nil
	}
	out := make([]*Job, 0, len(names))
	for _, n := range names {
		j, ok := r.jobs[n]
		if !ok {
			return nil, zerr.With(zerr.Wrap(ErrJobNotFound, "unknown job selected"), "job", n)
		}
		out = append(out, j)
	}
	return out, nil
}
