package domain

import "time"

// JobResult is the terminal record of one job in a build.
type JobResult struct {
	Fingerprint Fingerprint   `json:"fingerprint"`
	Label       string        `json:"label"`
	State       JobState      `json:"state"`
	Root        bool          `json:"root,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Error       string        `json:"error,omitempty"`
	Cause       Fingerprint   `json:"cause,omitempty"`
	StorePath   string        `json:"store_path,omitempty"`
	Artifacts   []Artifact    `json:"artifacts,omitempty"`

	// Err is the job's originating error. It is not serialized.
	Err error `json:"-"`
}

// Propagated reports whether the job failed only because a dependency failed.
func (r *JobResult) Propagated() bool {
	return r.State == StateFailed && r.Cause != ""
}

// Counts tallies terminal states.
type Counts struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Summary is the machine-readable outcome of a build.
type Summary struct {
	BuildID   string        `json:"build_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Counts    Counts        `json:"counts"`
	Jobs      []JobResult   `json:"jobs"`
}

// OK reports whether every job succeeded or was skipped.
func (s *Summary) OK() bool {
	return s.Counts.Failed == 0 && s.Counts.Cancelled == 0
}

// Failures returns the jobs whose own command failed.
func (s *Summary) Failures() []JobResult {
	var out []JobResult
	for _, r := range s.Jobs {
		if r.State == StateFailed && !r.Propagated() {
			out = append(out, r)
		}
	}
	return out
}

// NotAttempted returns the jobs that never ran because of a failed dependency
// or because the build stopped first.
func (s *Summary) NotAttempted() []JobResult {
	var out []JobResult
	for _, r := range s.Jobs {
		if r.Propagated() || r.State == StateCancelled {
			out = append(out, r)
		}
	}
	return out
}

// Result returns the record for fp.
func (s *Summary) Result(fp Fingerprint) (JobResult, bool) {
	for _, r := range s.Jobs {
		if r.Fingerprint == fp {
			return r, true
		}
	}
	return JobResult{}, false
}
