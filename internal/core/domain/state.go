package domain

import "go.trai.ch/zerr"

// JobState is the per-build execution state of a job.
type JobState uint8

const (
	// StatePending means the job is waiting for its inputs.
	StatePending JobState = iota
	// StateReady means every input succeeded and the job waits for a worker.
	StateReady
	// StateRunning means the job's command is executing.
	StateRunning
	// StateSucceeded means the command ran and its outputs were stored.
	StateSucceeded
	// StateFailed means the command failed or a dependency failed.
	StateFailed
	// StateSkipped means cached outputs were reused.
	StateSkipped
	// StateCancelled means the build stopped before the job was dispatched.
	StateCancelled
)

var stateNames = [...]string{
	StatePending:   "Pending",
	StateReady:     "Ready",
	StateRunning:   "Running",
	StateSucceeded: "Succeeded",
	StateFailed:    "Failed",
	StateSkipped:   "Skipped",
	StateCancelled: "Cancelled",
}

var transitions = map[JobState][]JobState{
	StatePending: {StateReady, StateSkipped, StateFailed, StateCancelled},
	StateReady:   {StateRunning, StateCancelled},
	StateRunning: {StateSucceeded, StateFailed},
}

func (s JobState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// MarshalText encodes the state by name.
func (s JobState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *JobState) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = JobState(i)
			return nil
		}
	}
	return zerr.With(zerr.New("unknown job state"), "state", string(text))
}

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped, StateCancelled:
		return true
	default:
		return false
	}
}

// Satisfied reports whether dependents may consume the job's outputs.
func (s JobState) Satisfied() bool {
	return s == StateSucceeded || s == StateSkipped
}

// Transition validates a move from s to next.
func (s JobState) Transition(next JobState) (JobState, error) {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, zerr.With(zerr.With(zerr.Wrap(ErrInvalidTransition, "rejected"), "from", s.String()), "to", next.String())
}
