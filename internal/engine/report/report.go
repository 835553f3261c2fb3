// Package report aggregates job results into a build summary.
package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/zerr"
)

// Summarize tallies results into a Summary. Results keep their order.
func Summarize(buildID string, startedAt time.Time, duration time.Duration, results []domain.JobResult) *domain.Summary {
	s := &domain.Summary{
		BuildID:   buildID,
		StartedAt: startedAt,
		Duration:  duration,
		Jobs:      results,
	}
	if s.Jobs == nil {
		s.Jobs = []domain.JobResult{}
	}

	for _, r := range results {
		switch r.State {
		case domain.StateSucceeded:
			s.Counts.Succeeded++
		case domain.StateSkipped:
			s.Counts.Skipped++
		case domain.StateFailed:
			s.Counts.Failed++
		case domain.StateCancelled:
			s.Counts.Cancelled++
		}
	}
	return s
}

// RootOutputs returns the store directory of every root job that has one.
func RootOutputs(s *domain.Summary) []string {
	var paths []string
	for _, r := range s.Jobs {
		if r.Root && r.StorePath != "" {
			paths = append(paths, r.StorePath)
		}
	}
	return paths
}

// WriteJSON encodes s as indented JSON.
func WriteJSON(w io.Writer, s *domain.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return zerr.Wrap(err, "failed to encode build summary")
	}
	return nil
}

// WriteFile writes the JSON form of s to path, replacing any existing file.
func WriteFile(path string, s *domain.Summary) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create summary directory"), "path", dir)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create summary file"), "path", path)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, "failed to write summary file"), "path", path)
	}

	if err := WriteJSON(tmp, s); err != nil {
		_ = tmp.Close()
		return zerr.With(err, "path", path)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write summary file"), "path", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write summary file"), "path", path)
	}
	return nil
}
