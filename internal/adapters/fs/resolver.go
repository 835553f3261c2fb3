package fs

import (
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.InputResolver = (*Resolver)(nil)

// Resolver implements the InputResolver interface using filepath.Glob.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveInputs expands the given input patterns below root into a sorted,
// de-duplicated list of slash-separated paths relative to root.
// Absolute patterns and patterns with ".." are rejected. A pattern without
// matches is an error.
func (r *Resolver) ResolveInputs(patterns []string, root string) ([]string, error) {
	seen := make(map[string]struct{})

	for _, pattern := range patterns {
		clean, err := domain.CleanRelPath(pattern)
		if err != nil {
			return nil, err
		}
		full := filepath.Join(root, filepath.FromSlash(clean))

		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to glob path"), "pattern", pattern)
		}

		if len(matches) == 0 {
			if _, err := os.Stat(full); err != nil {
				return nil, zerr.With(zerr.Wrap(domain.ErrInputNotFound, "no file matches the pattern"), "pattern", pattern)
			}
			matches = []string{full}
		}

		for _, match := range matches {
			rel, err := filepath.Rel(root, match)
			if err != nil {
				return nil, zerr.With(zerr.Wrap(err, "failed to relativize input"), "path", match)
			}
			seen[filepath.ToSlash(rel)] = struct{}{}
		}
	}

	result := make([]string, 0, len(seen))
	for p := range seen {
		result = append(result, p)
	}
	slices.Sort(result)

	return result, nil
}
