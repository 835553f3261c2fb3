package domain

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// Artifact is one produced file and its content hash.
type Artifact struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
	Mode   uint32 `json:"mode"`
}

// Outputs is what a job produced: its artifacts and the directory holding them.
type Outputs struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Artifacts   []Artifact  `json:"artifacts"`
	CreatedAt   time.Time   `json:"created_at"`

	// Dir is the directory the artifact paths are relative to. It is not
	// persisted; stores set it when returning an entry.
	Dir string `json:"-"`
}

// Path returns the absolute location of the artifact at rel.
func (o *Outputs) Path(rel string) string {
	return filepath.Join(o.Dir, filepath.FromSlash(rel))
}

// Sort orders artifacts by path.
func (o *Outputs) Sort() {
	slices.SortFunc(o.Artifacts, func(a, b Artifact) int {
		return strings.Compare(a.Path, b.Path)
	})
}

// Validate checks that every artifact path is a clean workspace-relative
// path and appears once.
func (o *Outputs) Validate() error {
	seen := make(map[string]struct{}, len(o.Artifacts))
	for _, a := range o.Artifacts {
		clean, err := CleanRelPath(a.Path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
		if clean != a.Path {
			return zerr.With(zerr.Wrap(ErrInvalidManifest, "artifact path is not clean"), "path", a.Path)
		}
		if _, dup := seen[clean]; dup {
			return zerr.With(zerr.Wrap(ErrInvalidManifest, "duplicate artifact path"), "path", a.Path)
		}
		seen[clean] = struct{}{}
	}
	return nil
}

// Mismatch returns the first artifact path whose digest differs between o and
// other, with both digests. A path missing on one side reports an empty digest
// for that side. ok is false when both hold the same content.
func (o *Outputs) Mismatch(other *Outputs) (path, mine, theirs string, ok bool) {
	a := digestsByPath(o.Artifacts)
	b := digestsByPath(other.Artifacts)

	paths := make([]string, 0, len(a)+len(b))
	for p := range a {
		paths = append(paths, p)
	}
	for p := range b {
		if _, dup := a[p]; !dup {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)

	for _, p := range paths {
		if a[p] != b[p] {
			return p, a[p], b[p], true
		}
	}
	return "", "", "", false
}

func digestsByPath(artifacts []Artifact) map[string]string {
	m := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		m[a.Path] = a.Digest
	}
	return m
}
