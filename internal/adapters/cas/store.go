// Package cas implements the content-addressed output store and its
// fingerprint-keyed manifest cache.
package cas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheStore = (*Store)(nil)

// Store keeps one manifest per fingerprint under the cache directory and the
// artifacts it names under the matching store path.
type Store struct {
	layout domain.Layout
	locks  sync.Map // domain.Fingerprint -> *sync.Mutex
}

// NewStore creates a Store rooted at layout.
func NewStore(layout domain.Layout) *Store {
	return &Store{layout: layout}
}

// Get returns the cached outputs of fp, or nil on a miss.
func (s *Store) Get(_ context.Context, fp domain.Fingerprint) (*domain.Outputs, error) {
	return s.read(fp)
}

// Put moves the artifacts of outputs into the store path of fp and records
// their manifest. Putting the same content twice is a no-op refresh; putting
// different content under an existing fingerprint is cache corruption.
func (s *Store) Put(ctx context.Context, fp domain.Fingerprint, outputs *domain.Outputs) (*domain.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu := s.lock(fp)
	mu.Lock()
	defer mu.Unlock()

	incoming := *outputs
	incoming.Fingerprint = fp
	incoming.Artifacts = append([]domain.Artifact(nil), outputs.Artifacts...)
	incoming.Sort()

	existing, err := s.read(fp)
	if errors.Is(err, domain.ErrInvalidManifest) {
		// A damaged manifest is replaced by the incoming entry.
		existing, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if path, stored, got, ok := existing.Mismatch(&incoming); ok {
			return nil, &domain.CacheCorruptionError{
				Fingerprint: fp,
				Path:        path,
				Existing:    stored,
				Incoming:    got,
			}
		}
	}

	storePath := s.layout.StorePath(fp)
	if err := s.materialize(&incoming, storePath); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(&incoming, "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to marshal cache manifest")
	}
	manifest := s.layout.ManifestPath(fp)
	if err := writeFileAtomic(manifest, data); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", manifest)
	}

	incoming.Dir = storePath
	return &incoming, nil
}

// Purge removes every manifest and stored artifact.
func (s *Store) Purge() error {
	for _, dir := range []string{s.layout.CacheDir(), s.layout.StoreDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to remove cache"), "path", dir)
		}
	}
	return nil
}

func (s *Store) lock(fp domain.Fingerprint) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(fp, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Store) read(fp domain.Fingerprint) (*domain.Outputs, error) {
	manifest := s.layout.ManifestPath(fp)
	//nolint:gosec // Path is derived from the layout and a validated fingerprint
	data, err := os.ReadFile(manifest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", manifest)
	}

	var out domain.Outputs
	if err := json.Unmarshal(data, &out); err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrInvalidManifest, err)
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", manifest)
	}
	if err := out.Validate(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", manifest)
	}
	out.Fingerprint = fp
	out.Dir = s.layout.StorePath(fp)
	return &out, nil
}

// materialize stages the artifacts next to the store path and swaps the
// staging directory into place.
func (s *Store) materialize(outputs *domain.Outputs, storePath string) error {
	parent := filepath.Dir(storePath)
	if err := os.MkdirAll(parent, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", parent)
	}

	staging := filepath.Join(parent, ".staging-"+uuid.NewString())
	defer func() { _ = os.RemoveAll(staging) }()

	for _, a := range outputs.Artifacts {
		src := outputs.Path(a.Path)
		dst := filepath.Join(staging, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", dst)
		}
		if err := os.Rename(src, dst); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to move artifact into store"), "path", a.Path)
		}
	}

	if err := os.RemoveAll(storePath); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", storePath)
	}
	if err := os.Rename(staging, storePath); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", storePath)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
