package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes xxhash content digests of files and directory trees.
type Hasher struct {
	walker *Walker
	cache  *HashCache
}

// NewHasher creates a new Hasher. A nil cache disables memoization.
func NewHasher(walker *Walker, cache *HashCache) *Hasher {
	return &Hasher{walker: walker, cache: cache}
}

// ComputeFileHash computes the XXHash of a file's content, consulting the
// cache when the file's size and modification time are unchanged.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to stat file"), "path", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	if h.cache != nil {
		if sum, ok := h.cache.Lookup(abs, info); ok {
			return sum, nil
		}
	}

	sum, err := hashFileContent(path)
	if err != nil {
		return 0, err
	}

	if h.cache != nil {
		h.cache.Store(abs, info, sum)
	}
	return sum, nil
}

// HashPath returns the content digest of a file, or of every file below a
// directory together with its relative path.
func (h *Hasher) HashPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrInputNotFound.Error()), "path", path)
	}

	if !info.IsDir() {
		sum, err := h.ComputeFileHash(path)
		if err != nil {
			return "", err
		}
		return formatSum(sum), nil
	}

	digest := xxhash.New()
	for rel, err := range h.walker.WalkFiles(path, nil) {
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, "failed to walk directory"), "path", path)
		}

		sum, err := h.ComputeFileHash(filepath.Join(path, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}

		_, _ = digest.WriteString(rel)
		_, _ = digest.Write([]byte{0})
		if err := binary.Write(digest, binary.LittleEndian, sum); err != nil {
			return "", zerr.Wrap(err, "failed to write hash to digest")
		}
	}
	return formatSum(digest.Sum64()), nil
}

func hashFileContent(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	digest := xxhash.New()
	if _, err := io.Copy(digest, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}
	return digest.Sum64(), nil
}

func formatSum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
