package shell

import (
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ToolResolver = (*PathResolver)(nil)

// PathResolver locates system tools on a search path.
type PathResolver struct {
	path string
}

// NewPathResolver resolves tools against the PATH of the current process.
func NewPathResolver() *PathResolver {
	return &PathResolver{path: os.Getenv("PATH")}
}

// NewPathResolverWith resolves tools against the given search path.
func NewPathResolverWith(path string) *PathResolver {
	return &PathResolver{path: path}
}

// Resolve returns the absolute path of the executable called name. Names
// containing a path separator are resolved relative to the working directory.
func (r *PathResolver) Resolve(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, domain.ErrToolNotFound.Error()), "tool", name)
		}
		if err := findExecutable(abs); err != nil {
			return "", zerr.With(zerr.Wrap(domain.ErrToolNotFound, "not an executable"), "tool", name)
		}
		return abs, nil
	}

	for _, dir := range filepath.SplitList(r.path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if err := findExecutable(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", zerr.With(zerr.Wrap(err, domain.ErrToolNotFound.Error()), "tool", name)
			}
			return abs, nil
		}
	}
	return "", zerr.With(zerr.Wrap(domain.ErrToolNotFound, "not on PATH"), "tool", name)
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
