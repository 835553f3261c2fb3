package fs

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Workspaces = (*Workspaces)(nil)

// Workspaces stages each job in a private directory below the layout's
// workspaces directory.
type Workspaces struct {
	layout domain.Layout
}

// NewWorkspaces creates workspaces rooted at layout.WorkspacesDir.
func NewWorkspaces(layout domain.Layout) *Workspaces {
	return &Workspaces{layout: layout}
}

// Prepare creates an empty workspace for fp, replacing any leftover from an
// interrupted build, and copies every mount into it.
func (w *Workspaces) Prepare(ctx context.Context, fp domain.Fingerprint, mounts []ports.Mount) (string, error) {
	dir := w.layout.WorkspacePath(fp)
	if err := os.RemoveAll(dir); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to clear workspace"), "path", dir)
	}
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create workspace"), "path", dir)
	}

	for _, m := range mounts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		target := filepath.Join(dir, filepath.FromSlash(m.Target))
		if err := copyTree(m.Source, target); err != nil {
			return "", zerr.With(zerr.With(zerr.Wrap(err, "failed to mount input"), "source", m.Source), "target", m.Target)
		}
	}
	return dir, nil
}

// Collect hashes the declared outputs left in dir by the job's command.
func (w *Workspaces) Collect(dir string, fp domain.Fingerprint, outputs []string) (*domain.Outputs, error) {
	result := &domain.Outputs{
		Fingerprint: fp,
		Artifacts:   make([]domain.Artifact, 0, len(outputs)),
		CreatedAt:   time.Now().UTC(),
		Dir:         dir,
	}

	for _, rel := range outputs {
		path := outputPath(dir, rel)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil, zerr.With(zerr.Wrap(domain.ErrMissingOutput, "output was not produced"), "path", rel)
			}
			return nil, zerr.With(zerr.Wrap(err, "failed to stat output"), "path", rel)
		}
		if info.IsDir() {
			return nil, zerr.With(zerr.Wrap(domain.ErrMissingOutput, "output is a directory"), "path", rel)
		}

		sum, err := hashFileContent(path)
		if err != nil {
			return nil, err
		}
		result.Artifacts = append(result.Artifacts, domain.Artifact{
			Path:   rel,
			Digest: formatSum(sum),
			Size:   info.Size(),
			Mode:   uint32(info.Mode().Perm()),
		})
	}

	result.Sort()
	return result, nil
}

// Remove deletes the workspace of fp.
func (w *Workspaces) Remove(fp domain.Fingerprint) error {
	dir := w.layout.WorkspacePath(fp)
	if err := os.RemoveAll(dir); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove workspace"), "path", dir)
	}
	return nil
}

// Purge deletes every workspace.
func (w *Workspaces) Purge() error {
	dir := w.layout.WorkspacesDir()
	if err := os.RemoveAll(dir); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove workspaces"), "path", dir)
	}
	return nil
}

func outputPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// copyTree copies a file or directory from src to dst, preserving permissions.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode().Perm())
	}

	return filepath.WalkDir(src, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, domain.DirPerm)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, fi.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}

	in, err := os.Open(src) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // Best effort close in defer

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
