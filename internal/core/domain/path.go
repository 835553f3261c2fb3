package domain

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// CleanRelPath normalizes a workspace-relative path to slash form.
// Absolute paths and ".." segments are rejected so every path stays inside the workspace.
func CleanRelPath(p string) (string, error) {
	if p == "" {
		return "", zerr.Wrap(ErrInvalidPath, "path must not be empty")
	}

	slashed := filepath.ToSlash(p)
	if filepath.IsAbs(p) || strings.HasPrefix(slashed, "/") || filepath.VolumeName(p) != "" {
		return "", zerr.With(zerr.Wrap(ErrAbsolutePath, "remove the absolute prefix"), "path", p)
	}

	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", zerr.With(zerr.Wrap(ErrParentPath, "remove the '..' segment"), "path", p)
		}
	}

	clean := path.Clean(slashed)
	if clean == "." {
		return "", zerr.With(zerr.Wrap(ErrInvalidPath, "path must name a file inside the workspace"), "path", p)
	}
	return clean, nil
}

// cleanRelPaths validates, sorts and deduplicates paths.
func cleanRelPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		clean, err := CleanRelPath(p)
		if err != nil {
			return nil, err
		}
		out = append(out, clean)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
