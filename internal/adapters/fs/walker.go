// Package fs provides file system adapters for hashing inputs, expanding
// input patterns and staging job workspaces.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/rbt/internal/core/domain"
)

// Walker enumerates regular files below a directory.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields the files below root as slash-separated paths relative to
// root, in lexical order. VCS metadata and rbt state directories are skipped,
// as is any directory or file whose name matches one of ignores.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if path != root {
				switch w.skip(d, ignores) {
				case skipDir:
					return filepath.SkipDir
				case skipFile:
					return nil
				}
			}

			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !yield(filepath.ToSlash(rel), nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", err)
		}
	}
}

type skipAction uint8

const (
	keep skipAction = iota
	skipDir
	skipFile
)

func (w *Walker) skip(d fs.DirEntry, ignores []string) skipAction {
	name := d.Name()

	if d.IsDir() {
		switch name {
		case ".git", ".jj", domain.RootDirName:
			return skipDir
		}
	}

	for _, ignore := range ignores {
		if matched, _ := filepath.Match(ignore, name); matched {
			if d.IsDir() {
				return skipDir
			}
			return skipFile
		}
	}
	return keep
}
