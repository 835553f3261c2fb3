package domain

import "path/filepath"

const (
	// RootDirName is the default directory holding rbt's state.
	RootDirName = ".rbt"

	// StoreDirName is the name of the materialized outputs directory.
	StoreDirName = "store"

	// CacheDirName is the name of the cache manifest directory.
	CacheDirName = "cache"

	// WorkspacesDirName is the name of the per-job working directory root.
	WorkspacesDirName = "workspaces"

	// StagingDirName is the name of the directory holding partial downloads.
	StagingDirName = "staging"

	// FileHashesFileName is the name of the persisted input file hash cache.
	FileHashesFileName = "file_hashes.json"

	// BuildFileName is the name of the build definition file.
	BuildFileName = "rbt.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// Layout resolves the on-disk locations under a root directory.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at root, or at RootDirName when root is empty.
func NewLayout(root string) Layout {
	if root == "" {
		root = RootDirName
	}
	return Layout{Root: root}
}

// StoreDir returns the directory holding materialized outputs.
func (l Layout) StoreDir() string {
	return filepath.Join(l.Root, StoreDirName)
}

// StorePath returns the directory holding the outputs of fp.
func (l Layout) StorePath(fp Fingerprint) string {
	return filepath.Join(l.Root, StoreDirName, fp.Shard(), fp.String())
}

// CacheDir returns the directory holding cache manifests.
func (l Layout) CacheDir() string {
	return filepath.Join(l.Root, CacheDirName)
}

// ManifestPath returns the cache manifest file of fp.
func (l Layout) ManifestPath(fp Fingerprint) string {
	return filepath.Join(l.Root, CacheDirName, fp.Shard(), fp.String()+".json")
}

// WorkspacesDir returns the root of all job workspaces.
func (l Layout) WorkspacesDir() string {
	return filepath.Join(l.Root, WorkspacesDirName)
}

// WorkspacePath returns the working directory of fp.
func (l Layout) WorkspacePath(fp Fingerprint) string {
	return filepath.Join(l.Root, WorkspacesDirName, fp.String())
}

// StagingDir returns the directory for partially fetched cache entries.
func (l Layout) StagingDir() string {
	return filepath.Join(l.Root, StagingDirName)
}

// FileHashesPath returns the persisted file hash cache.
func (l Layout) FileHashesPath() string {
	return filepath.Join(l.Root, FileHashesFileName)
}
