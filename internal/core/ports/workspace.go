package ports

import (
	"context"

	"go.trai.ch/rbt/internal/core/domain"
)

// Mount copies Source into a workspace at the relative path Target.
type Mount struct {
	Source string
	Target string
}

// Workspaces prepares per-job working directories.
//
//go:generate mockgen -source=workspace.go -destination=mocks/mock_workspace.go -package=mocks
type Workspaces interface {
	// Prepare creates an empty workspace for fp and copies mounts into it.
	Prepare(ctx context.Context, fp domain.Fingerprint, mounts []Mount) (string, error)

	// Collect hashes the declared outputs found in dir.
	Collect(dir string, fp domain.Fingerprint, outputs []string) (*domain.Outputs, error)

	// Remove deletes the workspace of fp.
	Remove(fp domain.Fingerprint) error
}
