// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/rbt/internal/core/domain"
)

// Executor defines the interface for running a resolved command.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs inv in inv.WorkingDir and streams its output.
	//
	// It returns the process exit code. A non-nil error means the process could
	// not be started or waited on; a non-zero exit code alone is not an error.
	Execute(ctx context.Context, inv *domain.Invocation, stdout, stderr io.Writer) (int, error)
}
