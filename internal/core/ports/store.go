package ports

import (
	"context"

	"go.trai.ch/rbt/internal/core/domain"
)

// CacheStore maps job fingerprints to previously produced outputs.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type CacheStore interface {
	// Get returns the outputs stored for fp, with Dir pointing at their
	// materialized location. Returns nil, nil on a miss.
	Get(ctx context.Context, fp domain.Fingerprint) (*domain.Outputs, error)

	// Put records outputs for fp, moving the artifacts below outputs.Dir into
	// the store. It returns the committed entry. Storing different content
	// under an existing fingerprint fails with a CacheCorruptionError.
	Put(ctx context.Context, fp domain.Fingerprint, outputs *domain.Outputs) (*domain.Outputs, error)
}
