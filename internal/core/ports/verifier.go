package ports

import "go.trai.ch/rbt/internal/core/domain"

// Verifier checks that recorded outputs are still materialized.
//
//go:generate mockgen -source=verifier.go -destination=mocks/mock_verifier.go -package=mocks
type Verifier interface {
	// VerifyOutputs reports whether every artifact of outputs exists below root.
	VerifyOutputs(root string, outputs *domain.Outputs) (bool, error)
}
