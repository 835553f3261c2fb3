package fs

import (
	"errors"
	iofs "io/fs"
	"os"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Verifier = (*Verifier)(nil)

// Verifier checks that cached artifacts are still present in the store.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyOutputs checks if every artifact of outputs exists below root with
// its recorded size. It returns false if any artifact is missing.
func (v *Verifier) VerifyOutputs(root string, outputs *domain.Outputs) (bool, error) {
	if outputs == nil {
		return false, nil
	}

	for _, a := range outputs.Artifacts {
		path := outputPath(root, a.Path)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return false, nil
			}
			return false, zerr.With(zerr.Wrap(err, "failed to stat output"), "path", path)
		}
		if info.IsDir() || info.Size() != a.Size {
			return false, nil
		}
	}
	return true, nil
}
