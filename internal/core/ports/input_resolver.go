package ports

// InputResolver defines the interface for expanding declared input file patterns.
//
//go:generate mockgen -source=input_resolver.go -destination=mocks/mock_input_resolver.go -package=mocks
type InputResolver interface {
	// ResolveInputs expands glob patterns below root into sorted root-relative paths.
	ResolveInputs(patterns []string, root string) ([]string, error)
}
