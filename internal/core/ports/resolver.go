package ports

// ToolResolver defines the interface for locating system tools.
//
//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type ToolResolver interface {
	// Resolve returns the absolute path of the executable named name.
	Resolve(name string) (string, error)
}
