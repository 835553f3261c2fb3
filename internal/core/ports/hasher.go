package ports

// Hasher defines the interface for computing content hashes.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// HashPath returns the content hash of a file, or of every file below a directory.
	HashPath(path string) (string, error)
}
