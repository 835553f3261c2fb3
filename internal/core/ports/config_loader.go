package ports

import "go.trai.ch/rbt/internal/core/domain"

// ConfigLoader defines the interface for loading a build definition.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the build definition found at or above cwd.
	Load(cwd string) (*domain.Project, error)

	// DiscoverRoot walks up from cwd to the directory holding the build definition.
	DiscoverRoot(cwd string) (string, error)
}
