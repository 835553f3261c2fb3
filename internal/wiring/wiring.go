// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/rbt/internal/adapters/config"
	_ "go.trai.ch/rbt/internal/adapters/fs"
	_ "go.trai.ch/rbt/internal/adapters/linear"
	_ "go.trai.ch/rbt/internal/adapters/logger"
	_ "go.trai.ch/rbt/internal/adapters/shell"
	_ "go.trai.ch/rbt/internal/adapters/telemetry"
	// Register app nodes.
	_ "go.trai.ch/rbt/internal/app"
)
