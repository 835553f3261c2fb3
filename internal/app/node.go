package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rbt/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/rbt/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/rbt/internal/adapters/linear"    //nolint:depguard // Wired in app layer
	"go.trai.ch/rbt/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/rbt/internal/adapters/shell"     //nolint:depguard // Wired in app layer
	"go.trai.ch/rbt/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/rbt/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			shell.NodeID,
			shell.ResolverNodeID,
			fs.VerifierNodeID,
			fs.WalkerNodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
			linear.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return NewComponents(app, log), nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	executor, err := graft.Dep[ports.Executor](ctx)
	if err != nil {
		return nil, err
	}

	tools, err := graft.Dep[ports.ToolResolver](ctx)
	if err != nil {
		return nil, err
	}

	verifier, err := graft.Dep[ports.Verifier](ctx)
	if err != nil {
		return nil, err
	}

	walker, err := graft.Dep[*fs.Walker](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	renderer, err := graft.Dep[*linear.Renderer](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, executor, tools, verifier, walker, tracer, log, renderer), nil
}
