// Package main is the entry point for the rbt build tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/rbt/cmd/rbt/commands"
	"go.trai.ch/rbt/internal/app"
	"go.trai.ch/rbt/internal/core/domain"
	_ "go.trai.ch/rbt/internal/wiring"
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

// configurableLogger is implemented by loggers whose output can be tuned from flags.
type configurableLogger interface {
	SetVerbose(enable bool)
	SetJSON(enable bool)
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stdout, stderr io.Writer,
	provider ComponentProvider,
) int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize application components
	components, cleanup, err := provider(ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	defer cleanup()

	// 2. Interface - CLI
	cli := commands.New(components.App)
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)
	if l, ok := components.Logger.(configurableLogger); ok {
		cli.SetLogHook(func(opts commands.LogOptions) {
			l.SetVerbose(opts.Verbose)
			l.SetJSON(opts.JSON)
		})
	}

	// 3. Execution
	if err := cli.Execute(ctx); err != nil {
		// Job failures were already reported by the build summary.
		if errors.Is(err, domain.ErrBuildFailed) {
			return 1
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
