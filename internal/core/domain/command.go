package domain

import "slices"

// Command is a Tool plus an ordered argument list.
type Command struct {
	tool Tool
	args []string
}

// NewCommand returns a Command running tool with args. The args slice is copied.
func NewCommand(tool Tool, args ...string) (Command, error) {
	if tool.IsZero() {
		return Command{}, ErrMissingTool
	}
	return Command{tool: tool, args: slices.Clone(args)}, nil
}

// Tool returns the executable the command runs.
func (c Command) Tool() Tool { return c.tool }

// Args returns a copy of the argument list.
func (c Command) Args() []string { return slices.Clone(c.args) }
