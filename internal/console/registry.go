// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"context"
	"sort"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command is one console command.
type Command struct {
	// Name is the primary command name (e.g., "add")
	Name string

	// Aliases are alternative names (e.g., "ls")
	Aliases []string

	// Description is shown in help
	Description string

	// Usage shows argument syntax (e.g., "rm <n...>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler executes the command
	Handler func(ctx context.Context, c *Console, in Input) error

	// Hidden commands don't appear in help
	Hidden bool
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name     string
	Required bool
	Type     ArgType

	// Values for enum types
	Values []string
}

// ArgType drives validation and completion.
type ArgType int

const (
	ArgString ArgType = iota // Free-form string
	ArgIndex                 // 1-based list position
	ArgInt                   // Positive integer
	ArgFile                  // File path
	ArgEnum                  // One of Values
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds the registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a registry with every built-in command.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns the registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Names returns every command name and alias, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands)+len(r.aliases))
	for name := range r.commands {
		names = append(names, name)
	}
	for alias := range r.aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:        "add",
		Aliases:     []string{"a"},
		Description: "Add scripts to the list; text after -- becomes their arguments",
		Usage:       "add <path...> [-- args]",
		Args:        []ArgDef{{Name: "path", Required: true, Type: ArgFile}},
		Handler:     handleAdd,
	})
	r.Register(&Command{
		Name:        "args",
		Description: "Replace the arguments of one entry",
		Usage:       "args <n> [args]",
		Args:        []ArgDef{{Name: "n", Required: true, Type: ArgIndex}},
		Handler:     handleArgs,
	})
	r.Register(&Command{
		Name:        "rm",
		Aliases:     []string{"remove", "del"},
		Description: "Remove entries from the list",
		Usage:       "rm <n...>",
		Args:        []ArgDef{{Name: "n", Required: true, Type: ArgIndex}},
		Handler:     handleRemove,
	})
	r.Register(&Command{
		Name:        "list",
		Aliases:     []string{"ls"},
		Description: "Show the batch list",
		Usage:       "list",
		Handler:     handleList,
	})
	r.Register(&Command{
		Name:        "start",
		Aliases:     []string{"run"},
		Description: "Run every entry in the list",
		Usage:       "start",
		Handler:     handleStart,
	})
	r.Register(&Command{
		Name:        "stop",
		Description: "Let running scripts finish and skip the rest",
		Usage:       "stop",
		Handler:     handleStop,
	})
	r.Register(&Command{
		Name:        "finish",
		Description: "Close the queue; the run ends once it drains",
		Usage:       "finish",
		Handler:     handleFinish,
	})
	r.Register(&Command{
		Name:        "parallel",
		Aliases:     []string{"max"},
		Description: "Set how many scripts run at once",
		Usage:       "parallel <n>",
		Args:        []ArgDef{{Name: "n", Required: true, Type: ArgInt}},
		Handler:     handleParallel,
	})
	r.Register(&Command{
		Name:        "dups",
		Description: "Allow or refuse the same script twice",
		Usage:       "dups on|off",
		Args:        []ArgDef{{Name: "mode", Required: true, Type: ArgEnum, Values: []string{"on", "off"}}},
		Handler:     handleDups,
	})
	r.Register(&Command{
		Name:        "status",
		Aliases:     []string{"st"},
		Description: "Show run counters and the last message",
		Usage:       "status",
		Handler:     handleStatus,
	})
	r.Register(&Command{
		Name:        "wait",
		Description: "Close the queue and block until the current run ends",
		Usage:       "wait",
		Handler:     handleWait,
	})
	r.Register(&Command{
		Name:        "help",
		Aliases:     []string{"?"},
		Description: "Show commands",
		Usage:       "help",
		Handler:     handleHelp,
	})
	r.Register(&Command{
		Name:        "quit",
		Aliases:     []string{"exit", "q"},
		Description: "Leave the console",
		Usage:       "quit",
		Handler:     handleQuit,
	})
}
