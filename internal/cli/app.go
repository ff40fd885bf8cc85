// pattern: Functional Core
package cli

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
)

// Command represents a single CLI command with its metadata and handler.
type Command struct {
	Name             string
	Summary          string
	Usage            string
	RequiresInstance bool
	Run              func(args []string) error
}

// Group represents a group of related commands.
type Group struct {
	Name     string
	Summary  string
	Commands map[string]*Command

	prog string
}

// App is the top-level CLI application: ungrouped commands plus command
// groups, listed in registration order in help output.
type App struct {
	name     string
	version  string
	groups   map[string]*Group
	commands map[string]*Command
	order    []string
	gorder   []string

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
	// Exit defaults to os.Exit.
	Exit func(int)
}

// NewApp creates a CLI application named name (as typed by the user).
func NewApp(name, version string) *App {
	return &App{
		name:     name,
		version:  version,
		groups:   make(map[string]*Group),
		commands: make(map[string]*Command),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Exit:     os.Exit,
	}
}

// Name returns the program name used in help output.
func (a *App) Name() string {
	return a.name
}

// AddGroup creates and registers a new command group.
func (a *App) AddGroup(name, summary string) *Group {
	g := &Group{
		Name:     name,
		Summary:  summary,
		Commands: make(map[string]*Command),
		prog:     a.name,
	}
	if _, ok := a.groups[name]; !ok {
		a.gorder = append(a.gorder, name)
	}
	a.groups[name] = g
	return g
}

// AddCommand registers an ungrouped (top-level) command.
func (a *App) AddCommand(cmd *Command) {
	if _, ok := a.commands[cmd.Name]; !ok {
		a.order = append(a.order, cmd.Name)
	}
	a.commands[cmd.Name] = cmd
}

// AddCommand registers a command in the group.
func (g *Group) AddCommand(cmd *Command) {
	g.Commands[cmd.Name] = cmd
}

// Execute dispatches the CLI arguments to the appropriate command.
// Returns true if the TUI should be launched.
func (a *App) Execute(args []string) bool {
	if len(args) == 0 {
		return true
	}

	name := args[0]

	if cmd, ok := a.commands[name]; ok {
		if wantsHelp(args[1:]) {
			fmt.Fprintf(a.Stderr, "%s\n", cmd.Usage)
			return false
		}
		// Commands report their own errors and exit codes.
		_ = cmd.Run(args[1:])
		return false
	}

	if group, ok := a.groups[name]; ok {
		if len(args) < 2 || args[1] == "help" || args[1] == "--help" || args[1] == "-h" {
			group.PrintHelp(a.Stderr)
			return false
		}

		if cmd, ok := group.Commands[args[1]]; ok {
			if wantsHelp(args[2:]) {
				fmt.Fprintf(a.Stderr, "%s\n", cmd.Usage)
				return false
			}
			_ = cmd.Run(args[2:])
			return false
		}

		group.PrintHelp(a.Stderr)
		a.Exit(1)
		return false
	}

	a.PrintHelp(a.Stderr)
	a.Exit(1)
	return false
}

func wantsHelp(args []string) bool {
	return slices.ContainsFunc(args, func(arg string) bool {
		return arg == "--help" || arg == "-h"
	})
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s [options] [command]\n\n", a.name)
	fmt.Fprintf(w, "Commands:\n")

	for _, name := range a.order {
		cmd := a.commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}

	fmt.Fprintf(w, "  %-10s %s\n", "(none)", "Launch interactive TUI")

	if len(a.gorder) > 0 {
		fmt.Fprintf(w, "\nCommand Groups (requires running instance):\n")
		for _, name := range a.gorder {
			group := a.groups[name]
			fmt.Fprintf(w, "  %-10s %s\n", group.Name, group.Summary)
		}
		fmt.Fprintf(w, "\nUse \"%s <group> help\" for group details.\n", a.name)
	}

	fmt.Fprintf(w, "\nOptions:\n")
}

// PrintHelp prints help for a specific group.
func (g *Group) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s %s <command>\n\n", g.prog, g.Name)
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range slices.Sorted(maps.Keys(g.Commands)) {
		cmd := g.Commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintf(w, "\nUse \"%s %s <command> --help\" for command details.\n", g.prog, g.Name)
}
