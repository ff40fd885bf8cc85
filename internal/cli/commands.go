// pattern: Imperative Shell
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"

	"syncwatch/internal/instance"
	"syncwatch/internal/reconcile"
	"syncwatch/internal/store"
)

// ProgramName is the command users type.
const ProgramName = "syncwatch"

// ResolveDataDir returns the directory for lock and port files: configDir
// when set, otherwise ~/.config/syncwatch.
func ResolveDataDir(configDir string) string {
	if configDir != "" {
		return configDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", ProgramName)
	}
	return filepath.Join(home, ".config", ProgramName)
}

// BuildApp creates the CLI application with all commands and groups.
func BuildApp(version string, configDir string) *App {
	app := NewApp(ProgramName, version)
	delegate := func() *Delegate {
		return &Delegate{ConfigDir: configDir, ExitFunc: app.Exit, Stderr: app.Stderr}
	}

	app.AddCommand(&Command{
		Name:             "list",
		Summary:          "Print the current result rows of a running instance",
		Usage:            "Usage: syncwatch list [--status <status>] [--text]",
		RequiresInstance: true,
		Run: func(args []string) error {
			return runListCommand(app, delegate(), args)
		},
	})

	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove stale lock/port files from a crashed instance",
		Usage:   "Usage: syncwatch cleanup",
		Run: func(args []string) error {
			return runCleanupCommand(app, configDir)
		},
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: syncwatch version",
		Run: func(args []string) error {
			fmt.Fprintln(app.Stdout, version)
			return nil
		},
	})

	queryGroup := app.AddGroup("query", "Control the remote index query")
	RegisterQueryCommands(queryGroup, app, delegate)

	return app
}

// RegisterQueryCommands adds the query start/status commands.
func RegisterQueryCommands(group *Group, app *App, delegate func() *Delegate) {
	group.AddCommand(&Command{
		Name:             "start",
		Summary:          "Start watching the remote index (no-op when active)",
		Usage:            "Usage: syncwatch query start",
		RequiresInstance: true,
		Run: func(args []string) error {
			delegate().Run(func(client *instance.Client) error {
				data, err := client.StartQuery()
				if err != nil {
					return err
				}
				return PrintJSON(app.Stdout, data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:             "status",
		Summary:          "Show whether the query is active and how many passes ran",
		Usage:            "Usage: syncwatch query status",
		RequiresInstance: true,
		Run: func(args []string) error {
			delegate().Run(func(client *instance.Client) error {
				data, err := client.QueryStatus()
				if err != nil {
					return err
				}
				return PrintJSON(app.Stdout, data)
			})
			return nil
		},
	})
}

func runListCommand(app *App, d *Delegate, args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	fs.SetOutput(app.Stderr)
	status := fs.String("status", "", "only rows with this status (current, downloading, not-downloaded, unknown)")
	text := fs.Bool("text", false, "print a table instead of JSON")
	if err := fs.Parse(args); err != nil {
		app.Exit(1)
		return err
	}
	if *status != "" && !slices.Contains(reconcile.Statuses(), reconcile.Status(*status)) {
		fmt.Fprintf(app.Stderr, "error: unknown status %q\n", *status)
		app.Exit(1)
		return nil
	}

	d.Run(func(client *instance.Client) error {
		data, err := client.Results()
		if err != nil {
			return err
		}
		if *status == "" && !*text {
			return PrintJSON(app.Stdout, data)
		}

		var snap store.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("decode results: %w", err)
		}
		rows := FilterRows(snap.Rows(), *status)
		if *text {
			return printRowTable(app.Stdout, rows)
		}
		out, err := json.Marshal(rows)
		if err != nil {
			return err
		}
		return PrintJSON(app.Stdout, out)
	})
	return nil
}

// FilterRows keeps the rows whose status equals status; an empty status
// keeps everything.
func FilterRows(rows []store.Row, status string) []store.Row {
	if status == "" {
		return rows
	}
	out := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out
}

func printRowTable(w io.Writer, rows []store.Row) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "STATUS", "URL")
	for _, row := range rows {
		t.Row(row.Name, row.Status, row.URL)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// runCleanupCommand removes stale lock and port files from a crashed instance.
func runCleanupCommand(app *App, configDir string) error {
	dataDir := ResolveDataDir(configDir)

	fl, err := instance.Lock(dataDir)
	if err != nil {
		fmt.Fprintf(app.Stderr, "Error: a syncwatch instance appears to be running. Stop it first.\n")
		app.Exit(1)
		return err
	}
	instance.Cleanup(dataDir, fl)
	fmt.Fprintln(app.Stdout, "Cleaned up stale lock and port files.")
	return nil
}
