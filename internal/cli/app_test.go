// pattern: Functional Core
package cli

import (
	"bytes"
	"strings"
	"testing"
)

func newTestApp() (*App, *bytes.Buffer, *int) {
	app := NewApp("syncwatch", "1.0.0")
	stderr := &bytes.Buffer{}
	exitCode := -1
	app.Stdout = &bytes.Buffer{}
	app.Stderr = stderr
	app.Exit = func(code int) { exitCode = code }
	return app, stderr, &exitCode
}

func TestApp_PrintHelp_ListsCommandsAndGroups(t *testing.T) {
	app, _, _ := newTestApp()
	app.AddCommand(&Command{Name: "list", Summary: "Print rows"})
	app.AddCommand(&Command{Name: "version", Summary: "Print version"})
	app.AddGroup("query", "Control the query")

	buf := &bytes.Buffer{}
	app.PrintHelp(buf)
	output := buf.String()

	for _, want := range []string{
		"Usage: syncwatch [options] [command]",
		"Command Groups (requires running instance)",
		"query",
		"Launch interactive TUI",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help missing %q:\n%s", want, output)
		}
	}
	if strings.Index(output, "list") > strings.Index(output, "version") {
		t.Error("commands should be listed in registration order")
	}
}

func TestApp_PrintHelp_NoGroups(t *testing.T) {
	app, _, _ := newTestApp()
	app.AddCommand(&Command{Name: "version", Summary: "Print version"})

	buf := &bytes.Buffer{}
	app.PrintHelp(buf)

	if strings.Contains(buf.String(), "Command Groups") {
		t.Errorf("help should omit the groups section:\n%s", buf.String())
	}
}

func TestApp_Execute_NoArgs_ReturnsTrueForTUI(t *testing.T) {
	app, _, _ := newTestApp()
	if !app.Execute(nil) {
		t.Error("Execute(nil) should launch the TUI")
	}
}

func TestApp_Execute_UngroupedCommand_Dispatches(t *testing.T) {
	app, _, _ := newTestApp()
	var got []string
	app.AddCommand(&Command{
		Name: "list",
		Run: func(args []string) error {
			got = args
			return nil
		},
	})

	if app.Execute([]string{"list", "--text"}) {
		t.Error("Execute with a command should not launch the TUI")
	}
	if len(got) != 1 || got[0] != "--text" {
		t.Errorf("command received %v, want [--text]", got)
	}
}

func TestApp_Execute_GroupCommand_Dispatches(t *testing.T) {
	app, _, _ := newTestApp()
	group := app.AddGroup("query", "Control the query")

	called := false
	var passedArgs []string
	group.AddCommand(&Command{
		Name: "start",
		Run: func(args []string) error {
			called = true
			passedArgs = args
			return nil
		},
	})

	if app.Execute([]string{"query", "start", "now"}) {
		t.Error("Execute with group command should not launch the TUI")
	}
	if !called {
		t.Fatal("command Run was not called")
	}
	if len(passedArgs) != 1 || passedArgs[0] != "now" {
		t.Errorf("command received %v, want [now]", passedArgs)
	}
}

func TestApp_Execute_GroupHelp(t *testing.T) {
	for _, arg := range []string{"help", "--help", "-h"} {
		t.Run(arg, func(t *testing.T) {
			app, stderr, exitCode := newTestApp()
			group := app.AddGroup("query", "Control the query")
			group.AddCommand(&Command{Name: "status", Summary: "Show status"})

			app.Execute([]string{"query", arg})

			if !strings.Contains(stderr.String(), "Usage: syncwatch query <command>") {
				t.Errorf("group help missing usage line:\n%s", stderr.String())
			}
			if !strings.Contains(stderr.String(), "status") {
				t.Errorf("group help missing 'status':\n%s", stderr.String())
			}
			if *exitCode != -1 {
				t.Errorf("help should not exit, got code %d", *exitCode)
			}
		})
	}
}

func TestApp_Execute_CommandHelp_PrintsUsage(t *testing.T) {
	app, stderr, _ := newTestApp()
	group := app.AddGroup("query", "Control the query")

	runCalled := false
	group.AddCommand(&Command{
		Name:  "start",
		Usage: "Usage: syncwatch query start",
		Run: func(args []string) error {
			runCalled = true
			return nil
		},
	})

	app.Execute([]string{"query", "start", "--help"})

	if runCalled {
		t.Error("Run should not be called for --help")
	}
	if !strings.Contains(stderr.String(), "Usage: syncwatch query start") {
		t.Errorf("usage missing, got: %s", stderr.String())
	}
}

func TestApp_Execute_UngroupedCommandHelp(t *testing.T) {
	app, stderr, _ := newTestApp()
	app.AddCommand(&Command{
		Name:  "list",
		Usage: "Usage: syncwatch list",
		Run: func(args []string) error {
			t.Error("Run should not be called for -h")
			return nil
		},
	})

	app.Execute([]string{"list", "-h"})

	if !strings.Contains(stderr.String(), "Usage: syncwatch list") {
		t.Errorf("usage missing, got: %s", stderr.String())
	}
}

func TestApp_Execute_Unknown_ExitsWithCode1(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"frobnicate"}},
		{"unknown group command", []string{"query", "frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, stderr, exitCode := newTestApp()
			app.AddGroup("query", "Control the query")

			if app.Execute(tt.args) {
				t.Error("unknown command should not launch the TUI")
			}
			if *exitCode != 1 {
				t.Errorf("exit code = %d, want 1", *exitCode)
			}
			if !strings.Contains(stderr.String(), "Usage: syncwatch") {
				t.Errorf("expected help on stderr, got: %s", stderr.String())
			}
		})
	}
}
