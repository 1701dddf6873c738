// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the buildorch command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/invowk/buildorch/internal/config"
	"github.com/invowk/buildorch/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Evaluate and run multi-project mobile builds",
		Long: TitleStyle.Render(config.AppName) + SubtitleStyle.Render(" - Evaluate and run multi-project mobile builds") + `

buildorch reads a build descriptor (build.cue or build.hcl), assembles the
project graph, applies settings from key.properties and runs tasks in
dependency order.

` + SubtitleStyle.Render("Examples:") + `
  buildorch tasks               List registered tasks
  buildorch plan assemble       Show what 'assemble' would run
  buildorch run assemble        Run 'assemble' and its dependencies
  buildorch watch assemble      Re-run 'assemble' when sources change
  buildorch config show         Print the effective project configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&app.flags.file, "file", "f", "", "build descriptor (default is build.cue or build.hcl in the working directory)")
	root.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $HOME/.config/buildorch/config.cue)")
	root.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logs and error chains")

	root.AddCommand(
		newRunCommand(app),
		newPlanCommand(app),
		newTasksCommand(app),
		newProjectsCommand(app),
		newConfigCommand(app),
		newWatchCommand(app),
	)
	return root
}

// Execute runs the CLI and exits the process on failure.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// handleError renders failures. Actionable errors get their suggestions and,
// in verbose mode, the matching issue catalog entry. Anything else (usage
// errors included) goes through fang's default rendering.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, a.verbose))
	if !a.verbose || ae.Issue == 0 {
		return
	}
	entry := issue.Get(ae.Issue)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(string(a.colorScheme))
	if renderErr != nil {
		return
	}
	fmt.Fprint(w, rendered)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
