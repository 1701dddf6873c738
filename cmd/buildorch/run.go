// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/buildorch/internal/dag"
	"github.com/invowk/buildorch/internal/eval"
	"github.com/invowk/buildorch/internal/issue"
	"github.com/invowk/buildorch/pkg/task"
)

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run [task]",
		Short: "Run a task and its dependencies",
		Long: `Run a task and everything it depends on, in dependency order.

Projects are configured first. The first failing task stops the run; tasks
that already completed are not rolled back. Without an argument the
configured default_task runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.loadSession(cmd.Context())
			if err != nil {
				return err
			}
			return app.runTask(cmd.Context(), s, taskName(s, args))
		},
	}
}

func newPlanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [task]",
		Short: "Show the tasks a run would execute, in order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.loadSession(cmd.Context())
			if err != nil {
				return err
			}
			name := taskName(s, args)
			plan, err := s.eval.Plan(name)
			if err != nil {
				return taskError("plan task", name, err)
			}
			for i, t := range plan {
				fmt.Fprintf(app.stdout, "%s %s\n", LabelStyle.Render(fmt.Sprintf("%2d.", i+1)), CmdStyle.Render(t.String()))
			}
			return nil
		},
	}
}

// taskName returns the task named on the command line, or default_task.
func taskName(s *session, args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return s.cfg.DefaultTask
}

// runTask runs name and reports success on stdout. A failed script task
// carries its exit status out as an *ExitError.
func (a *App) runTask(ctx context.Context, s *session, name string) error {
	if err := s.eval.Run(ctx, name); err != nil {
		wrapped := taskError("run task", name, err)
		var exitErr *task.ScriptExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.Code, Err: wrapped}
		}
		return wrapped
	}

	fmt.Fprintf(a.stdout, "%s %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(name))
	return nil
}

// taskError maps evaluation failures to issue catalog entries.
func taskError(operation, name string, err error) error {
	ec := issue.NewErrorContext().
		WithOperation(operation).
		WithResource(name).
		Wrap(err)

	switch {
	case errors.Is(err, dag.ErrCycle):
		ec.WithSuggestion("Remove one of the depends_on entries in the printed cycle").
			WithIssue(issue.DependencyCycleId)
	case errors.Is(err, task.ErrUnknownTask):
		ec.WithSuggestion("Run 'buildorch tasks' to list registered tasks").
			WithIssue(issue.TaskNotFoundId)
	case errors.Is(err, eval.ErrTaskFailed):
		ec.WithSuggestion("Re-run with --verbose to see the error chain").
			WithIssue(issue.TaskFailedId)
	}
	return ec.BuildError()
}
