// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/invowk/buildorch/internal/watch"
)

func newWatchCommand(app *App) *cobra.Command {
	var (
		include []string
		quiet   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [task]",
		Short: "Re-run a task whenever project files change",
		Long: `Run a task, then run it again each time files under the root project
change. The descriptor and key.properties are reloaded before every run, so
edits to them take effect immediately. The build root is never watched.

Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.loadSession(ctx)
			if err != nil {
				return err
			}
			name := taskName(s, args)
			root := s.build.Graph.Root()

			w, err := watch.New(watch.Options{
				Root:        root.Dir,
				Include:     include,
				Exclude:     buildRootExcludes(root.Dir, root.BuildDir),
				QuietPeriod: quiet,
				Logger:      app.newLogger(s.cfg).WithPrefix("watch"),
			})
			if err != nil {
				return err
			}

			app.reportRun(app.runTask(ctx, s, name))
			return w.Run(ctx, func(ctx context.Context, _ []string) error {
				s, err := app.loadSession(ctx)
				if err == nil {
					err = app.runTask(ctx, s, taskName(s, args))
				}
				app.reportRun(err)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&include, "include", nil, "glob patterns that trigger a run (default all files)")
	cmd.Flags().DurationVar(&quiet, "quiet-period", watch.DefaultQuietPeriod, "time without changes before a run starts")
	return cmd
}

// reportRun prints a failed run without ending the watch.
func (a *App) reportRun(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(a.stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, a.verbose))
}

// buildRootExcludes returns patterns covering buildDir when it lies inside
// root. Outputs written by a run must not trigger the next one.
func buildRootExcludes(root, buildDir string) []string {
	rel, err := filepath.Rel(root, buildDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	rel = filepath.ToSlash(rel)
	return []string{rel, rel + "/**"}
}
