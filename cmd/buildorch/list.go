// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/buildorch/internal/eval"
)

func newTasksCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List registered tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.loadSession(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("Tasks"))
			for _, t := range s.build.Tasks.Tasks() {
				line := "  " + CmdStyle.Render(t.Name) + " " + LabelStyle.Render("("+t.Project.String()+")")
				if t.Description != "" {
					line += " " + SubtitleStyle.Render(t.Description)
				}
				fmt.Fprintln(app.stdout, line)
				if len(t.Deps) > 0 {
					fmt.Fprintf(app.stdout, "    %s %s\n", LabelStyle.Render("depends on:"), strings.Join(t.Deps, ", "))
				}
			}
			return nil
		},
	}
}

func newProjectsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects in evaluation order",
		Long: `List projects in evaluation order with their configured values.

Projects are evaluated (namespace patch and key.properties overrides) but no
task runs. Use 'buildorch config show' for the full machine-readable form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.loadSession(cmd.Context())
			if err != nil {
				return err
			}
			effective, err := s.eval.Configure(cmd.Context())
			if err != nil {
				return taskError("configure projects", s.build.Descriptor.Path, err)
			}

			for _, pc := range effective.Projects {
				printProject(app.stdout, pc)
			}
			return nil
		},
	}
}

func printProject(w io.Writer, pc eval.ProjectConfig) {
	fmt.Fprintln(w, TitleStyle.Render(pc.ID))
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}
	field("dir", pc.Dir)
	field("build dir", pc.BuildDir)
	field("group", pc.Group)
	field("plugins", strings.Join(pc.Plugins, ", "))
	field("namespace", pc.Namespace)
	if pc.CompileSDK > 0 {
		field("compileSdk", strconv.Itoa(pc.CompileSDK))
	}
	if pc.MinSDK > 0 {
		field("minSdk", strconv.Itoa(pc.MinSDK))
	}
	if pc.TargetSDK > 0 {
		field("targetSdk", strconv.Itoa(pc.TargetSDK))
	}
	if pc.Signing != nil {
		status := WarningStyle.Render("absent")
		switch {
		case pc.Signing.IsComplete():
			status = SuccessStyle.Render("complete")
		case !pc.Signing.IsAbsent():
			status = WarningStyle.Render("incomplete")
		}
		field("signing", status)
	}
}
