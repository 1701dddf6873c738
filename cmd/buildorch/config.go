// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/buildorch/internal/config"
	"github.com/invowk/buildorch/internal/eval"
)

// newConfigCommand creates the `buildorch config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect effective and tool configuration",
		Long: `Inspect configuration.

'config show' prints the effective configuration of every project after
evaluation. 'config path' prints the buildorch config file in use, which is
looked up in:
  - Linux: ~/.config/buildorch/config.cue
  - macOS: ~/Library/Application Support/buildorch/config.cue
  - Windows: %APPDATA%\buildorch\config.cue
  - ./config.cue`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective project configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Reject a bad format before evaluating anything.
			if format != eval.FormatTOML && format != eval.FormatJSON {
				return fmt.Errorf("unsupported output format %q (want %s or %s)", format, eval.FormatTOML, eval.FormatJSON)
			}

			s, err := app.loadSession(cmd.Context())
			if err != nil {
				return err
			}
			effective, err := s.eval.Configure(cmd.Context())
			if err != nil {
				return taskError("configure projects", s.build.Descriptor.Path, err)
			}
			return effective.Encode(app.stdout, format)
		},
	}
	show.Flags().StringVar(&format, "format", eval.FormatTOML, "output format (toml or json)")
	cfgCmd.AddCommand(show)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, path, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if path == "" {
				dir, dirErr := config.ConfigDir()
				if dirErr != nil {
					return dirErr
				}
				want := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
				fmt.Fprintf(app.stdout, "%s %s\n", want, SubtitleStyle.Render("(not found, using defaults)"))
				return nil
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}
