// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/invowk/buildorch/internal/config"
	"github.com/invowk/buildorch/internal/dag"
	"github.com/invowk/buildorch/internal/eval"
	"github.com/invowk/buildorch/internal/issue"
	"github.com/invowk/buildorch/pkg/buildfile"
	"github.com/invowk/buildorch/pkg/project"
	"github.com/invowk/buildorch/pkg/properties"
)

// PropertyEnvPrefix marks environment variables that act as properties,
// e.g. BUILDORCH_PROP_app.minSdk=26. They take precedence over the file.
const PropertyEnvPrefix = "BUILDORCH_PROP_"

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and loads a session through it.
	App struct {
		Config  ConfigProvider
		stdout  io.Writer
		stderr  io.Writer
		environ []string
		workDir string

		flags       rootFlags
		verbose     bool
		colorScheme config.ColorScheme
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
		// Environ is the environment seen by property overrides and HCL
		// descriptors. Defaults to os.Environ().
		Environ []string
		// WorkDir is where descriptors are looked up. Defaults to the
		// process working directory.
		WorkDir string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	rootFlags struct {
		file       string
		configPath string
		verbose    bool
	}

	// session is everything one command invocation needs: the loaded
	// configuration, the materialized build and an evaluator over it.
	session struct {
		cfg   *config.Config
		build *buildfile.Build
		eval  *eval.Evaluator
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ()
	}

	return &App{
		Config:      deps.Config,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
		environ:     deps.Environ,
		workDir:     deps.WorkDir,
		colorScheme: config.ColorSchemeAuto,
	}
}

// loadConfig loads the tool configuration and applies its UI settings.
// The --verbose flag wins over ui.verbose.
func (a *App) loadConfig(ctx context.Context) (*config.Config, string, error) {
	a.verbose = a.flags.verbose
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return nil, "", err
	}
	a.verbose = a.flags.verbose || cfg.UI.Verbose
	a.colorScheme = cfg.UI.ColorScheme
	return cfg, path, nil
}

// loadSession loads configuration, descriptor and properties, and returns
// an evaluator ready to configure or run.
func (a *App) loadSession(ctx context.Context) (*session, error) {
	cfg, _, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	path, err := a.buildfilePath(cfg)
	if err != nil {
		return nil, err
	}

	desc, err := buildfile.Load(path, a.environ)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse build descriptor").
			WithResource(path).
			WithSuggestion("Check the field named in the message against the descriptor schema").
			WithIssue(issue.BuildfileParseErrorId).
			Wrap(err).
			BuildError()
	}

	b, err := desc.Build(cfg.BuildRoot)
	if err != nil {
		return nil, graphError(path, err)
	}

	propsPath := desc.PropertiesPath(cfg.PropertiesFile)
	fileProps, err := properties.Load(propsPath)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load properties").
			WithResource(propsPath).
			WithSuggestion("Fix the file or point properties_file at another one").
			WithIssue(issue.PropertiesLoadFailedId).
			Wrap(err).
			BuildError()
	}
	props := properties.Overlay(fileProps, properties.FromEnv(PropertyEnvPrefix, a.environ))

	ev, err := eval.New(b.Graph, b.Tasks,
		eval.WithLogger(a.newLogger(cfg)),
		eval.WithProperties(props),
		eval.WithOutput(a.stdout, a.stderr),
	)
	if err != nil {
		return nil, graphError(path, err)
	}
	return &session{cfg: cfg, build: b, eval: ev}, nil
}

// buildfilePath picks the descriptor: --file, then the configured path,
// then build.cue or build.hcl in the working directory.
func (a *App) buildfilePath(cfg *config.Config) (string, error) {
	explicit := a.flags.file
	if explicit == "" {
		explicit = cfg.Buildfile
	}

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("%w at %s", buildfile.ErrNoBuildfile, explicit)
			}
			return "", notFoundError(explicit, err)
		}
		return explicit, nil
	}

	dir := a.workDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	path, err := buildfile.Find(dir)
	if err != nil {
		return "", notFoundError(dir, err)
	}
	return path, nil
}

func (a *App) newLogger(cfg *config.Config) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel.String())
	if err != nil {
		level = log.InfoLevel
	}
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}

func notFoundError(where string, err error) error {
	return issue.NewErrorContext().
		WithOperation("find build descriptor").
		WithResource(where).
		WithSuggestion("Run buildorch from the root project directory").
		WithSuggestion("Pass the descriptor explicitly with --file").
		WithIssue(issue.BuildfileNotFoundId).
		Wrap(err).
		BuildError()
}

// graphError classifies a failure to materialize the descriptor.
func graphError(path string, err error) error {
	ec := issue.NewErrorContext().
		WithOperation("assemble project graph").
		WithResource(path).
		Wrap(err)
	if errors.Is(err, dag.ErrCycle) {
		return ec.
			WithSuggestion("Remove one edge of the printed cycle").
			WithIssue(issue.DependencyCycleId).
			BuildError()
	}
	if errors.Is(err, project.ErrBuildRootOverlapsSources) {
		return ec.
			WithSuggestion("Point build_root at a directory below or beside the root project, e.g. \"build\" or \"../build\"").
			WithIssue(issue.InvalidProjectGraphId).
			BuildError()
	}
	return ec.
		WithSuggestion("Check the project declaration named in the message").
		WithIssue(issue.InvalidProjectGraphId).
		BuildError()
}
