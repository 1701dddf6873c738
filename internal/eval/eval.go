// SPDX-License-Identifier: MPL-2.0

// Package eval evaluates a project graph: it orders projects by their
// evaluation dependencies, patches optional capabilities, applies explicit
// settings from a property set, and runs a task with its dependency closure.
package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/invowk/buildorch/pkg/project"
	"github.com/invowk/buildorch/pkg/properties"
	"github.com/invowk/buildorch/pkg/task"
)

// CleanTask is the name of the built-in task that deletes the build root.
const CleanTask = "clean"

// Property keys read by the evaluator. Settings may be scoped to one project
// by prefixing the project name or path, e.g. "app.minSdk" or
// "feature:login.minSdk".
const (
	KeyNamespace     = "namespace"
	KeyCompileSDK    = "compileSdk"
	KeyMinSDK        = "minSdk"
	KeyTargetSDK     = "targetSdk"
	KeyKeyAlias      = "keyAlias"
	KeyKeyPassword   = "keyPassword"
	KeyStoreFile     = "storeFile"
	KeyStorePassword = "storePassword"
)

var (
	// ErrBusy is returned when an evaluation is already in progress.
	ErrBusy = errors.New("evaluation already in progress")
	// ErrCapabilityPatch is the sentinel error wrapped by CapabilityPatchError.
	ErrCapabilityPatch = errors.New("capability patch failed")
	// ErrTaskFailed is the sentinel error wrapped by TaskExecutionError.
	ErrTaskFailed = errors.New("task failed")
)

type (
	// CapabilityPatchError reports a failed best-effort patch. It is logged,
	// never returned from Run or Configure.
	CapabilityPatchError struct {
		Project project.ID
		Err     error
	}

	// TaskExecutionError reports the task that failed and the tasks that had
	// already completed. Completed work is not rolled back.
	TaskExecutionError struct {
		Task      *task.Task
		Completed []string
		Err       error
	}

	// Option configures an Evaluator.
	Option func(*Evaluator)

	// Evaluator owns a project graph and task registry for the duration of
	// an evaluation. Calls are serialized; a concurrent call gets ErrBusy.
	Evaluator struct {
		graph  *project.Graph
		tasks  *task.Registry
		props  *properties.Set
		logger *log.Logger
		stdout io.Writer
		stderr io.Writer

		busy atomic.Bool
	}
)

// Error implements the error interface for CapabilityPatchError.
func (e *CapabilityPatchError) Error() string {
	return fmt.Sprintf("namespace patch for project %s: %v", e.Project, e.Err)
}

// Unwrap returns the underlying error.
func (e *CapabilityPatchError) Unwrap() []error { return []error{ErrCapabilityPatch, e.Err} }

// Error implements the error interface for TaskExecutionError.
func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskExecutionError) Unwrap() []error { return []error{ErrTaskFailed, e.Err} }

// WithLogger sets the logger. Defaults to a logger on stderr.
func WithLogger(logger *log.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithProperties sets the explicit settings source. Defaults to an empty set.
func WithProperties(props *properties.Set) Option {
	return func(e *Evaluator) { e.props = props }
}

// WithOutput sets the writers handed to task actions.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Evaluator) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// New creates an Evaluator. A root clean task deleting the build root is
// registered unless tasks already has one. A build root that would take the
// project sources with it is rejected.
func New(graph *project.Graph, tasks *task.Registry, opts ...Option) (*Evaluator, error) {
	if err := graph.Layout().Validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{
		graph:  graph,
		tasks:  tasks,
		props:  properties.Empty(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "eval"})
	}
	if e.props == nil {
		e.props = properties.Empty()
	}

	if !tasks.Has(CleanTask) {
		err := tasks.Register(task.Task{
			Name:        CleanTask,
			Project:     project.RootID,
			Description: "Deletes the build directory.",
			Action:      &task.DeleteAction{Paths: []string{graph.Root().BuildDir}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register %s task: %w", CleanTask, err)
		}
	}
	return e, nil
}

// Configure orders and configures every project without running tasks.
// Calling it repeatedly yields the same result.
func (e *Evaluator) Configure(ctx context.Context) (*EffectiveConfig, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	return e.configure(ctx)
}

// Plan resolves name into its execution order without running anything.
func (e *Evaluator) Plan(name string) ([]*task.Task, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	return e.tasks.Resolve(name)
}

// Run configures every project and then executes name after its
// dependencies. Project and task cycles are reported before any task runs.
// The first failing task stops the run with a *TaskExecutionError.
func (e *Evaluator) Run(ctx context.Context, name string) error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.busy.Store(false)

	if _, err := e.configure(ctx); err != nil {
		return err
	}

	plan, err := e.tasks.Resolve(name)
	if err != nil {
		return err
	}
	return e.execute(ctx, plan)
}

func (e *Evaluator) configure(ctx context.Context) (*EffectiveConfig, error) {
	order, err := e.graph.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("failed to order projects: %w", err)
	}

	cfg := &EffectiveConfig{}
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, _ := e.graph.Project(id)

		if err := e.patchNamespace(p); err != nil {
			e.logger.Warn("Namespace patch skipped", "project", id, "error", err)
		}
		e.applyOverrides(p)
		cfg.Projects = append(cfg.Projects, e.snapshot(p))
	}
	return cfg, nil
}

// patchNamespace sets an unset namespace to the project group. Any failure,
// including a panic inside the capability, is returned as a
// *CapabilityPatchError.
func (e *Evaluator) patchNamespace(p *project.Project) (err error) {
	ext, ok := p.Extension(project.ExtensionAndroid)
	if !ok {
		e.logger.Debug("No android extension, skipping namespace patch", "project", p.ID())
		return nil
	}
	capability, ok := ext.(project.OptionalNamespace)
	if !ok {
		e.logger.Debug("Android extension has no namespace capability", "project", p.ID())
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &CapabilityPatchError{Project: p.ID(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	_, set, err := capability.TryGetNamespace()
	if err != nil {
		return &CapabilityPatchError{Project: p.ID(), Err: err}
	}
	if set {
		return nil
	}
	if err := capability.TrySetNamespace(p.Group); err != nil {
		return &CapabilityPatchError{Project: p.ID(), Err: err}
	}
	e.logger.Debug("Namespace set from group", "project", p.ID(), "namespace", p.Group)
	return nil
}

// lookup returns the most specific value of key for p: the full project
// path ("feature:login.minSdk"), then the project name ("login.minSdk"),
// then the global key. Colons in property files are written as "\:".
func (e *Evaluator) lookup(p *project.Project, key string) (string, bool) {
	segments := p.ID().Segments()
	if len(segments) > 1 {
		if v, ok := e.props.Get(strings.Join(segments, ":") + "." + key); ok {
			return v, true
		}
	}
	if name := p.ID().Name(); name != "" {
		if v, ok := e.props.Get(name + "." + key); ok {
			return v, true
		}
	}
	return e.props.Get(key)
}

func (e *Evaluator) applyOverrides(p *project.Project) {
	a := p.Android()
	if a == nil {
		return
	}

	if v, ok := e.lookup(p, KeyNamespace); ok {
		if err := a.TrySetNamespace(v); err != nil {
			e.logger.Warn("Ignoring namespace setting", "project", p.ID(), "error", err)
		}
	}
	e.overrideInt(p, KeyCompileSDK, &a.CompileSDK)
	e.overrideInt(p, KeyMinSDK, &a.MinSDK)
	e.overrideInt(p, KeyTargetSDK, &a.TargetSDK)
}

func (e *Evaluator) overrideInt(p *project.Project, key string, dst *int) {
	v, ok := e.lookup(p, key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		e.logger.Warn("Ignoring invalid setting", "project", p.ID(), "key", key, "value", v, "keeping", *dst)
		return
	}
	*dst = n
}

// signing reads the signing descriptor from the property set, with the same
// project scoping as the other settings. A relative store file is resolved
// against the project directory.
func (e *Evaluator) signing(p *project.Project) *project.SigningDescriptor {
	get := func(key string) *string {
		if v, ok := e.lookup(p, key); ok {
			return &v
		}
		return nil
	}

	s := &project.SigningDescriptor{
		KeyAlias:      get(KeyKeyAlias),
		KeyPassword:   get(KeyKeyPassword),
		StoreFile:     get(KeyStoreFile),
		StorePassword: get(KeyStorePassword),
	}
	if s.StoreFile != nil && *s.StoreFile != "" && !filepath.IsAbs(*s.StoreFile) {
		resolved := filepath.Join(p.Dir, *s.StoreFile)
		s.StoreFile = &resolved
	}
	if !s.IsAbsent() && !s.IsComplete() {
		e.logger.Warn("Signing configuration is incomplete", "project", p.ID(), "source", e.props.Source())
	}
	return s
}

func (e *Evaluator) execute(ctx context.Context, plan []*task.Task) error {
	completed := make([]string, 0, len(plan))
	for _, t := range plan {
		if err := ctx.Err(); err != nil {
			return &TaskExecutionError{Task: t, Completed: completed, Err: err}
		}
		if t.Action == nil {
			e.logger.Debug("Task has no action", "task", t.String())
			completed = append(completed, t.Name)
			continue
		}

		e.logger.Info("Running task", "task", t.String())
		if err := t.Action.Run(ctx, &task.Execution{Task: t, Stdout: e.stdout, Stderr: e.stderr}); err != nil {
			return &TaskExecutionError{Task: t, Completed: completed, Err: err}
		}
		completed = append(completed, t.Name)
	}
	return nil
}
