// SPDX-License-Identifier: MPL-2.0

// Package task holds named units of work and resolves them into an ordered
// execution plan.
package task

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/invowk/buildorch/internal/dag"
	"github.com/invowk/buildorch/pkg/project"
)

var (
	// ErrUnknownTask is the sentinel error wrapped by UnknownTaskError.
	ErrUnknownTask = errors.New("unknown task")
	// ErrDuplicateTask is the sentinel error wrapped by DuplicateTaskError.
	ErrDuplicateTask = errors.New("duplicate task")
	// ErrInvalidTask is returned when a task has no name.
	ErrInvalidTask = errors.New("task name must not be empty")
)

type (
	// Task is a named, dependency-ordered unit of work.
	Task struct {
		// Name is unique within a Registry.
		Name string
		// Project owns the task.
		Project project.ID
		// Description is shown in task listings.
		Description string
		// Action does the work; nil marks an aggregate task that only pulls in deps.
		Action Action
		// Deps are the names of tasks that must run first, in declaration order.
		Deps []string
	}

	// UnknownTaskError is returned when a task name cannot be found.
	UnknownTaskError struct {
		Name string
		// RequiredBy names the task that declared the missing dependency, if any.
		RequiredBy string
	}

	// DuplicateTaskError is returned when registering a name twice.
	DuplicateTaskError struct {
		Name string
	}

	// OverrideOption customises Override.
	OverrideOption func(*overrideOptions)

	overrideOptions struct {
		deps    []string
		setDeps bool
	}

	// Registry maps task names to tasks. It is not safe for concurrent use.
	Registry struct {
		tasks map[string]*Task
		order []string
	}
)

// String renders the task as name(project), e.g. "compile(core)".
func (t *Task) String() string {
	owner := t.Project.Name()
	if owner == "" {
		owner = string(project.RootID)
	}
	return fmt.Sprintf("%s(%s)", t.Name, owner)
}

// Error implements the error interface for UnknownTaskError.
func (e *UnknownTaskError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("task %q not found (required by %q)", e.Name, e.RequiredBy)
	}
	return fmt.Sprintf("task %q not found", e.Name)
}

// Unwrap returns ErrUnknownTask for errors.Is() compatibility.
func (e *UnknownTaskError) Unwrap() error { return ErrUnknownTask }

// Error implements the error interface for DuplicateTaskError.
func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", e.Name)
}

// Unwrap returns ErrDuplicateTask for errors.Is() compatibility.
func (e *DuplicateTaskError) Unwrap() error { return ErrDuplicateTask }

// WithDeps replaces the task's dependencies during Override.
// Passing no names clears them.
func WithDeps(deps ...string) OverrideOption {
	return func(o *overrideOptions) {
		o.deps = deps
		o.setDeps = true
	}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a task. Dependencies may name tasks registered later.
func (r *Registry) Register(t Task) error {
	if t.Name == "" {
		return ErrInvalidTask
	}
	if _, exists := r.tasks[t.Name]; exists {
		return &DuplicateTaskError{Name: t.Name}
	}
	t.Deps = slices.Clone(t.Deps)
	r.tasks[t.Name] = &t
	r.order = append(r.order, t.Name)
	return nil
}

// Override replaces the action of an existing task. Dependencies are kept
// unless WithDeps is given.
func (r *Registry) Override(name string, action Action, opts ...OverrideOption) error {
	t, ok := r.tasks[name]
	if !ok {
		return &UnknownTaskError{Name: name}
	}
	var o overrideOptions
	for _, opt := range opts {
		opt(&o)
	}
	t.Action = action
	if o.setDeps {
		t.Deps = slices.Clone(o.deps)
	}
	return nil
}

// Get returns the task registered under name.
func (r *Registry) Get(name string) (*Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tasks[name]
	return ok
}

// Names returns all task names sorted alphabetically.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.tasks))
}

// Tasks returns all tasks in registration order.
func (r *Registry) Tasks() []*Task {
	out := make([]*Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

// Resolve returns the transitive closure of name in execution order:
// every task follows all of its dependencies, and dependencies run in the
// order they were declared. It fails with *UnknownTaskError for missing
// tasks and *dag.CycleError for circular dependencies.
func (r *Registry) Resolve(name string) ([]*Task, error) {
	root, ok := r.tasks[name]
	if !ok {
		return nil, &UnknownTaskError{Name: name}
	}

	// Nodes are inserted in depth-first post-order, which the insertion-order
	// tie-break of the topological sort reproduces for acyclic input.
	g := dag.New()
	visited := map[string]bool{}
	var visit func(t *Task) error
	visit = func(t *Task) error {
		if visited[t.Name] {
			return nil
		}
		visited[t.Name] = true
		for _, depName := range t.Deps {
			dep, ok := r.tasks[depName]
			if !ok {
				return &UnknownTaskError{Name: depName, RequiredBy: t.Name}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		g.AddNode(t.Name)
		for _, depName := range t.Deps {
			g.AddEdge(depName, t.Name)
		}
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("resolve task %q: %w", name, err)
	}
	plan := make([]*Task, len(order))
	for i, n := range order {
		plan[i] = r.tasks[n]
	}
	return plan, nil
}
