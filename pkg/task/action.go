// SPDX-License-Identifier: MPL-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrScriptFailed is the sentinel error wrapped by ScriptExitError.
var ErrScriptFailed = errors.New("script failed")

type (
	// Action performs the work of a task.
	Action interface {
		Run(ctx context.Context, exec *Execution) error
	}

	// ActionFunc adapts a function to Action.
	ActionFunc func(ctx context.Context, exec *Execution) error

	// Execution carries the per-run inputs handed to an action.
	Execution struct {
		Task   *Task
		Stdout io.Writer
		Stderr io.Writer
	}

	// ScriptAction runs a POSIX shell script in the embedded mvdan/sh interpreter.
	ScriptAction struct {
		Script string
		// Dir is the working directory; empty means the current directory.
		Dir string
		// Env is added on top of the process environment.
		Env map[string]string
	}

	// ScriptExitError reports a non-zero script exit status.
	ScriptExitError struct {
		Code int
	}

	// DeleteAction removes files and directories. Missing paths are ignored.
	DeleteAction struct {
		Paths []string
	}
)

// Run calls f.
func (f ActionFunc) Run(ctx context.Context, exec *Execution) error {
	return f(ctx, exec)
}

// Error implements the error interface for ScriptExitError.
func (e *ScriptExitError) Error() string {
	return fmt.Sprintf("script exited with status %d", e.Code)
}

// Unwrap returns ErrScriptFailed for errors.Is() compatibility.
func (e *ScriptExitError) Unwrap() error { return ErrScriptFailed }

// Validate parses the script without running it.
func (a *ScriptAction) Validate() error {
	if strings.TrimSpace(a.Script) == "" {
		return errors.New("script has no content to execute")
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(a.Script), "script"); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

// Run executes the script.
func (a *ScriptAction) Run(ctx context.Context, exec *Execution) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(a.Script), scriptName(exec))
	if err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}

	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(a.Env)) {
		env = append(env, k+"="+a.Env[k])
	}

	stdout, stderr := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if exec != nil && exec.Stdout != nil {
		stdout = exec.Stdout
	}
	if exec != nil && exec.Stderr != nil {
		stderr = exec.Stderr
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
	}
	if a.Dir != "" {
		opts = append(opts, interp.Dir(a.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &ScriptExitError{Code: int(exitStatus)}
		}
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

func scriptName(exec *Execution) string {
	if exec == nil || exec.Task == nil {
		return "script"
	}
	return exec.Task.Name
}

// Run removes every path.
func (a *DeleteAction) Run(ctx context.Context, _ *Execution) error {
	for _, p := range a.Paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == "" || p == "/" {
			return fmt.Errorf("refusing to delete %q", p)
		}
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
	}
	return nil
}
