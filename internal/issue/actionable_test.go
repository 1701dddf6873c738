// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load build descriptor"},
			expected: "failed to load build descriptor",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load build descriptor", Resource: "./build.cue"},
			expected: "failed to load build descriptor: ./build.cue",
		},
		{
			name:     "operation with cause",
			err:      &ActionableError{Operation: "run task", Cause: errors.New("script exited with status 1")},
			expected: "failed to run task: script exited with status 1",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "run task",
				Resource:  "assemble",
				Cause:     errors.New("unknown task"),
			},
			expected: "failed to run task: assemble: unknown task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIsAndAs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("dependency cycle detected")
	err := NewErrorContext().
		WithOperation("run task").
		Wrap(fmt.Errorf("resolve: %w", sentinel)).
		BuildError()

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should reach the wrapped sentinel")
	}
	var ae *ActionableError
	if !errors.As(err, &ae) || ae.Operation != "run task" {
		t.Errorf("errors.As failed: %v", err)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("permission denied")
	err := &ActionableError{
		Operation:   "delete build directory",
		Resource:    "../build",
		Suggestions: []string{"Check directory permissions", "Run as the owning user"},
		Cause:       fmt.Errorf("remove ../build: %w", root),
	}

	tests := []struct {
		name     string
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name:    "concise",
			verbose: false,
			contains: []string{
				"failed to delete build directory: ../build: remove ../build: permission denied",
				"\n\n  • Check directory permissions\n  • Run as the owning user",
			},
			excludes: []string{"Error chain"},
		},
		{
			name:    "verbose",
			verbose: true,
			contains: []string{
				"Error chain:",
				"1. remove ../build: permission denied",
				"2. permission denied",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := err.Format(tt.verbose)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Format(%v) missing %q:\n%s", tt.verbose, want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("Format(%v) should not contain %q", tt.verbose, unwanted)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("load configuration").
		WithResource("config.cue").
		WithSuggestion("Check CUE syntax").
		WithSuggestions("Remove the file", "Run 'buildorch config show'").
		WithIssue(ConfigLoadFailedId).
		Wrap(cause).
		Build()

	if ae == nil {
		t.Fatal("Build() returned nil")
	}
	if ae.Operation != "load configuration" || ae.Resource != "config.cue" || ae.Cause != cause {
		t.Errorf("unexpected fields: %+v", ae)
	}
	if len(ae.Suggestions) != 3 || !ae.HasSuggestions() {
		t.Errorf("suggestions = %v", ae.Suggestions)
	}
	if ae.Issue != ConfigLoadFailedId {
		t.Errorf("issue = %d", ae.Issue)
	}
}

func TestErrorContext_NoOperation(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithResource("x")
	if ctx.Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if err := ctx.BuildError(); err != nil {
		t.Errorf("BuildError() without operation should be untyped nil, got %#v", err)
	}
}

func TestWrapWithOperation(t *testing.T) {
	t.Parallel()

	if WrapWithOperation(nil, "run task") != nil {
		t.Error("nil error should stay nil")
	}
	cause := errors.New("boom")
	ae := WrapWithOperation(cause, "run task")
	if ae.Operation != "run task" || !errors.Is(ae, cause) || ae.HasSuggestions() {
		t.Errorf("unexpected: %+v", ae)
	}
}
