// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// RootID identifies the root project.
	RootID ID = ":"

	// ExtensionAndroid is the extension attached by the Android plugins.
	ExtensionAndroid = "android"
	// ExtensionKotlin is the extension attached by the Kotlin Android plugin.
	ExtensionKotlin = "kotlin"

	// PluginAndroidApplication builds an installable application.
	PluginAndroidApplication = "com.android.application"
	// PluginAndroidLibrary builds a library module.
	PluginAndroidLibrary = "com.android.library"
	// PluginKotlinAndroid enables Kotlin sources.
	PluginKotlinAndroid = "kotlin-android"
	// PluginFlutter wires the Flutter toolchain and must follow an Android plugin.
	PluginFlutter = "dev.flutter.flutter-gradle-plugin"
)

var (
	// ErrInvalidID is the sentinel error wrapped by InvalidIDError.
	ErrInvalidID = errors.New("invalid project id")
	// ErrDuplicateProject is the sentinel error wrapped by DuplicateProjectError.
	ErrDuplicateProject = errors.New("duplicate project")
	// ErrUnknownProject is the sentinel error wrapped by UnknownProjectError.
	ErrUnknownProject = errors.New("unknown project")
	// ErrPluginOrder is the sentinel error wrapped by PluginOrderError.
	ErrPluginOrder = errors.New("plugin applied out of order")
	// ErrEmptyNamespace is returned when a namespace is set to an empty value.
	ErrEmptyNamespace = errors.New("namespace must not be empty")
	// ErrBuildRootOverlapsSources is returned when the build root is the root
	// project directory or one of its ancestors.
	ErrBuildRootOverlapsSources = errors.New("build root contains the root project directory")
)

type (
	// ID is a colon-separated project path such as ":app" or ":feature:login".
	ID string

	// InvalidIDError is returned when an ID is malformed.
	InvalidIDError struct {
		Value ID
	}

	// DuplicateProjectError is returned when a project id is added twice.
	DuplicateProjectError struct {
		ID ID
	}

	// UnknownProjectError is returned when an operation references a project
	// that was never added.
	UnknownProjectError struct {
		ID ID
	}

	// PluginOrderError is returned when a plugin requires another plugin that
	// has not been applied yet.
	PluginOrderError struct {
		Plugin   string
		Requires []string
	}

	// Dependency is an external artifact declared by a project, for example
	// ("coreLibraryDesugaring", "com.android.tools:desugar_jdk_libs:2.1.4").
	Dependency struct {
		Configuration string `json:"configuration" toml:"configuration"`
		Notation      string `json:"notation" toml:"notation"`
	}
)

// String returns the string representation of the ID.
func (id ID) String() string { return string(id) }

// IsValid returns whether the ID is a well-formed project path: it must start
// with ':' and, apart from the root, contain no empty or blank segments.
func (id ID) IsValid() (bool, []error) {
	if id == RootID {
		return true, nil
	}
	s := string(id)
	if !strings.HasPrefix(s, ":") || strings.HasSuffix(s, ":") {
		return false, []error{&InvalidIDError{Value: id}}
	}
	for _, seg := range strings.Split(s[1:], ":") {
		if strings.TrimSpace(seg) == "" || strings.ContainsAny(seg, `/\ `) {
			return false, []error{&InvalidIDError{Value: id}}
		}
	}
	return true, nil
}

// Name returns the last path segment; the root's name is empty.
func (id ID) Name() string {
	s := string(id)
	return s[strings.LastIndex(s, ":")+1:]
}

// Segments returns the path segments without the leading root.
func (id ID) Segments() []string {
	if id == RootID || id == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(string(id), ":"), ":")
}

// ParseID normalises a user-supplied project reference. "app" and ":app" both
// yield ":app"; "" and ":" yield the root.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == ":" {
		return RootID, nil
	}
	if !strings.HasPrefix(s, ":") {
		s = ":" + s
	}
	id := ID(s)
	if ok, errs := id.IsValid(); !ok {
		return "", errs[0]
	}
	return id, nil
}

// Error implements the error interface for InvalidIDError.
func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid project id %q (expected a path like \":app\")", e.Value)
}

// Unwrap returns ErrInvalidID for errors.Is() compatibility.
func (e *InvalidIDError) Unwrap() error { return ErrInvalidID }

// Error implements the error interface for DuplicateProjectError.
func (e *DuplicateProjectError) Error() string {
	return fmt.Sprintf("project %s already exists", e.ID)
}

// Unwrap returns ErrDuplicateProject for errors.Is() compatibility.
func (e *DuplicateProjectError) Unwrap() error { return ErrDuplicateProject }

// Error implements the error interface for UnknownProjectError.
func (e *UnknownProjectError) Error() string {
	return fmt.Sprintf("project %s not found", e.ID)
}

// Unwrap returns ErrUnknownProject for errors.Is() compatibility.
func (e *UnknownProjectError) Unwrap() error { return ErrUnknownProject }

// Error implements the error interface for PluginOrderError.
func (e *PluginOrderError) Error() string {
	return fmt.Sprintf("plugin %s must be applied after one of: %s", e.Plugin, strings.Join(e.Requires, ", "))
}

// Unwrap returns ErrPluginOrder for errors.Is() compatibility.
func (e *PluginOrderError) Unwrap() error { return ErrPluginOrder }
