// SPDX-License-Identifier: MPL-2.0

// Package buildfile parses build descriptors and turns them into a project
// graph and task registry.
//
// Two formats are accepted and decode to the same Descriptor:
//
//   - build.cue, validated against an embedded CUE schema
//   - build.hcl, decoded with HCL; expressions may read environment
//     variables through the env object (env.GROUP)
package buildfile

import (
	"errors"
	"fmt"
)

const (
	// CUEFileName is the CUE descriptor file name.
	CUEFileName = "build.cue"
	// HCLFileName is the HCL descriptor file name.
	HCLFileName = "build.hcl"
)

// ErrNoBuildfile is returned by Find when no descriptor exists.
var ErrNoBuildfile = errors.New("no build descriptor found")

type (
	// Descriptor is the format-independent build description.
	Descriptor struct {
		Name      string `json:"name,omitempty"`
		Group     string `json:"group,omitempty"`
		BuildRoot string `json:"build_root,omitempty"`
		// PropertiesFile is relative to the descriptor directory.
		PropertiesFile string `json:"properties_file,omitempty"`
		// EvaluationDependsOn makes every subproject evaluate after this project.
		EvaluationDependsOn string        `json:"evaluation_depends_on,omitempty"`
		Projects            []ProjectDecl `json:"projects,omitempty"`
		// Tasks belong to the root project.
		Tasks []TaskDecl `json:"tasks,omitempty"`

		// Path is the file the descriptor was loaded from.
		Path string `json:"-"`
	}

	// ProjectDecl declares one subproject.
	ProjectDecl struct {
		ID           string           `json:"id"`
		Parent       string           `json:"parent,omitempty"`
		Group        string           `json:"group,omitempty"`
		DependsOn    []string         `json:"depends_on,omitempty"`
		Plugins      []string         `json:"plugins,omitempty"`
		Android      *AndroidDecl     `json:"android,omitempty"`
		Kotlin       *KotlinDecl      `json:"kotlin,omitempty"`
		Dependencies []DependencyDecl `json:"dependencies,omitempty"`
		Tasks        []TaskDecl       `json:"tasks,omitempty"`
	}

	// AndroidDecl is the android {} block.
	AndroidDecl struct {
		Namespace       string `json:"namespace,omitempty"`
		ApplicationID   string `json:"application_id,omitempty"`
		CompileSDK      int    `json:"compile_sdk,omitempty"`
		MinSDK          int    `json:"min_sdk,omitempty"`
		TargetSDK       int    `json:"target_sdk,omitempty"`
		NDKVersion      string `json:"ndk_version,omitempty"`
		VersionCode     int    `json:"version_code,omitempty"`
		VersionName     string `json:"version_name,omitempty"`
		MinifyEnabled   bool   `json:"minify_enabled,omitempty"`
		ShrinkResources bool   `json:"shrink_resources,omitempty"`
		SigningConfig   string `json:"signing_config,omitempty"`
	}

	// KotlinDecl is the kotlinOptions {} block.
	KotlinDecl struct {
		JVMTarget string `json:"jvm_target,omitempty"`
	}

	// DependencyDecl is one dependencies {} entry.
	DependencyDecl struct {
		Configuration string `json:"configuration"`
		Notation      string `json:"notation"`
	}

	// TaskDecl declares a task. At most one of Run and Delete may be set;
	// a task with neither only aggregates its dependencies.
	TaskDecl struct {
		Name        string   `json:"name"`
		Description string   `json:"description,omitempty"`
		DependsOn   []string `json:"depends_on,omitempty"`
		Run         string   `json:"run,omitempty"`
		Delete      []string `json:"delete,omitempty"`
	}

	// DeclError reports an invalid declaration in a descriptor.
	DeclError struct {
		Path  string
		Field string
		Err   error
	}
)

// Error implements the error interface for DeclError.
func (e *DeclError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeclError) Unwrap() error { return e.Err }
