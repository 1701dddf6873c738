// SPDX-License-Identifier: MPL-2.0

package buildfile

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/invowk/buildorch/pkg/project"
	"github.com/invowk/buildorch/pkg/task"
)

// Environment variables exported to script tasks.
const (
	EnvProject    = "BUILDORCH_PROJECT"
	EnvProjectDir = "BUILDORCH_PROJECT_DIR"
	EnvBuildDir   = "BUILDORCH_BUILD_DIR"
)

var errExtensionWithoutPlugin = errors.New("block requires a plugin that provides it")

// Build is a descriptor materialized into a project graph and task registry.
type Build struct {
	Descriptor *Descriptor
	Graph      *project.Graph
	Tasks      *task.Registry
}

// Dir returns the directory holding the descriptor.
func (d *Descriptor) Dir() string {
	if d.Path == "" {
		return "."
	}
	return filepath.Dir(d.Path)
}

// PropertiesPath resolves the properties file against the descriptor
// directory. fallback is used when the descriptor does not name one.
func (d *Descriptor) PropertiesPath(fallback string) string {
	name := d.PropertiesFile
	if name == "" {
		name = fallback
	}
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir(), name)
}

// Build creates the project graph and task registry. defaultBuildRoot is used
// when the descriptor does not set build_root.
func (d *Descriptor) Build(defaultBuildRoot string) (*Build, error) {
	rootDir, err := filepath.Abs(d.Dir())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	buildRoot := d.BuildRoot
	if buildRoot == "" {
		buildRoot = defaultBuildRoot
	}

	g := project.NewGraph(project.Layout{RootDir: rootDir, BuildRoot: buildRoot})
	if err := g.Layout().Validate(); err != nil {
		return nil, d.declErr("build_root", err)
	}
	g.Root().Group = d.Group

	for i := range d.Projects {
		if err := d.addProject(g, i); err != nil {
			return nil, err
		}
	}

	for i, decl := range d.Projects {
		for _, dep := range decl.DependsOn {
			to, err := project.ParseID(dep)
			if err != nil {
				return nil, d.declErr(fmt.Sprintf("projects[%d].depends_on", i), err)
			}
			if err := g.AddDependency(project.ID(decl.ID), to); err != nil {
				return nil, d.declErr(fmt.Sprintf("projects[%d].depends_on", i), err)
			}
		}
	}

	if d.EvaluationDependsOn != "" {
		target, err := project.ParseID(d.EvaluationDependsOn)
		if err != nil {
			return nil, d.declErr("evaluation_depends_on", err)
		}
		if err := g.EvaluationDependsOn(target); err != nil {
			return nil, d.declErr("evaluation_depends_on", err)
		}
	}

	reg := task.NewRegistry()
	if err := d.registerTasks(reg, g.Root(), "tasks", d.Tasks); err != nil {
		return nil, err
	}
	for i, decl := range d.Projects {
		p, _ := g.Project(project.ID(decl.ID))
		if err := d.registerTasks(reg, p, fmt.Sprintf("projects[%d].tasks", i), decl.Tasks); err != nil {
			return nil, err
		}
	}

	return &Build{Descriptor: d, Graph: g, Tasks: reg}, nil
}

func (d *Descriptor) addProject(g *project.Graph, i int) error {
	decl := d.Projects[i]
	field := fmt.Sprintf("projects[%d]", i)

	id, err := project.ParseID(decl.ID)
	if err != nil {
		return d.declErr(field+".id", err)
	}
	// Normalize so later lookups by decl.ID hit the stored project.
	d.Projects[i].ID = string(id)

	var parent project.ID
	if decl.Parent != "" {
		if parent, err = project.ParseID(decl.Parent); err != nil {
			return d.declErr(field+".parent", err)
		}
	}

	p, err := g.AddProject(id, parent)
	if err != nil {
		return d.declErr(field, err)
	}
	if decl.Group != "" {
		p.Group = decl.Group
	}

	for _, plugin := range decl.Plugins {
		if err := p.ApplyPlugin(plugin); err != nil {
			return d.declErr(field+".plugins", err)
		}
	}

	if a := decl.Android; a != nil {
		ext := p.Android()
		if ext == nil {
			return d.declErr(field+".android", errExtensionWithoutPlugin)
		}
		*ext = project.AndroidExtension{
			Namespace:       a.Namespace,
			ApplicationID:   a.ApplicationID,
			CompileSDK:      a.CompileSDK,
			MinSDK:          a.MinSDK,
			TargetSDK:       a.TargetSDK,
			NDKVersion:      a.NDKVersion,
			VersionCode:     a.VersionCode,
			VersionName:     a.VersionName,
			MinifyEnabled:   a.MinifyEnabled,
			ShrinkResources: a.ShrinkResources,
			SigningConfig:   a.SigningConfig,
		}
	}
	if k := decl.Kotlin; k != nil {
		ext := p.Kotlin()
		if ext == nil {
			return d.declErr(field+".kotlin", errExtensionWithoutPlugin)
		}
		ext.JVMTarget = k.JVMTarget
	}

	for _, dep := range decl.Dependencies {
		p.Dependencies = append(p.Dependencies, project.Dependency(dep))
	}
	return nil
}

func (d *Descriptor) registerTasks(reg *task.Registry, p *project.Project, field string, decls []TaskDecl) error {
	for i, decl := range decls {
		t := task.Task{
			Name:        decl.Name,
			Project:     p.ID(),
			Description: decl.Description,
			Deps:        decl.DependsOn,
		}
		switch {
		case decl.Run != "":
			action := &task.ScriptAction{
				Script: decl.Run,
				Dir:    p.Dir,
				Env: map[string]string{
					EnvProject:    p.ID().String(),
					EnvProjectDir: p.Dir,
					EnvBuildDir:   p.BuildDir,
				},
			}
			if err := action.Validate(); err != nil {
				return d.declErr(fmt.Sprintf("%s[%d].run", field, i), err)
			}
			t.Action = action
		case len(decl.Delete) > 0:
			paths := make([]string, len(decl.Delete))
			for j, path := range decl.Delete {
				if !filepath.IsAbs(path) {
					path = filepath.Join(p.Dir, path)
				}
				paths[j] = path
			}
			t.Action = &task.DeleteAction{Paths: paths}
		}
		if err := reg.Register(t); err != nil {
			return d.declErr(fmt.Sprintf("%s[%d]", field, i), err)
		}
	}
	return nil
}

func (d *Descriptor) declErr(field string, err error) error {
	return &DeclError{Path: d.Path, Field: field, Err: err}
}
