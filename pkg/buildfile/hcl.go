// SPDX-License-Identifier: MPL-2.0

package buildfile

import (
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
)

type (
	hclBuild struct {
		Name                string       `hcl:"name,optional"`
		Group               string       `hcl:"group,optional"`
		BuildRoot           string       `hcl:"build_root,optional"`
		PropertiesFile      string       `hcl:"properties_file,optional"`
		EvaluationDependsOn string       `hcl:"evaluation_depends_on,optional"`
		Projects            []hclProject `hcl:"project,block"`
		Tasks               []hclTask    `hcl:"task,block"`
	}

	hclProject struct {
		ID           string          `hcl:"id,label"`
		Parent       string          `hcl:"parent,optional"`
		Group        string          `hcl:"group,optional"`
		DependsOn    []string        `hcl:"depends_on,optional"`
		Plugins      []string        `hcl:"plugins,optional"`
		Android      *hclAndroid     `hcl:"android,block"`
		Kotlin       *hclKotlin      `hcl:"kotlin,block"`
		Dependencies []hclDependency `hcl:"dependency,block"`
		Tasks        []hclTask       `hcl:"task,block"`
	}

	hclAndroid struct {
		Namespace       string `hcl:"namespace,optional"`
		ApplicationID   string `hcl:"application_id,optional"`
		CompileSDK      int    `hcl:"compile_sdk,optional"`
		MinSDK          int    `hcl:"min_sdk,optional"`
		TargetSDK       int    `hcl:"target_sdk,optional"`
		NDKVersion      string `hcl:"ndk_version,optional"`
		VersionCode     int    `hcl:"version_code,optional"`
		VersionName     string `hcl:"version_name,optional"`
		MinifyEnabled   bool   `hcl:"minify_enabled,optional"`
		ShrinkResources bool   `hcl:"shrink_resources,optional"`
		SigningConfig   string `hcl:"signing_config,optional"`
	}

	hclKotlin struct {
		JVMTarget string `hcl:"jvm_target,optional"`
	}

	hclDependency struct {
		Configuration string `hcl:"configuration,label"`
		Notation      string `hcl:"notation,label"`
	}

	hclTask struct {
		Name        string   `hcl:"name,label"`
		Description string   `hcl:"description,optional"`
		DependsOn   []string `hcl:"depends_on,optional"`
		Run         string   `hcl:"run,optional"`
		Delete      []string `hcl:"delete,optional"`
	}
)

// ParseHCL decodes a build.hcl descriptor. environ ("KEY=value" entries) is
// exposed to expressions as the env map.
func ParseHCL(data []byte, path string, environ []string) (*Descriptor, error) {
	// hclsimple picks the syntax from the file suffix.
	filename := path
	if !strings.EqualFold(filepath.Ext(path), ".hcl") {
		filename = path + ".hcl"
	}

	var raw hclBuild
	if err := hclsimple.Decode(filename, data, envContext(environ), &raw); err != nil {
		return nil, err
	}

	d := &Descriptor{
		Name:                raw.Name,
		Group:               raw.Group,
		BuildRoot:           raw.BuildRoot,
		PropertiesFile:      raw.PropertiesFile,
		EvaluationDependsOn: raw.EvaluationDependsOn,
		Tasks:               convertTasks(raw.Tasks),
		Path:                path,
	}
	for _, p := range raw.Projects {
		decl := ProjectDecl{
			ID:        p.ID,
			Parent:    p.Parent,
			Group:     p.Group,
			DependsOn: p.DependsOn,
			Plugins:   p.Plugins,
			Tasks:     convertTasks(p.Tasks),
		}
		if p.Android != nil {
			a := AndroidDecl(*p.Android)
			decl.Android = &a
		}
		if p.Kotlin != nil {
			decl.Kotlin = &KotlinDecl{JVMTarget: p.Kotlin.JVMTarget}
		}
		for _, dep := range p.Dependencies {
			decl.Dependencies = append(decl.Dependencies, DependencyDecl(dep))
		}
		d.Projects = append(d.Projects, decl)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func convertTasks(in []hclTask) []TaskDecl {
	var out []TaskDecl
	for _, t := range in {
		out = append(out, TaskDecl(t))
	}
	return out
}

func envContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	env := cty.MapValEmpty(cty.String)
	if len(vars) > 0 {
		env = cty.MapVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}
