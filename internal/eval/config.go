// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"

	"github.com/invowk/buildorch/pkg/project"
)

// Supported EffectiveConfig encodings.
const (
	FormatTOML = "toml"
	FormatJSON = "json"
)

type (
	// EffectiveConfig is the configuration of every project after
	// evaluation, in evaluation order.
	EffectiveConfig struct {
		Projects []ProjectConfig `json:"projects" toml:"projects"`
	}

	// ProjectConfig is the evaluated configuration of one project. Android
	// fields are empty for projects without the android extension.
	ProjectConfig struct {
		ID            string                     `json:"id" toml:"id"`
		Group         string                     `json:"group,omitempty" toml:"group,omitempty"`
		Dir           string                     `json:"dir" toml:"dir"`
		BuildDir      string                     `json:"build_dir" toml:"build_dir"`
		Plugins       []string                   `json:"plugins,omitempty" toml:"plugins,omitempty"`
		Namespace     string                     `json:"namespace,omitempty" toml:"namespace,omitempty"`
		ApplicationID string                     `json:"application_id,omitempty" toml:"application_id,omitempty"`
		CompileSDK    int                        `json:"compile_sdk,omitempty" toml:"compile_sdk,omitempty"`
		MinSDK        int                        `json:"min_sdk,omitempty" toml:"min_sdk,omitempty"`
		TargetSDK     int                        `json:"target_sdk,omitempty" toml:"target_sdk,omitempty"`
		NDKVersion    string                     `json:"ndk_version,omitempty" toml:"ndk_version,omitempty"`
		VersionCode   int                        `json:"version_code,omitempty" toml:"version_code,omitempty"`
		VersionName   string                     `json:"version_name,omitempty" toml:"version_name,omitempty"`
		JVMTarget     string                     `json:"jvm_target,omitempty" toml:"jvm_target,omitempty"`
		Dependencies  []project.Dependency       `json:"dependencies,omitempty" toml:"dependencies,omitempty"`
		Signing       *project.SigningDescriptor `json:"signing,omitempty" toml:"signing,omitempty"`
	}
)

// Project returns the configuration for id.
func (c *EffectiveConfig) Project(id project.ID) (ProjectConfig, bool) {
	for _, p := range c.Projects {
		if p.ID == string(id) {
			return p, true
		}
	}
	return ProjectConfig{}, false
}

// Encode writes the configuration as TOML or JSON.
func (c *EffectiveConfig) Encode(w io.Writer, format string) error {
	switch format {
	case FormatTOML, "":
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		return enc.Encode(c)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	default:
		return fmt.Errorf("unsupported output format %q (want %s or %s)", format, FormatTOML, FormatJSON)
	}
}

func (e *Evaluator) snapshot(p *project.Project) ProjectConfig {
	pc := ProjectConfig{
		ID:           p.ID().String(),
		Group:        p.Group,
		Dir:          p.Dir,
		BuildDir:     p.BuildDir,
		Plugins:      p.Plugins(),
		Dependencies: append([]project.Dependency(nil), p.Dependencies...),
	}
	if a := p.Android(); a != nil {
		pc.Namespace = a.Namespace
		pc.ApplicationID = a.ApplicationID
		pc.CompileSDK = a.CompileSDK
		pc.MinSDK = a.MinSDK
		pc.TargetSDK = a.TargetSDK
		pc.NDKVersion = a.NDKVersion
		pc.VersionCode = a.VersionCode
		pc.VersionName = a.VersionName
		pc.Signing = e.signing(p)
	}
	if k := p.Kotlin(); k != nil {
		pc.JVMTarget = k.JVMTarget
	}
	return pc
}
