// SPDX-License-Identifier: MPL-2.0

package buildfile

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/buildorch/pkg/cueutil"
)

//go:embed build_schema.cue
var buildSchema []byte

// Find returns the descriptor in dir, preferring build.cue over build.hcl.
func Find(dir string) (string, error) {
	for _, name := range []string{CUEFileName, HCLFileName} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s, %s)", ErrNoBuildfile, dir, CUEFileName, HCLFileName)
}

// Load reads a descriptor, choosing the format from the file extension.
// environ is exposed to HCL descriptors as the env object.
func Load(path string, environ []string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read build descriptor at %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(data, path)
	case ".hcl":
		return ParseHCL(data, path, environ)
	default:
		return nil, fmt.Errorf("%s: unsupported descriptor format (want .cue or .hcl)", path)
	}
}

// ParseCUE decodes a build.cue descriptor.
func ParseCUE(data []byte, path string) (*Descriptor, error) {
	res, err := cueutil.ParseAndDecode[Descriptor](buildSchema, data, "#Build", cueutil.WithFilename(path))
	if err != nil {
		return nil, err
	}
	d := res.Value
	d.Path = path
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks constraints the schemas cannot express.
func (d *Descriptor) Validate() error {
	check := func(field string, tasks []TaskDecl) error {
		for i, t := range tasks {
			if t.Run != "" && len(t.Delete) > 0 {
				return &DeclError{
					Path:  d.Path,
					Field: fmt.Sprintf("%s[%d]", field, i),
					Err:   fmt.Errorf("task %q sets both run and delete", t.Name),
				}
			}
		}
		return nil
	}

	if err := check("tasks", d.Tasks); err != nil {
		return err
	}
	for i, p := range d.Projects {
		if err := check(fmt.Sprintf("projects[%d].tasks", i), p.Tasks); err != nil {
			return err
		}
	}
	return nil
}
