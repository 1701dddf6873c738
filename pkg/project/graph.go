// SPDX-License-Identifier: MPL-2.0

package project

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invowk/buildorch/internal/dag"
)

// DefaultBuildRoot is used when Layout.BuildRoot is empty.
const DefaultBuildRoot = "build"

type (
	// Layout is the filesystem layout injected into every project at construction.
	Layout struct {
		// RootDir is the directory of the root project.
		RootDir string
		// BuildRoot is the shared build output directory. Relative paths are
		// resolved against RootDir. Each subproject writes to a directory
		// named after its path below it.
		BuildRoot string
	}

	// Project is one node of the project tree.
	Project struct {
		id       ID
		parent   ID
		children []ID

		// Group is the artifact group id (e.g. "com.example.finances").
		Group string
		// Dir is the project source directory.
		Dir string
		// BuildDir is the project output directory.
		BuildDir string
		// Dependencies are the external artifacts declared by the project.
		Dependencies []Dependency

		plugins    []string
		extensions map[string]any
	}

	// Graph holds the project tree and evaluation dependencies.
	// It is not safe for concurrent use.
	Graph struct {
		layout   Layout
		projects map[ID]*Project
		order    []ID
		// deps has an edge B -> A when A's evaluation depends on B.
		deps *dag.Graph
	}
)

// NewGraph creates a graph holding only the root project.
func NewGraph(layout Layout) *Graph {
	layout.RootDir = filepath.Clean(layout.RootDir)
	if layout.BuildRoot == "" {
		layout.BuildRoot = DefaultBuildRoot
	}
	if !filepath.IsAbs(layout.BuildRoot) {
		layout.BuildRoot = filepath.Join(layout.RootDir, layout.BuildRoot)
	}
	layout.BuildRoot = filepath.Clean(layout.BuildRoot)

	g := &Graph{
		layout:   layout,
		projects: make(map[ID]*Project),
		deps:     dag.New(),
	}
	g.insert(&Project{
		id:         RootID,
		Dir:        layout.RootDir,
		BuildDir:   layout.BuildRoot,
		extensions: make(map[string]any),
	})
	return g
}

// Layout returns the resolved layout (absolute or cleaned build root).
func (g *Graph) Layout() Layout { return g.layout }

// Validate reports whether deleting BuildRoot would remove project sources.
// A build root inside RootDir or beside it is fine; RootDir itself or any
// of its ancestors is not.
func (l Layout) Validate() error {
	rel, err := filepath.Rel(l.BuildRoot, l.RootDir)
	if err != nil {
		// Different volumes cannot contain each other.
		return nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return fmt.Errorf("%w: %s is %s or above it", ErrBuildRootOverlapsSources, l.BuildRoot, l.RootDir)
}

// AddProject adds a project below parent. An empty parent means the root.
func (g *Graph) AddProject(id, parent ID) (*Project, error) {
	if ok, errs := id.IsValid(); !ok {
		return nil, errs[0]
	}
	if parent == "" {
		parent = RootID
	}
	if _, exists := g.projects[id]; exists {
		return nil, &DuplicateProjectError{ID: id}
	}
	parentProject, ok := g.projects[parent]
	if !ok {
		return nil, &UnknownProjectError{ID: parent}
	}

	p := &Project{
		id:         id,
		parent:     parent,
		Dir:        filepath.Join(parentProject.Dir, id.Name()),
		BuildDir:   filepath.Join(append([]string{g.layout.BuildRoot}, id.Segments()...)...),
		extensions: make(map[string]any),
	}
	// Subprojects inherit the group, as in a root allprojects {} block.
	p.Group = parentProject.Group
	parentProject.children = append(parentProject.children, id)
	g.insert(p)
	return p, nil
}

func (g *Graph) insert(p *Project) {
	g.projects[p.id] = p
	g.order = append(g.order, p.id)
	g.deps.AddNode(string(p.id))
}

// Project returns the project with the given id.
func (g *Graph) Project(id ID) (*Project, bool) {
	p, ok := g.projects[id]
	return p, ok
}

// Root returns the root project.
func (g *Graph) Root() *Project { return g.projects[RootID] }

// Projects returns all projects in insertion order.
func (g *Graph) Projects() []*Project {
	out := make([]*Project, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.projects[id])
	}
	return out
}

// Subprojects returns every project except the root, in insertion order.
func (g *Graph) Subprojects() []*Project {
	return g.Projects()[1:]
}

// AddDependency records that from's evaluation depends on to's evaluation.
// It fails with *dag.CycleError if the edge would close a cycle, in which
// case the graph is left unchanged. Adding an existing edge is a no-op.
func (g *Graph) AddDependency(from, to ID) error {
	if _, ok := g.projects[from]; !ok {
		return &UnknownProjectError{ID: from}
	}
	if _, ok := g.projects[to]; !ok {
		return &UnknownProjectError{ID: to}
	}
	if err := g.deps.AddEdgeAcyclic(string(to), string(from)); err != nil {
		return fmt.Errorf("project %s depends on %s: %w", from, to, err)
	}
	return nil
}

// EvaluationDependsOn makes every subproject other than target depend on
// target. Either all edges are added or, on a cycle, none.
func (g *Graph) EvaluationDependsOn(target ID) error {
	if _, ok := g.projects[target]; !ok {
		return &UnknownProjectError{ID: target}
	}
	// A new edge target -> p closes a cycle only if p already reaches target,
	// so checking each candidate against the current graph is sufficient.
	var candidates []ID
	for _, p := range g.Subprojects() {
		if p.id == target {
			continue
		}
		if path := g.deps.Path(string(p.id), string(target)); path != nil {
			return fmt.Errorf("project %s depends on %s: %w", p.id, target,
				&dag.CycleError{Cycle: append([]string{string(target)}, path...)})
		}
		candidates = append(candidates, p.id)
	}
	for _, id := range candidates {
		g.deps.AddEdge(string(target), string(id))
	}
	return nil
}

// DependsOn returns the projects whose evaluation id directly depends on.
func (g *Graph) DependsOn(id ID) []ID {
	var out []ID
	for _, other := range g.order {
		if g.deps.HasEdge(string(other), string(id)) {
			out = append(out, other)
		}
	}
	return out
}

// TopologicalOrder returns project ids such that every project follows the
// projects it depends on. Ties keep insertion order.
func (g *Graph) TopologicalOrder() ([]ID, error) {
	sorted, err := g.deps.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := make([]ID, len(sorted))
	for i, s := range sorted {
		out[i] = ID(s)
	}
	return out, nil
}

// ID returns the project id.
func (p *Project) ID() ID { return p.id }

// Parent returns the parent id; empty for the root.
func (p *Project) Parent() ID { return p.parent }

// Children returns the direct child ids in insertion order.
func (p *Project) Children() []ID { return slices.Clone(p.children) }

// Plugins returns applied plugin ids in application order.
func (p *Project) Plugins() []string { return slices.Clone(p.plugins) }

// HasPlugin reports whether the plugin has been applied.
func (p *Project) HasPlugin(id string) bool { return slices.Contains(p.plugins, id) }

// Extension looks up an extension by name.
func (p *Project) Extension(name string) (any, bool) {
	ext, ok := p.extensions[name]
	return ext, ok
}

// SetExtension registers or replaces an extension.
func (p *Project) SetExtension(name string, ext any) {
	p.extensions[name] = ext
}

// Android returns the android extension, or nil when no Android plugin is applied.
func (p *Project) Android() *AndroidExtension {
	ext, _ := p.extensions[ExtensionAndroid].(*AndroidExtension)
	return ext
}

// Kotlin returns the kotlin extension, or nil when kotlin-android is not applied.
func (p *Project) Kotlin() *KotlinExtension {
	ext, _ := p.extensions[ExtensionKotlin].(*KotlinExtension)
	return ext
}

// ApplyPlugin records a plugin and attaches the extensions it contributes.
// Unknown plugin ids are recorded as opaque. Re-applying a plugin is a no-op.
func (p *Project) ApplyPlugin(id string) error {
	if p.HasPlugin(id) {
		return nil
	}
	switch id {
	case PluginAndroidApplication, PluginAndroidLibrary:
		if _, ok := p.extensions[ExtensionAndroid]; !ok {
			p.extensions[ExtensionAndroid] = &AndroidExtension{}
		}
	case PluginKotlinAndroid:
		p.extensions[ExtensionKotlin] = &KotlinExtension{}
	case PluginFlutter:
		if !p.HasPlugin(PluginAndroidApplication) && !p.HasPlugin(PluginAndroidLibrary) {
			return &PluginOrderError{
				Plugin:   id,
				Requires: []string{PluginAndroidApplication, PluginAndroidLibrary},
			}
		}
	}
	p.plugins = append(p.plugins, id)
	return nil
}
