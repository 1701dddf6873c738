// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed acyclic graph operations for topological sorting
// and cycle detection. It backs both the project evaluation order and the task
// execution plan.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle contains the nodes that form the cycle (not necessarily all of them,
		// but enough to identify the problem). When the cycle was detected while
		// adding an edge, the first and last elements are the same node.
		Cycle []string
	}

	// Graph is a directed graph for topological sorting.
	// Nodes are identified by string keys. Edges represent "must run before" relationships:
	// an edge from A to B means A must complete before B starts.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors (nodes that depend on it).
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []string
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// HasNode reports whether name is a node of the graph.
func (g *Graph) HasNode(name string) bool {
	return g.nodeSet[name]
}

// HasEdge reports whether the edge from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	return slices.Contains(g.adjacency[from], to)
}

// AddEdge adds a directed edge from -> to, meaning "from" must run before "to".
// Both nodes are implicitly added if they don't exist. Duplicate edges are ignored.
// AddEdge does not check for cycles; TopologicalSort reports them.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if g.HasEdge(from, to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// AddEdgeAcyclic adds from -> to only if doing so keeps the graph acyclic.
// On a would-be cycle the graph is left untouched and a CycleError describing
// the closing path is returned. Unlike AddEdge, both nodes must already exist.
func (g *Graph) AddEdgeAcyclic(from, to string) error {
	if !g.nodeSet[from] || !g.nodeSet[to] {
		return fmt.Errorf("edge %s -> %s references an unknown node", from, to)
	}
	if path := g.Path(to, from); path != nil {
		return &CycleError{Cycle: append([]string{from}, path...)}
	}
	g.AddEdge(from, to)
	return nil
}

// Path returns a path of nodes leading from -> to (both inclusive), or nil when
// to is not reachable. A node always reaches itself.
func (g *Graph) Path(from, to string) []string {
	if !g.nodeSet[from] || !g.nodeSet[to] {
		return nil
	}
	if from == to {
		return []string{from}
	}

	prev := map[string]string{}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[node] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = node
			if next == to {
				path := []string{to}
				for cur := to; cur != from; {
					cur = prev[cur]
					path = append(path, cur)
				}
				slices.Reverse(path)
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// TopologicalSort returns a valid execution order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	// Compute in-degrees.
	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	// Ready nodes are kept ordered by insertion index so that ties are always
	// broken by declaration order, not by the order edges were relaxed.
	index := make(map[string]int, len(g.nodes))
	for i, node := range g.nodes {
		index[node] = i
	}
	byIndex := func(a, b string) int { return index[a] - index[b] }

	ready := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}

	var result []string
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				pos, _ := slices.BinarySearchFunc(ready, neighbor, byIndex)
				ready = slices.Insert(ready, pos, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		// Remaining nodes with non-zero in-degree form the cycle.
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}
