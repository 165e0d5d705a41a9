// Package dag provides the include graph of a templates directory.
// It supports cycle detection and change propagation from included files
// to the templates that include them.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a directed graph of template paths. An edge runs from an
// included template to the template that includes it.
type Graph struct {
	nodes     map[string]bool
	includers map[string][]string // included -> templates including it
	includes  map[string][]string // template -> templates it includes
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]bool),
		includers: make(map[string][]string),
		includes:  make(map[string][]string),
	}
}

// AddNode adds a template to the graph. Adding an existing template is a no-op.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = true
}

// AddInclude records that template includes included. Both nodes are added
// if missing. A template including itself is rejected.
func (g *Graph) AddInclude(template, included string) error {
	if template == included {
		return &CycleError{Path: []string{template, template}}
	}

	g.AddNode(template)
	g.AddNode(included)

	if !contains(g.includes[template], included) {
		g.includes[template] = append(g.includes[template], included)
	}
	if !contains(g.includers[included], template) {
		g.includers[included] = append(g.includers[included], template)
	}
	return nil
}

// Has reports whether id is in the graph.
func (g *Graph) Has(id string) bool {
	return g.nodes[id]
}

// Includes returns the templates id includes directly, in insertion order.
func (g *Graph) Includes(id string) []string {
	return g.includes[id]
}

// Includers returns the templates that include id directly, in insertion order.
func (g *Graph) Includers(id string) []string {
	return g.includers[id]
}

// Nodes returns all templates in sorted order.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount returns the number of templates in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of include edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, inc := range g.includes {
		count += len(inc)
	}
	return count
}

// FindCycle returns an include cycle as a path that starts and ends at the
// same template, or nil if there is none. Traversal order is deterministic.
func (g *Graph) FindCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, next := range g.includes[id] {
			if onStack[next] {
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				cycle = append(append([]string{}, stack[start:]...), next)
				return true
			}
			if !visited[next] && dfs(next) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
		return false
	}

	for _, id := range g.Nodes() {
		if !visited[id] && dfs(id) {
			return cycle
		}
	}
	return nil
}

// Affected returns the changed templates that are in the graph together with
// every template that includes one of them, directly or transitively. The
// result is sorted.
func (g *Graph) Affected(changed []string) []string {
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, includer := range g.includers[id] {
			mark(includer)
		}
	}

	for _, id := range changed {
		if g.nodes[id] {
			mark(id)
		}
	}

	return sortedKeys(affected)
}

// Upstream returns every template id includes, directly or transitively, sorted.
func (g *Graph) Upstream(id string) []string {
	upstream := make(map[string]bool)

	var mark func(nodeID string)
	mark = func(nodeID string) {
		for _, inc := range g.includes[nodeID] {
			if !upstream[inc] {
				upstream[inc] = true
				mark(inc)
			}
		}
	}
	mark(id)

	return sortedKeys(upstream)
}

// Roots returns templates that no other template includes, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.Nodes() {
		if len(g.includers[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// CycleError reports an include cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("include cycle: %s", strings.Join(e.Path, " -> "))
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
