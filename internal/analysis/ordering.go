package analysis

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Level grades a Warning.
type Level string

const (
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Warning is one finding about a handler set.
//
// Ordering cycles are warnings, not errors: a cycle only fails when every
// binding on it appears on the same node, which static analysis cannot
// know.
type Warning struct {
	Path    []string `json:"path" yaml:"path"`
	Message string   `json:"message" yaml:"message"`
	Level   Level    `json:"level" yaml:"level"`
}

// Graph maps a binding name to the names it must come after.
type Graph map[string][]string

// AnalyzeOrdering reports cycles in the After relation of a handler set
// and After entries naming bindings that have no handler. Results are
// sorted so output is stable across runs.
func AnalyzeOrdering(g Graph) []Warning {
	warnings := []Warning{}

	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			warnings = append(warnings, cycleWarning(scc, g))
		}
	}

	for _, name := range sortedNodes(g) {
		for _, dep := range g[name] {
			if _, known := g[dep]; !known {
				warnings = append(warnings, Warning{
					Path:    []string{name, dep},
					Message: fmt.Sprintf("%s orders after %s, which has no handler", name, dep),
					Level:   LevelInfo,
				})
			}
		}
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Level != warnings[j].Level {
			return warnings[i].Level == LevelWarning
		}
		return strings.Join(warnings[i].Path, "\x00") < strings.Join(warnings[j].Path, "\x00")
	})
	return warnings
}

func sortedNodes(g Graph) []string {
	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

func hasSelfLoop(node string, g Graph) bool {
	return slices.Contains(g[node], node)
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// sorted order.
func tarjanSCC(g Graph) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, known := g[w]; !known {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedNodes(g) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleWarning(scc []string, g Graph) Warning {
	if len(scc) == 1 {
		name := scc[0]
		return Warning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("%s orders after itself", name),
			Level:   LevelWarning,
		}
	}
	path := cyclePath(scc, g)
	return Warning{
		Path:    path,
		Message: fmt.Sprintf("bindings order after each other: %s", strings.Join(path, " → ")),
		Level:   LevelWarning,
	}
}

// cyclePath walks the component from its smallest name, following edges
// that stay inside it, until it returns to the start.
func cyclePath(scc []string, g Graph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := slices.Min(scc)
	path := []string{start}
	visited := map[string]bool{start: true}
	for current := start; ; {
		next := ""
		for _, w := range g[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}

// Order returns the handler names in an order where every name comes
// after the names it depends on, ties broken alphabetically. It fails
// when the graph has a cycle.
func Order(g Graph) ([]string, error) {
	indegree := make(map[string]int, len(g))
	dependents := make(map[string][]string, len(g))
	for _, name := range sortedNodes(g) {
		for _, dep := range g[name] {
			if _, known := g[dep]; !known {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range sortedNodes(g) {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	order := make([]string, 0, len(g))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, d := range dependents[name] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(order) != len(g) {
		return nil, fmt.Errorf("handler ordering has a cycle among %d bindings", len(g)-len(order))
	}
	return order, nil
}
