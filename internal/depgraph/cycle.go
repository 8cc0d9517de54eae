package depgraph

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle. Path holds a minimal witness:
// the first and last entries are the same package.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// findCycle extracts one cycle witness with a deterministic DFS over
// canonical indices. It returns a single stable path, not every cycle.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.names))
	parent := make([]int, len(g.names))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] { // already sorted
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				// Back-edge u -> v closes the cycle v ... u -> v.
				cycle = append(cycle, v)
				cur := u
				for cur != -1 && cur != v {
					cycle = append(cycle, cur)
					cur = parent[cur]
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.names {
		if color[i] == white && dfs(i) {
			break
		}
	}
	if len(cycle) == 0 {
		return nil
	}

	// dfs records the path in reverse.
	path := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		path = append(path, g.names[cycle[i]])
	}
	return path
}
