// Package depgraph builds the intra-repository dependency graph over package
// names and derives the wave-ordered build plan.
package depgraph

import (
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/dochub/internal/manifest"
	"git.home.luguber.info/inful/dochub/internal/util/sets"
)

// Graph is an immutable, validated DAG over package names.
// Edge A -> B means A must build before B. Safe for concurrent reads.
type Graph struct {
	names    []string // canonical order (sorted)
	index    map[string]int
	outgoing [][]int // dependents, by canonical index, sorted
	incoming [][]int // dependencies, by canonical index, sorted
	indeg    []int
	waves    [][]string
}

// Build constructs and validates the graph from the full descriptor set.
// Declared dependencies that name no known package are external: they are
// ignored for ordering and logged at debug level, never treated as errors.
// A cycle aborts planning with a *CycleError naming a witness path.
func Build(descriptors []manifest.Descriptor) (*Graph, error) {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	known := sets.New(names...)

	outgoing := make([][]int, len(names))
	incoming := make([][]int, len(names))
	indeg := make([]int, len(names))
	for _, d := range descriptors {
		to := index[d.Name]
		for _, dep := range d.Dependencies {
			if !known.Has(dep) {
				slog.Debug("Ignoring external dependency for ordering", "package", d.Name, "dependency", dep)
				continue
			}
			if dep == d.Name {
				// Self-reference carries no ordering information.
				slog.Debug("Ignoring self-dependency", "package", d.Name)
				continue
			}
			from := index[dep]
			outgoing[from] = append(outgoing[from], to)
			incoming[to] = append(incoming[to], from)
			indeg[to]++
		}
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
	}
	for i := range incoming {
		sort.Ints(incoming[i])
	}

	g := &Graph{names: names, index: index, outgoing: outgoing, incoming: incoming, indeg: indeg}
	waves, ok := g.computeWaves()
	if !ok {
		return nil, &CycleError{Path: g.findCycle()}
	}
	g.waves = waves
	return g, nil
}

// computeWaves runs Kahn's algorithm, extracting all zero in-degree nodes
// into each successive wave. Returns ok=false when nodes remain, which
// proves a cycle.
func (g *Graph) computeWaves() ([][]string, bool) {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := make([]int, 0, len(indeg))
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	var waves [][]string
	placed := 0
	for len(ready) > 0 {
		sort.Ints(ready)
		wave := make([]string, 0, len(ready))
		var next []int
		for _, n := range ready {
			wave = append(wave, g.names[n])
			placed++
			for _, m := range g.outgoing[n] {
				indeg[m]--
				if indeg[m] == 0 {
					next = append(next, m)
				}
			}
		}
		waves = append(waves, wave)
		ready = next
	}
	return waves, placed == len(g.names)
}

// Waves returns the wave-ordered plan: wave k contains every package whose
// intra-repo dependencies all sit in waves 0..k-1. Names within a wave are
// sorted. The returned slices must not be mutated.
func (g *Graph) Waves() [][]string { return g.waves }

// WaveOf returns the wave index a package was assigned to, or -1 if unknown.
func (g *Graph) WaveOf(name string) int {
	for i, wave := range g.waves {
		for _, n := range wave {
			if n == name {
				return i
			}
		}
	}
	return -1
}

// Dependencies returns the intra-repo dependencies of a package, sorted.
func (g *Graph) Dependencies(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.incoming[i]))
	for _, d := range g.incoming[i] {
		out = append(out, g.names[d])
	}
	return out
}

// Dependents returns the packages that directly depend on name, sorted.
func (g *Graph) Dependents(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.outgoing[i]))
	for _, d := range g.outgoing[i] {
		out = append(out, g.names[d])
	}
	return out
}

// TransitiveClosure returns the given names plus every intra-repo dependency
// reachable from them. Used by --only: restricting build targets never drops
// the dependencies those targets need on disk.
func (g *Graph) TransitiveClosure(names []string) sets.Set[string] {
	closure := sets.New[string]()
	var visit func(n string)
	visit = func(n string) {
		if closure.Has(n) {
			return
		}
		if _, ok := g.index[n]; !ok {
			return
		}
		closure.Add(n)
		for _, dep := range g.Dependencies(n) {
			visit(dep)
		}
	}
	for _, n := range names {
		visit(n)
	}
	return closure
}

// Len returns the number of packages in the graph.
func (g *Graph) Len() int { return len(g.names) }
