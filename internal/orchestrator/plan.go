package orchestrator

import (
	"log/slog"

	"git.home.luguber.info/inful/dochub/internal/depgraph"
	"git.home.luguber.info/inful/dochub/internal/errors"
	"git.home.luguber.info/inful/dochub/internal/manifest"
	"git.home.luguber.info/inful/dochub/internal/util/sets"
)

// Plan is the immutable execution plan for one run: the frozen descriptor
// set, the validated dependency graph, and the wave ordering (restricted to
// the selected targets when --only is used). Shared read-only across workers.
type Plan struct {
	Descriptors map[string]manifest.Descriptor
	Graph       *depgraph.Graph
	Waves       [][]string
}

// NewPlan builds the plan from discovered descriptors. only, when non-empty,
// restricts the build to those packages plus their transitive intra-repo
// dependencies; a name not present in the repository is a validation error.
func NewPlan(descriptors []manifest.Descriptor, only []string) (*Plan, error) {
	byName := make(map[string]manifest.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name] = d
	}

	graph, err := depgraph.Build(descriptors)
	if err != nil {
		if ce, ok := err.(*depgraph.CycleError); ok {
			return nil, errors.Wrap(ce, errors.CategoryCycle, errors.SeverityFatal, "dependency cycle detected").
				WithContext("cycle", ce.Path)
		}
		return nil, err
	}

	waves := graph.Waves()
	if len(only) > 0 {
		for _, name := range only {
			if _, ok := byName[name]; !ok {
				return nil, errors.ValidationFailed("--only", "unknown package: "+name)
			}
		}
		keep := graph.TransitiveClosure(only)
		slog.Debug("Restricting build to selected packages and their dependencies",
			"packages", sets.SortedStrings(keep))
		waves = filterWaves(waves, keep)
	}

	return &Plan{Descriptors: byName, Graph: graph, Waves: waves}, nil
}

// TaskCount returns the number of packages the plan will build.
func (p *Plan) TaskCount() int {
	n := 0
	for _, w := range p.Waves {
		n += len(w)
	}
	return n
}

func filterWaves(waves [][]string, keep sets.Set[string]) [][]string {
	out := make([][]string, 0, len(waves))
	for _, wave := range waves {
		var filtered []string
		for _, name := range wave {
			if keep.Has(name) {
				filtered = append(filtered, name)
			}
		}
		if len(filtered) > 0 {
			out = append(out, filtered)
		}
	}
	return out
}
