// Package scheduler turns a pipeline specification into an execution plan.
package scheduler

import (
	"sort"
	"strings"

	"ferry/pkg/api"
	"ferry/pkg/graph"
	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

// Mode is the scheduling policy of a pipeline.
type Mode string

const (
	// ModeDependency is used when the pipeline declares a stage list.
	// Stages are labels only, the order is derived from needs.
	ModeDependency Mode = "dependency"

	// ModeFlat is used when the pipeline has no stage list.
	// Jobs must not declare a stage; jobs without needs share a single layer.
	ModeFlat Mode = "flat"
)

// ModeOf returns the scheduling mode of the given pipeline.
func ModeOf(spec api.PipelineSpec) Mode {
	if spec.HasStages() {
		return ModeDependency
	}
	return ModeFlat
}

// Plan validates the pipeline and computes its execution plan.
// Configuration errors and scheduling errors (unknown dependency, cycle) are returned before anything runs.
func Plan(ctx context.Context, spec api.PipelineSpec) (api.Plan, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline")
	}
	g, err := graph.New(spec.Jobs)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build job graph")
	}
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "cannot schedule pipeline")
	}
	plan, err := Layers(g)
	if err != nil {
		return nil, errors.Wrap(err, "cannot schedule pipeline")
	}
	ctx.Logger().Debugf("%s mode: %d jobs planned in %d layers", ModeOf(spec), plan.Len(), len(plan))
	return plan, nil
}

// Layers computes the execution layers of the graph with Kahn's algorithm:
// each layer holds the jobs whose dependencies all belong to previous layers.
// Jobs of a layer are sorted by name.
func Layers(g *graph.Graph) (api.Plan, error) {
	remaining := g.Remaining()
	plan := api.Plan{}
	for len(remaining) > 0 {
		var ready []string
		for name, deps := range remaining {
			if len(deps) == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			// Nothing can progress: every remaining job waits on another remaining job (or on a job that does not exist).
			return nil, cycleError(g, remaining)
		}
		sort.Strings(ready)

		layer := make(api.Layer, 0, len(ready))
		for _, name := range ready {
			j, _ := g.Job(name)
			layer = append(layer, j)
			delete(remaining, name)
		}
		for _, deps := range remaining {
			for _, name := range ready {
				delete(deps, name)
			}
		}
		plan = append(plan, layer)
	}
	return plan, nil
}

func cycleError(g *graph.Graph, remaining map[string]map[string]struct{}) error {
	jobs := make([]string, 0, len(remaining))
	for name := range remaining {
		jobs = append(jobs, name)
	}
	sort.Strings(jobs)
	return api.ErrCycle{
		Jobs: jobs,
		Path: g.FindCycle(jobs),
	}
}

// Describe returns a one line description of a layer, with stage labels when jobs have one.
func Describe(l api.Layer) string {
	parts := make([]string, len(l))
	for i, j := range l {
		if j.Stage != "" {
			parts[i] = j.Name + " (" + j.Stage + ")"
		} else {
			parts[i] = j.Name
		}
	}
	return strings.Join(parts, ", ")
}
