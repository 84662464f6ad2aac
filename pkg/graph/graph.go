// Package graph holds the in-memory dependency graph of a pipeline's jobs.
package graph

import (
	"sort"

	"ferry/pkg/api"
)

// Graph indexes jobs by name together with the names each job waits on.
// A Graph is read-only once built; the scheduler works on Remaining copies.
type Graph struct {
	order []string
	jobs  map[string]api.Job
	needs map[string]map[string]struct{}
}

// New builds a Graph from the given jobs.
// It fails if a job has no name or if two jobs share a name.
func New(jobs []api.Job) (*Graph, error) {
	g := &Graph{
		order: make([]string, 0, len(jobs)),
		jobs:  make(map[string]api.Job, len(jobs)),
		needs: make(map[string]map[string]struct{}, len(jobs)),
	}
	for _, j := range jobs {
		if j.Name == "" {
			return nil, api.ConfigurationError("job name must not be empty")
		}
		if _, exists := g.jobs[j.Name]; exists {
			return nil, api.ErrDuplicateJob{Job: j.Name}
		}
		g.order = append(g.order, j.Name)
		g.jobs[j.Name] = j.Clone()
		deps := make(map[string]struct{}, len(j.Needs))
		for _, n := range j.Needs {
			deps[n] = struct{}{}
		}
		g.needs[j.Name] = deps
	}
	return g, nil
}

// Validate checks every dependency refers to a job of the graph.
// The first dangling reference, in name order, is returned as api.ErrUnknownDependency.
func (g *Graph) Validate() error {
	for _, name := range g.Names() {
		for _, dep := range g.Dependencies(name) {
			if _, exists := g.jobs[dep]; !exists {
				return api.ErrUnknownDependency{Job: name, Dependency: dep}
			}
		}
	}
	return nil
}

// Len returns the number of jobs.
func (g *Graph) Len() int {
	return len(g.order)
}

// Job returns the job with the given name.
func (g *Graph) Job(name string) (api.Job, bool) {
	j, ok := g.jobs[name]
	if !ok {
		return api.Job{}, false
	}
	return j.Clone(), true
}

// Jobs returns every job in declaration order.
func (g *Graph) Jobs() []api.Job {
	res := make([]api.Job, len(g.order))
	for i, n := range g.order {
		res[i] = g.jobs[n].Clone()
	}
	return res
}

// Names returns the job names sorted.
func (g *Graph) Names() []string {
	names := make([]string, len(g.order))
	copy(names, g.order)
	sort.Strings(names)
	return names
}

// Dependencies returns the sorted names the given job waits on.
func (g *Graph) Dependencies(name string) []string {
	return sortedKeys(g.needs[name])
}

// Remaining returns a fresh working copy of the dependency relation.
// Mutating it does not affect the graph.
func (g *Graph) Remaining() map[string]map[string]struct{} {
	res := make(map[string]map[string]struct{}, len(g.needs))
	for name, deps := range g.needs {
		c := make(map[string]struct{}, len(deps))
		for d := range deps {
			c[d] = struct{}{}
		}
		res[name] = c
	}
	return res
}

// FindCycle returns a dependency cycle among the given jobs, as a path whose first and last elements are the same job.
// Only edges between the given jobs are followed. It returns nil if there is none.
func (g *Graph) FindCycle(names []string) []string {
	in := make(map[string]bool, len(names))
	for _, n := range names {
		in[n] = true
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(names))
	var stack []string

	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = visiting
		stack = append(stack, n)
		for _, d := range g.Dependencies(n) {
			if !in[d] {
				continue
			}
			switch state[d] {
			case visiting:
				// Cycle: from d's position in the stack back to d
				for i := range stack {
					if stack[i] == d {
						path := append([]string{}, stack[i:]...)
						return append(path, d)
					}
				}
			case unvisited:
				if p := visit(d); p != nil {
					return p
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	for _, n := range sorted {
		if state[n] == unvisited {
			if p := visit(n); p != nil {
				return p
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
