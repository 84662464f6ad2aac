package api

import "sort"

const (
	// KeyStages is the reserved top-level key holding the ordered stage list.
	KeyStages = "stages"
)

// PipelineSpec is the specification of a Pipeline.
type PipelineSpec struct {
	// Stages is the ordered list of declared stages. When present, the pipeline is scheduled in dependency mode.
	Stages []string `json:"stages,omitempty"`
	// Jobs in declaration order.
	Jobs []Job `json:"jobs"`
}

// HasStages returns true if the pipeline declares a stage list.
func (p PipelineSpec) HasStages() bool {
	return p.Stages != nil
}

// Job returns the job with the given name.
func (p PipelineSpec) Job(name string) (Job, bool) {
	for _, j := range p.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// Job is the specification of a unit of work run in a container.
type Job struct {
	Name      string   `json:"name"`
	Image     string   `json:"image"`
	Script    []string `json:"script"`
	Stage     string   `json:"stage,omitempty"`
	Needs     []string `json:"needs,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`
}

// Clone returns a deep copy of the job, so that an execution never shares slices with the pipeline spec.
func (j Job) Clone() Job {
	c := j
	c.Script = cloneStrings(j.Script)
	c.Needs = cloneStrings(j.Needs)
	c.Artifacts = cloneStrings(j.Artifacts)
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}

// Layer is a set of jobs safe to run concurrently, sorted by name.
type Layer []Job

// Names returns the names of the layer's jobs.
func (l Layer) Names() []string {
	names := make([]string, len(l))
	for i, j := range l {
		names[i] = j.Name
	}
	return names
}

// NewLayer returns a layer holding the given jobs sorted by name.
func NewLayer(jobs []Job) Layer {
	l := make(Layer, len(jobs))
	copy(l, jobs)
	sort.Slice(l, func(i, k int) bool { return l[i].Name < l[k].Name })
	return l
}

// Plan is the ordered sequence of layers of a run.
type Plan []Layer

// Names returns the job names of every layer.
func (p Plan) Names() [][]string {
	res := make([][]string, len(p))
	for i, l := range p {
		res[i] = l.Names()
	}
	return res
}

// Len returns the number of jobs in the plan.
func (p Plan) Len() int {
	n := 0
	for _, l := range p {
		n += len(l)
	}
	return n
}
