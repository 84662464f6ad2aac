package api

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var jobKeys = map[string]bool{
	"image":     true,
	"script":    true,
	"stage":     true,
	"needs":     true,
	"artifacts": true,
}

// ParseFile reads and parses the pipeline file at path.
func ParseFile(path string) (PipelineSpec, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return PipelineSpec{}, errors.WithStack(ConfigurationError("config file %s could not be read: %s", path, err))
	}
	spec, err := Parse(data)
	if err != nil {
		return PipelineSpec{}, errors.Wrapf(err, "cannot parse %s", path)
	}
	return spec, nil
}

// Parse parses a pipeline document: a mapping from job name to job, plus the reserved "stages" key.
// Jobs are returned in document order.
func Parse(data []byte) (PipelineSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return PipelineSpec{}, ConfigurationError("failed to parse config: %s", err)
	}
	spec := PipelineSpec{}
	if len(doc.Content) == 0 {
		// Empty document
		return spec, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return spec, ConfigurationError("expected a mapping of jobs at line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Tag != "!!str" {
			return spec, ConfigurationError("job name should be a string at line %d", key.Line)
		}
		if key.Value == KeyStages {
			stages, err := stringList(value, KeyStages)
			if err != nil {
				return spec, err
			}
			if stages == nil {
				stages = []string{}
			}
			spec.Stages = stages
			continue
		}
		job, err := parseJob(key.Value, value)
		if err != nil {
			return spec, err
		}
		spec.Jobs = append(spec.Jobs, job)
	}
	return spec, nil
}

func parseJob(name string, n *yaml.Node) (Job, error) {
	if n.Kind != yaml.MappingNode {
		return Job{}, ConfigurationError("job %s should be a mapping at line %d", name, n.Line)
	}
	job := Job{Name: name}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if !jobKeys[key.Value] {
			return Job{}, ConfigurationError("job %s: unknown key %q at line %d", name, key.Value, key.Line)
		}
		seen[key.Value] = true
		var err error
		switch key.Value {
		case "image":
			job.Image, err = str(value, name, "image")
		case "stage":
			job.Stage, err = str(value, name, "stage")
		case "script":
			job.Script, err = stringList(value, name+".script")
			if err == nil && job.Script == nil {
				job.Script = []string{}
			}
		case "needs":
			job.Needs, err = stringList(value, name+".needs")
		case "artifacts":
			job.Artifacts, err = stringList(value, name+".artifacts")
		}
		if err != nil {
			return Job{}, err
		}
	}
	if !seen["image"] || job.Image == "" {
		return Job{}, ConfigurationError("job %s: image is required", name)
	}
	if !seen["script"] {
		return Job{}, ConfigurationError("job %s: script is required", name)
	}
	return job, nil
}

func str(n *yaml.Node, job, field string) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", ConfigurationError("job %s: %s should be a string at line %d", job, field, n.Line)
	}
	return n.Value, nil
}

// stringList decodes a sequence of scalars. A null value decodes to nil.
func stringList(n *yaml.Node, what string) ([]string, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, ConfigurationError("%s should be a list at line %d", what, n.Line)
	}
	res := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
			return nil, ConfigurationError("%s should only contain strings at line %d", what, item.Line)
		}
		res = append(res, item.Value)
	}
	return res, nil
}
