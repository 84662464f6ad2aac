package api

import (
	"path"
	"path/filepath"
	"strings"
)

// Validate validates the pipeline specification.
// Rules are:
// - Job names are non empty and unique
// - "stages" is not permitted as job name
// - Job names are not "." or ".." and contain no path separator
// - Jobs have an image
// - Stage names are unique and non empty
// - With a stage list, a job stage must be one of the declared stages
// - Without a stage list, jobs must not declare a stage
// - Artifact paths are relative to the workspace and stay inside it
//
// Dependencies (unknown jobs and cycles) are checked by the scheduler.
func (p PipelineSpec) Validate() error {
	stages := make(map[string]bool, len(p.Stages))
	for _, s := range p.Stages {
		if strings.TrimSpace(s) == "" {
			return ConfigurationError("stage names must not be empty")
		}
		if stages[s] {
			return ConfigurationError("stage %s is declared twice", s)
		}
		stages[s] = true
	}

	names := make(map[string]bool, len(p.Jobs))
	for _, j := range p.Jobs {
		if j.Name == "" {
			return ConfigurationError("job name must not be empty")
		}
		if j.Name == KeyStages {
			return ConfigurationError("%q is reserved and cannot be used as job name", KeyStages)
		}
		if j.Name == "." || j.Name == ".." || strings.ContainsAny(j.Name, `/\`) {
			return ConfigurationError("job name %q must not be a path", j.Name)
		}
		if names[j.Name] {
			return ErrDuplicateJob{j.Name}
		}
		names[j.Name] = true

		if j.Image == "" {
			return ConfigurationError("job %s: image is required", j.Name)
		}
		if j.Stage != "" {
			if !p.HasStages() {
				return ConfigurationError("job %s declares stage %s but the pipeline has no stage list", j.Name, j.Stage)
			}
			if !stages[j.Stage] {
				return ConfigurationError("job %s declares unknown stage %s", j.Name, j.Stage)
			}
		}
		for _, a := range j.Artifacts {
			if err := validateArtifactPath(a); err != nil {
				return ConfigurationError("job %s: %s", j.Name, err)
			}
		}
	}
	return nil
}

type pathError string

func (e pathError) Error() string { return string(e) }

func validateArtifactPath(p string) error {
	if strings.TrimSpace(p) == "" {
		return pathError("artifact path must not be empty")
	}
	if filepath.IsAbs(p) || path.IsAbs(p) {
		return pathError("artifact path " + p + " must be relative to the workspace")
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	if clean == "." {
		return pathError("artifact path " + p + " designates the whole workspace")
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return pathError("artifact path " + p + " escapes the workspace")
	}
	return nil
}
