// Package artifact persists the files produced by jobs and restores them for other jobs.
package artifact

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

// Store persists and restores job artifacts.
// Implementations are bound to one workspace and one run.
type Store interface {
	// Save copies each workspace relative path (file or directory) into the archive of the job.
	// An empty list is a no-op.
	Save(ctx context.Context, job string, paths []string) error

	// Load copies the whole archive of job from into the workspace, for job to.
	Load(ctx context.Context, from, to string) error
}

// Backend designates a Store implementation.
type Backend string

const (
	// BackendFilesystem archives under a local directory.
	BackendFilesystem Backend = "filesystem"
	// BackendMinio archives in an S3 compatible bucket.
	BackendMinio Backend = "minio"
)

// Config is the configuration of the artifact store.
type Config struct {
	Backend Backend `mapstructure:"backend" env:"FERRY_ARTIFACTS_BACKEND"`
	// Root is the archive root directory of the filesystem backend.
	Root  string      `mapstructure:"root" env:"FERRY_ARCHIVE_ROOT"`
	Minio MinioConfig `mapstructure:"minio"`
}

// New returns the Store designated by the config, for the given workspace and run.
func New(ctx context.Context, cfg Config, workspace, runID string) (Store, error) {
	switch cfg.Backend {
	case BackendFilesystem, "":
		return NewFilesystem(cfg.Root, workspace, runID)
	case BackendMinio:
		return NewMinio(ctx, cfg.Minio, workspace, runID)
	default:
		return nil, errors.Errorf("unknown artifact backend %s", cfg.Backend)
	}
}

var invalidKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// WorkspaceKey returns the archive key of a workspace directory.
func WorkspaceKey(workspace string) string {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		abs = workspace
	}
	key := strings.Trim(invalidKeyChars.ReplaceAllString(filepath.ToSlash(abs), "_"), "_")
	if key == "" {
		return "root"
	}
	return key
}

// relPath returns the cleaned, slash separated form of a workspace relative path.
func relPath(p string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(p))
	if filepath.IsAbs(p) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Errorf("artifact path %s is not inside the workspace", p)
	}
	if clean == "." {
		return "", errors.Errorf("artifact path %s designates the whole workspace", p)
	}
	return clean, nil
}

// JobKey returns the archive key of a job: a single path segment, distinct for distinct job names.
func JobKey(job string) string {
	key := url.PathEscape(job)
	if key == "." || key == ".." {
		return strings.Repeat("%2E", len(key))
	}
	return key
}
