package artifact

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"ferry/pkg/util/context"

	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

// Filesystem archives artifacts under <root>/<workspace key>/<run id>/<job>/<path>.
type Filesystem struct {
	workspace string
	dir       string
}

// NewFilesystem returns a Store archiving under root.
func NewFilesystem(root, workspace, runID string) (*Filesystem, error) {
	if root == "" {
		return nil, errors.New("archive root is required")
	}
	if runID == "" {
		return nil, errors.New("run ID is required")
	}
	ws, err := filepath.Abs(workspace)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve workspace %s", workspace)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve archive root %s", root)
	}
	return &Filesystem{
		workspace: ws,
		dir:       filepath.Join(absRoot, WorkspaceKey(ws), runID),
	}, nil
}

// JobDir returns the archive directory of the given job.
func (f *Filesystem) JobDir(job string) string {
	return filepath.Join(f.dir, JobKey(job))
}

// Save implements Store.Save
func (f *Filesystem) Save(ctx context.Context, job string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	// Check everything exists before copying anything
	for _, p := range paths {
		rel, err := relPath(p)
		if err != nil {
			return err
		}
		src := filepath.Join(f.workspace, rel)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				return NotFoundError(p)
			}
			return CopyFailedError(p, err)
		}
		// The archive would be copied into itself
		if f.dir == src || strings.HasPrefix(f.dir, src+string(filepath.Separator)) {
			return CopyFailedError(p, errors.Errorf("%s contains the archive directory %s", src, f.dir))
		}
	}

	dst := f.JobDir(job)
	if err := os.MkdirAll(dst, 0755); err != nil {
		return CopyFailedError(dst, err)
	}
	for _, p := range paths {
		rel, _ := relPath(p)
		ctx.Logger().Debugf("saving artifact %s of job %s", rel, job)
		if err := copy.Copy(filepath.Join(f.workspace, rel), filepath.Join(dst, filepath.FromSlash(rel))); err != nil {
			return CopyFailedError(p, err)
		}
	}
	return nil
}

// Load implements Store.Load
func (f *Filesystem) Load(ctx context.Context, from, to string) error {
	src := f.JobDir(from)
	entries, err := ioutil.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return NotFoundError("archive of job " + from)
		}
		return CopyFailedError(src, err)
	}
	ctx.Logger().Debugf("loading artifacts of job %s for job %s", from, to)
	for _, e := range entries {
		if err := copy.Copy(filepath.Join(src, e.Name()), filepath.Join(f.workspace, e.Name())); err != nil {
			return CopyFailedError(e.Name(), err)
		}
	}
	return nil
}
