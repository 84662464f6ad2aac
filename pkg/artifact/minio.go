package artifact

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"ferry/pkg/util/context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// MinioConfig is the configuration of the minio artifact backend.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint" env:"FERRY_MINIO_ENDPOINT"`
	AccessKey string `mapstructure:"access_key" env:"FERRY_MINIO_ACCESS_KEY"`
	SecretKey string `mapstructure:"secret_key" env:"FERRY_MINIO_SECRET_KEY"`
	Region    string `mapstructure:"region" env:"FERRY_MINIO_REGION"`
	Bucket    string `mapstructure:"bucket" env:"FERRY_MINIO_BUCKET"`
	UseSSL    bool   `mapstructure:"use_ssl" env:"FERRY_MINIO_USE_SSL"`
}

// Validate checks the configuration is usable.
func (c MinioConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return errors.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// Minio archives artifacts in a bucket, under <workspace key>/<run id>/<job>/<path>.
type Minio struct {
	client    *minio.Client
	bucket    string
	workspace string
	prefix    string
}

// NewMinio returns a Store archiving in the configured bucket. The bucket is created if missing.
func NewMinio(ctx context.Context, cfg MinioConfig, workspace, runID string) (*Minio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid minio configuration")
	}
	ws, err := filepath.Abs(workspace)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve workspace %s", workspace)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create minio client for %s", cfg.Endpoint)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot check bucket %s", cfg.Bucket)
	}
	if !exists {
		ctx.Logger().Infof("creating bucket %s", cfg.Bucket)
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, errors.Wrapf(err, "cannot create bucket %s", cfg.Bucket)
		}
	}
	return &Minio{
		client:    client,
		bucket:    cfg.Bucket,
		workspace: ws,
		prefix:    objectPrefix(ws, runID),
	}, nil
}

func objectPrefix(workspace, runID string) string {
	return path.Join(WorkspaceKey(workspace), runID)
}

// jobPrefix returns the object prefix of the archive of the given job, with a trailing slash.
func (m *Minio) jobPrefix(job string) string {
	return path.Join(m.prefix, JobKey(job)) + "/"
}

// Save implements Store.Save
func (m *Minio) Save(ctx context.Context, job string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	files := make(map[string]string) // object key -> local file
	for _, p := range paths {
		rel, err := relPath(p)
		if err != nil {
			return err
		}
		local := filepath.Join(m.workspace, filepath.FromSlash(rel))
		if _, err := os.Stat(local); err != nil {
			if os.IsNotExist(err) {
				return NotFoundError(p)
			}
			return CopyFailedError(p, err)
		}
		err = filepath.Walk(local, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			r, err := filepath.Rel(m.workspace, file)
			if err != nil {
				return err
			}
			files[m.jobPrefix(job)+filepath.ToSlash(r)] = file
			return nil
		})
		if err != nil {
			return CopyFailedError(p, err)
		}
	}

	for key, file := range files {
		ctx.Logger().Debugf("uploading %s to %s/%s", file, m.bucket, key)
		if _, err := m.client.FPutObject(ctx, m.bucket, key, file, minio.PutObjectOptions{}); err != nil {
			return CopyFailedError(file, err)
		}
	}
	return nil
}

// Load implements Store.Load
func (m *Minio) Load(ctx context.Context, from, to string) error {
	prefix := m.jobPrefix(from)
	found := false
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return CopyFailedError(prefix, obj.Err)
		}
		found = true
		rel := strings.TrimPrefix(obj.Key, prefix)
		dst := filepath.Join(m.workspace, filepath.FromSlash(rel))
		ctx.Logger().Debugf("downloading %s/%s for job %s", m.bucket, obj.Key, to)
		if err := m.client.FGetObject(ctx, m.bucket, obj.Key, dst, minio.GetObjectOptions{}); err != nil {
			return CopyFailedError(obj.Key, err)
		}
	}
	if !found {
		return NotFoundError("archive of job " + from)
	}
	return nil
}
