package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/pulseengine/component-resolver/internal/pkgref"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key.
	Prefix string
	UseSSL bool
}

// S3Source fetches components stored as <prefix><name>/<version>.wasm in an
// S3 compatible bucket.
type S3Source struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3Source(cfg S3Config) (*S3Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	opts := &minio.Options{Secure: cfg.UseSSL, Region: region}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		opts.Creds = credentials.NewEnvAWS()
	}
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Source{client: client, bucket: bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Source) objectPrefix(name string) string {
	return s.prefix + name + "/"
}

// Versions lists the versions stored for name.
func (s *S3Source) Versions(ctx context.Context, name string) ([]string, error) {
	prefix := s.objectPrefix(name)
	var out []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if v, ok := versionFromKey(prefix, obj.Key); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *S3Source) Fetch(ctx context.Context, ref pkgref.RemoteRef, cacheDir string) (Fetched, error) {
	logger := log.FromContext(ctx).WithValues("bucket", s.bucket, "ref", ref.String())

	available, err := s.Versions(ctx, ref.Name)
	if err != nil {
		return Fetched{}, err
	}
	v, err := pickVersion(ref.Name, ref.Version, available)
	if err != nil {
		return Fetched{}, err
	}
	key := s.objectPrefix(ref.Name) + v + ".wasm"
	dest := cachePath(cacheDir, ref, v)
	if err := s.client.FGetObject(ctx, s.bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NoSuchBucket" {
			return Fetched{}, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		}
		return Fetched{}, err
	}
	logger.V(1).Info("downloaded component", "key", key, "path", dest)
	return Fetched{Path: dest, Version: v}, nil
}

func versionFromKey(prefix, key string) (string, bool) {
	rest := strings.TrimPrefix(key, prefix)
	if rest == key || strings.Contains(rest, "/") || !strings.HasSuffix(rest, ".wasm") {
		return "", false
	}
	return strings.TrimSuffix(rest, ".wasm"), true
}
