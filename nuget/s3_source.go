package nuget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Config holds the connection settings of a package mirror bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Source reads packages from a mirror kept in an S3-compatible bucket using
// the flat-container key layout:
//
//	{id}/{version}/{id}.{version}.nupkg
//	{id}/{version}/{id}.nuspec
type S3Source struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewS3Source creates a mirror source.
func NewS3Source(logger *zap.Logger, cfg S3Config) (*S3Source, error) {
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

	opts := &minio.Options{
		Secure: cfg.UseSSL,
		Region: region,
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access != "" || secret != "" {
		opts.Creds = credentials.NewStaticV4(access, secret, "")
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Source{client: client, bucket: bucket, logger: logger}, nil
}

// Versions lists the version prefixes stored under the package id.
func (s *S3Source) Versions(ctx context.Context, id string) ([]string, error) {
	prefix := strings.ToLower(id) + "/"
	var versions []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, s.mapError(Identity{Name: id}, "list versions", obj.Err)
		}
		v := strings.Trim(strings.TrimPrefix(obj.Key, prefix), "/")
		if v != "" && !strings.Contains(v, "/") {
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		return nil, NewError(KindNotFound, Identity{Name: id}, "package not found in bucket %s", s.bucket)
	}
	return versions, nil
}

// Download fetches the .nupkg object for id.
func (s *S3Source) Download(ctx context.Context, id Identity) ([]byte, error) {
	name, version := id.lower()
	key := fmt.Sprintf("%s/%s/%s.%s.nupkg", name, version, name, version)
	s.logger.Debug("downloading package from mirror", zap.String("bucket", s.bucket), zap.String("key", key))
	return s.read(ctx, id, key)
}

// Manifest fetches the .nuspec object, falling back to the package archive
// when the mirror does not store manifests separately.
func (s *S3Source) Manifest(ctx context.Context, id Identity) (*Manifest, error) {
	name, version := id.lower()
	data, err := s.read(ctx, id, fmt.Sprintf("%s/%s/%s.nuspec", name, version, name))
	if err == nil {
		return parseManifest(id, data)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	pkg, err := s.Download(ctx, id)
	if err != nil {
		return nil, err
	}
	return manifestFromArchive(id, pkg)
}

func (s *S3Source) read(ctx context.Context, id Identity, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(id, "get object", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapError(id, "read object", err)
	}
	return data, nil
}

func (s *S3Source) mapError(id Identity, op string, err error) error {
	errResp := minio.ToErrorResponse(err)
	if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
		return NewError(KindNotFound, id, "package not found in bucket %s", s.bucket)
	}
	return wrapTransport(id, op, err)
}
