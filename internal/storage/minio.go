// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZSC714725/vpaas/internal/job"

	"github.com/lithammer/shortuuid/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const scheme = "s3://"

// MinioConfig for an S3 compatible bucket
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	TempDir   string
}

type minioStorage struct {
	client  *minio.Client
	bucket  string
	tempDir string
}

// NewMinio stores uploads in a bucket. Locations look like
// s3://bucket/key; the worker downloads inputs to TempDir and uploads
// outputs after the transcoder finished.
func NewMinio(ctx context.Context, config MinioConfig) (Storage, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("minio: no bucket configured")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket %s: %w", config.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", config.Bucket, err)
		}
	}

	tempDir := config.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	return &minioStorage{client: client, bucket: config.Bucket, tempDir: tempDir}, nil
}

// Location formats bucket and key as an s3:// location.
func Location(bucket, key string) string {
	return scheme + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseLocation splits an s3:// location into bucket and key.
func ParseLocation(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrLocation, location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s", ErrLocation, location)
	}
	return bucket, key, nil
}

func (m *minioStorage) Save(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	key := path.Base(name)
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return Location(m.bucket, key), nil
}

func (m *minioStorage) Stage(ctx context.Context, j *job.Job) (*Staged, error) {
	inBucket, inKey, err := ParseLocation(j.InputLocation)
	if err != nil {
		return nil, err
	}
	outBucket, outKey, err := ParseLocation(j.OutputLocation)
	if err != nil {
		return nil, err
	}

	local := *j
	local.InputLocation, local.OutputLocation = m.stagePaths(j.ID, inKey, outKey)

	release := func() {
		os.Remove(local.InputLocation)
		os.Remove(local.OutputLocation)
	}

	if err := m.client.FGetObject(ctx, inBucket, inKey, local.InputLocation, minio.GetObjectOptions{}); err != nil {
		release()
		return nil, fmt.Errorf("download %s: %w", j.InputLocation, err)
	}

	commit := func(ctx context.Context) error {
		_, err := m.client.FPutObject(ctx, outBucket, outKey, local.OutputLocation, minio.PutObjectOptions{
			ContentType: contentType(outKey),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", j.OutputLocation, err)
		}
		return nil
	}

	return NewStaged(&local, commit, release), nil
}

func (m *minioStorage) Remove(ctx context.Context, location string) error {
	bucket, key, err := ParseLocation(location)
	if err != nil {
		return err
	}
	if bucket != m.bucket {
		return fmt.Errorf("%w: %s is outside bucket %s", ErrLocation, location, m.bucket)
	}
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", location, err)
	}
	return nil
}

func (m *minioStorage) stagePaths(id, inKey, outKey string) (string, string) {
	if id == "" {
		id = shortuuid.New()
	}
	in := filepath.Join(m.tempDir, id+"-input"+path.Ext(inKey))
	out := filepath.Join(m.tempDir, id+"-output"+path.Ext(outKey))
	return in, out
}

func (m *minioStorage) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	removed := 0
	cutoff := time.Now().Add(-maxAge)

	var errs []error
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return removed, obj.Err
		}
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := m.client.RemoveObject(ctx, m.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", obj.Key, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	}
	return "application/octet-stream"
}
