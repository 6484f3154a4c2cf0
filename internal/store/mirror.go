package store

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Mirror receives a copy of every change made to the upload root. The upload
// root stays authoritative; a mirror is best effort.
type Mirror interface {
	Put(ctx context.Context, name string, content []byte, contentType string) error
	Remove(ctx context.Context, name string) error
}

// MirrorConfig locates an S3-compatible bucket.
type MirrorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// Enabled reports whether enough is configured to connect.
func (c MirrorConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// MinioMirror copies files into a MinIO (or any S3) bucket.
type MinioMirror struct {
	client *minio.Client
	bucket string
	prefix string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

// NewMinioMirror connects to the bucket and checks that it exists.
func NewMinioMirror(ctx context.Context, cfg MirrorConfig) (*MinioMirror, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("mirror configuration incomplete")
	}
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("mirror bucket does not exist: %s", cfg.Bucket)
	}
	return &MinioMirror{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (m *MinioMirror) key(name string) string {
	return path.Join(m.prefix, name)
}

// Put uploads content under the mirror prefix.
func (m *MinioMirror) Put(ctx context.Context, name string, content []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.key(name),
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("mirror put %s: %w", name, err)
	}
	return nil
}

// Remove deletes the mirrored copy.
func (m *MinioMirror) Remove(ctx context.Context, name string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, m.key(name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("mirror remove %s: %w", name, err)
	}
	return nil
}
