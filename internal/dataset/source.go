// Package dataset reads reference snapshots, JSON arrays of records, from a
// directory, an S3-compatible object store or a PostgreSQL table.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
)

// Source opens named snapshots. A missing snapshot yields an error wrapping
// errors.ErrNotFound.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// FileSource reads snapshots from a local directory.
type FileSource struct {
	Dir string
}

func (s FileSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s FileSource) String() string { return "file:" + s.Dir }

// ObjectStoreSource reads snapshots from an S3-compatible bucket.
type ObjectStoreSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectStoreSource creates the minio client. No request is made until
// the first Open.
func NewObjectStoreSource(cfg config.ObjectStoreConfig) (*ObjectStoreSource, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return &ObjectStoreSource{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *ObjectStoreSource) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *ObjectStoreSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, fmt.Errorf("%s/%s: %w", s.bucket, key, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s/%s: %w", s.bucket, key, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", s.bucket, key, err)
	}
	return obj, nil
}

func (s *ObjectStoreSource) String() string { return "s3:" + s.bucket + "/" + s.prefix }

// SnapshotStore returns whole snapshot payloads by name.
type SnapshotStore interface {
	Snapshot(ctx context.Context, name string) ([]byte, error)
}

// PostgresSource reads snapshots stored as table rows.
type PostgresSource struct {
	Store SnapshotStore
}

func (s PostgresSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	payload, err := s.Store.Snapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (s PostgresSource) String() string { return "postgres" }
