package objectstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

type GCSStore struct {
	client *storage.Client
	bucket string
	prefix prefixURL
}

// NewGCSStore uses Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: storage client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: prefixURL(fmt.Sprintf("https://storage.googleapis.com/%s/", bucket)),
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: close %s: %w", key, err)
	}
	return s.prefix.url(key), nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs: delete %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) KeyFromURL(publicURL string) (string, bool) {
	return s.prefix.key(publicURL)
}

// GSURI is the gs:// form Vision reads from.
func (s *GCSStore) GSURI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
