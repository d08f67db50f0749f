package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes objects under a directory served at <publicBaseURL>/uploads/.
type LocalStore struct {
	dir    string
	prefix prefixURL
}

func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{
		dir:    dir,
		prefix: prefixURL(strings.TrimRight(publicBaseURL, "/") + "/uploads/"),
	}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return s.prefix.url(key), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStore) KeyFromURL(publicURL string) (string, bool) {
	return s.prefix.key(publicURL)
}
