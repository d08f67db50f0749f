// Package objectstore holds avatar blobs on local disk, Google Cloud Storage or S3.
package objectstore

import (
	"context"
	"errors"
	"strings"
)

var ErrImageRejected = errors.New("image rejected: violates community guidelines")

type Store interface {
	// Put writes data under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a public URL produced by Put back to its key.
	KeyFromURL(publicURL string) (string, bool)
}

// Moderator inspects a stored object and reports whether it may be published.
type Moderator interface {
	Allowed(ctx context.Context, key string) (bool, error)
}

type prefixURL string

func (p prefixURL) url(key string) string {
	return string(p) + key
}

func (p prefixURL) key(publicURL string) (string, bool) {
	if p == "" || !strings.HasPrefix(publicURL, string(p)) {
		return "", false
	}
	key := strings.TrimPrefix(publicURL, string(p))
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
