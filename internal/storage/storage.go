// Package storage holds the object store backends that keep uploaded file
// bytes. Every backend addresses objects by a flat key inside one bucket.
package storage

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"filedrop/internal/config"
)

// ErrNotFound is returned when the addressed object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are empty or could escape the bucket.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore is the capability set the file service needs from a blob store.
type ObjectStore interface {
	// Put writes size bytes from r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key, returning ErrNotFound if it was already absent.
	Delete(ctx context.Context, key string) error
	// URL is the externally reachable reference for key.
	URL(key string) string
	// Ping reports whether the bucket is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case config.BackendMinIO, "":
		return NewMinioStore(ctx, cfg)
	case config.BackendS3:
		return NewS3Store(ctx, cfg)
	case config.BackendGCS:
		return NewGCSStore(ctx, cfg)
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" ||
		strings.HasPrefix(key, "/") ||
		strings.Contains(key, "..") ||
		strings.Contains(key, "\\") ||
		strings.Contains(key, "//") {
		return errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return nil
}

// joinURL appends the escaped key segments to base.
func joinURL(base, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
