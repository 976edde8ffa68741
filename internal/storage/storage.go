// Package storage stores uploaded files (gallery photos, template thumbnails)
// behind a small provider interface with local-disk and S3 backends.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage object not found")
	// ErrInvalidKey is returned for empty, absolute or parent-relative keys.
	ErrInvalidKey = errors.New("storage key is invalid")
)

// Storage saves, retrieves and deletes files by slash-separated key.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
}

// CleanKey normalises key and rejects keys that would escape the storage root.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if trimmed == "" || strings.HasPrefix(trimmed, "/") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(trimmed, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
