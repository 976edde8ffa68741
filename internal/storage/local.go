package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps files under Root and serves them from URLPrefix.
type LocalStorage struct {
	root      string
	urlPrefix string
}

// NewLocalStorage creates the root directory if needed.
func NewLocalStorage(root, urlPrefix string) (*LocalStorage, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("local storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{
		root:      root,
		urlPrefix: "/" + strings.Trim(strings.TrimSpace(urlPrefix), "/"),
	}, nil
}

// Root returns the directory files are written to.
func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) fullPath(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Save writes r to key, creating intermediate directories.
func (s *LocalStorage) Save(_ context.Context, key string, r io.Reader, _ string) error {
	full, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	f, err := os.Create(full)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return err
	}
	return f.Close()
}

// Open returns a reader for key.
func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes key. Deleting a missing key is not an error.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	full, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether key is present.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	full, err := s.fullPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// URL returns the public path for key.
func (s *LocalStorage) URL(key string) string {
	cleaned, err := CleanKey(key)
	if err != nil {
		return ""
	}
	if s.urlPrefix == "/" {
		return "/" + cleaned
	}
	return s.urlPrefix + "/" + cleaned
}
