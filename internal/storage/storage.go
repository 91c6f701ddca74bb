// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage is the only interface the export sink depends on.
// Swap the implementation in main.go — sink and service code never changes.
//
//	Local:  exports = storage.NewLocalStorage(...)
//	S3:     exports = storage.NewS3Storage(...)
type Storage interface {
	// Put stores body under key and returns a URL the client can fetch it from.
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// ── Local Storage ─────────────────────────────────────────────────────────────

type LocalStorage struct {
	Dir     string
	BaseURL string // e.g. "http://localhost:8083"
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	return &LocalStorage{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	clean := filepath.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid key %q", key)
	}

	path := filepath.Join(s.Dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file and rename, so readers never see a partial blob
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename file: %w", err)
	}

	// BaseURL comes from env
	// Dev:  BASE_URL=http://localhost:8083
	// Prod: BASE_URL=https://api.yourproduct.com
	return fmt.Sprintf("%s/exports/%s", s.BaseURL, filepath.ToSlash(clean)), nil
}
