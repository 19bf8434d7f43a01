package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalConfig configures filesystem storage for development.
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"`
	BaseURL  string `mapstructure:"base_url"` // e.g. "/media"
}

// LocalStorage serves avatars that a sidecar writes under BasePath. It
// cannot presign uploads.
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage creates BasePath if needed.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	base := cfg.BasePath
	if base == "" {
		base = "./data/media"
	}
	root, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("local storage: resolve %s: %w", base, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: create %s: %w", root, err)
	}
	return &LocalStorage{root: root, baseURL: strings.TrimSuffix(cfg.BaseURL, "/")}, nil
}

// Path maps key under the root. Leading ".." segments are clamped to it.
func (s *LocalStorage) Path(key string) string {
	return filepath.Join(s.root, filepath.Clean("/"+key))
}

func (s *LocalStorage) PresignUpload(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// ObjectURL returns baseURL/key; expires is ignored.
func (s *LocalStorage) ObjectURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return s.baseURL + "/" + strings.TrimPrefix(key, "/"), nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("local storage: delete %s: %w", key, err)
	}
	return nil
}

var _ Storage = (*LocalStorage)(nil)
