package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FS stores objects as files below a root directory and serves them under
// a public URL prefix such as "/assets".
type FS struct {
	root      string
	publicURL string
}

func NewFS(root, publicURL string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &FS{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *FS) path(key string) (string, error) {
	key = NormalizeKey(key)
	if key == "" {
		return "", fmt.Errorf("objectstore: invalid key")
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *FS) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return s.URL(key), nil
}

func (s *FS) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *FS) URL(key string) string {
	return s.publicURL + "/" + NormalizeKey(key)
}

func (s *FS) KeyFromURL(rawURL string) (string, bool) {
	return keyUnder(s.publicURL, rawURL)
}

// Handler serves stored files. Mount it under the public URL prefix.
func (s *FS) Handler() http.Handler {
	return http.StripPrefix(s.publicURL, http.FileServer(http.Dir(s.root)))
}
