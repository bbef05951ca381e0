// Package objectstore persists image assets and uploads under slash-separated
// keys and maps them to public URLs.
package objectstore

import (
	"context"
	"encoding/hex"
	"errors"
	"path"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var ErrNotFound = errors.New("objectstore: object not found")

type Store interface {
	// Put writes data under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Get returns ErrNotFound when key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
	// KeyFromURL reverses URL for objects held by this store.
	KeyFromURL(rawURL string) (string, bool)
}

// ContentKey returns a key under prefix derived from the content hash, so
// identical uploads share one object.
func ContentKey(prefix string, data []byte, ext string) string {
	sum := blake2b.Sum256(data)
	name := hex.EncodeToString(sum[:16])
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return NormalizeKey(prefix + "/" + name + ext)
}

// NormalizeKey cleans key into a relative slash path. Keys that escape the
// root normalize to "".
func NormalizeKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "." || clean == "" || strings.HasPrefix(clean, "../") {
		return ""
	}
	return clean
}

func keyUnder(base, rawURL string) (string, bool) {
	base = strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(rawURL, base) {
		return "", false
	}
	key := NormalizeKey(strings.TrimPrefix(rawURL, base))
	return key, key != ""
}
