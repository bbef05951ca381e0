package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/playperu/expedition/internal/objectstore"
)

var ErrMissing = errors.New("compositor: asset missing")

// Assets resolves layer keys to decoded images.
type Assets interface {
	// Image returns ErrMissing when no asset exists under key.
	Image(ctx context.Context, key string) (image.Image, error)
	URL(key string) string
}

// staticPrefix holds the fixed map art. Everything else (uploaded paths,
// snapshots) gets a fresh key per upload and is never kept.
const staticPrefix = "maps/"

// ObjectAssets decodes layers out of an object store. Static map art is
// decoded once and kept; concurrent loads of one key share a fetch.
type ObjectAssets struct {
	store objectstore.Store
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]image.Image
}

func NewObjectAssets(store objectstore.Store) *ObjectAssets {
	return &ObjectAssets{store: store, cache: make(map[string]image.Image)}
}

func (a *ObjectAssets) Image(ctx context.Context, key string) (image.Image, error) {
	a.mu.RLock()
	img, ok := a.cache[key]
	a.mu.RUnlock()
	if ok {
		return img, nil
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		raw, err := a.store.Get(ctx, key)
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, ErrMissing
		}
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", key, err)
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
		if strings.HasPrefix(key, staticPrefix) {
			a.mu.Lock()
			a.cache[key] = img
			a.mu.Unlock()
		}
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (a *ObjectAssets) URL(key string) string { return a.store.URL(key) }

// Cached reports how many decoded images are held.
func (a *ObjectAssets) Cached() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}
