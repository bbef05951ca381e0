// Package imagecache caches rendered square images keyed by their render
// inputs.
package imagecache

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

var ErrMiss = errors.New("imagecache: miss")

type Cache interface {
	// Get returns ErrMiss when key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	// Invalidate drops every entry for square.
	Invalidate(ctx context.Context, square string) error
}

// Key builds a cache key for square from the render inputs. Entries for one
// square share a prefix so they can be invalidated together.
func Key(square string, parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return "square-image:" + square + ":" + hex.EncodeToString(sum[:12])
}

func squarePrefix(square string) string { return "square-image:" + square + ":" }

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (c *Redis) Set(ctx context.Context, key string, data []byte) error {
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, square string) error {
	iter := c.client.Scan(ctx, 0, squarePrefix(square)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process cache used when no redis is configured.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]entry), now: time.Now}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, ErrMiss
	}
	return e.data, nil
}

func (c *Memory) Set(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{data: data, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *Memory) Invalidate(_ context.Context, square string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := squarePrefix(square)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}
