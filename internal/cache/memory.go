package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implements Client in-process. Useful for development and
// testing; not shared across instances.
type memoryClient struct {
	prefix string
	c      *gocache.Cache

	// guards Decr's read-modify-write; go-cache only decrements values it
	// stored as integers, ours are strings.
	mu sync.Mutex
}

// NewMemory creates an in-memory client.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.c.Get(c.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.c.Set(c.key(key), value, ttl)
	return nil
}

func (c *memoryClient) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(key)
	v, exp, ok := c.c.GetWithExpiration(k)
	if !ok {
		if ttl <= 0 {
			ttl = gocache.NoExpiration
		}
		c.c.Set(k, "1", ttl)
		return 1, nil
	}
	s, _ := v.(string)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	remaining := time.Duration(gocache.NoExpiration)
	if !exp.IsZero() {
		remaining = time.Until(exp)
	}
	c.c.Set(k, strconv.FormatInt(n, 10), remaining)
	return n, nil
}

func (c *memoryClient) Decr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(key)
	v, exp, ok := c.c.GetWithExpiration(k)
	if !ok {
		// Mirror redis DECR: missing key starts from 0.
		c.c.Set(k, "-1", gocache.NoExpiration)
		return -1, nil
	}
	s, _ := v.(string)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	n--
	ttl := time.Duration(gocache.NoExpiration)
	if !exp.IsZero() {
		ttl = time.Until(exp)
	}
	c.c.Set(k, strconv.FormatInt(n, 10), ttl)
	return n, nil
}

func (c *memoryClient) Delete(ctx context.Context, key string) error {
	c.c.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.c.Get(c.key(key))
	return ok, nil
}

func (c *memoryClient) Ping(ctx context.Context) error { return nil }

func (c *memoryClient) Close() error { return nil }
