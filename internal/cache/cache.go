// Package cache provides the expiring key-value capability shared across
// requests. Two backends are supported:
//
//   - Memory (in-process, for development/testing)
//   - Redis (distributed, for production)
//
// The verification code store depends on this interface only, never on a
// concrete backend.
package cache

import (
	"context"
	"time"
)

// Client defines the key-value operations.
type Client interface {
	// Get returns a value. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with a TTL. A ttl of 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments an integer value by one and returns the
	// new value, creating the key at 1 with the given TTL when absent.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Decr atomically decrements an integer value by one and returns the
	// new value. The key keeps its remaining TTL.
	Decr(ctx context.Context, key string) (int64, error)

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies the connection.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // prepended to every key
}

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New creates a client for the configured backend.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
