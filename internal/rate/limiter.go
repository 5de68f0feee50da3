// Package rate implements a fixed-window request limiter over the shared
// expiring key-value store, so limits hold across instances when Redis
// backs the cache.
package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/dohyunkim-dev/authgate/internal/cache"
)

// Result reports one admission decision.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter admits or rejects a hit for a key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// FixedWindow counts hits per key in aligned windows: INCR with an expiry
// attached on the hit that opens the window.
type FixedWindow struct {
	kv     cache.Client
	prefix string
	max    int64
	window time.Duration
}

func NewFixedWindow(kv cache.Client, prefix string, max int, window time.Duration) *FixedWindow {
	if prefix == "" {
		prefix = "rl"
	}
	return &FixedWindow{kv: kv, prefix: prefix, max: int64(max), window: window}
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	winStart := time.Now().UTC().Truncate(l.window)
	k := fmt.Sprintf("%s:%s:%d", l.prefix, key, winStart.Unix())

	hits, err := l.kv.Incr(ctx, k, l.window)
	if err != nil {
		return Result{}, err
	}

	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: hits <= l.max, Remaining: remaining}
	if !res.Allowed {
		res.RetryAfter = time.Until(winStart.Add(l.window))
		if res.RetryAfter < 0 {
			res.RetryAfter = 0
		}
	}
	return res, nil
}
