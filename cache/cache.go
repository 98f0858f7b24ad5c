// Package cache is the read-through cache in front of the submission store.
// It is a soft dependency: every backend failure is logged and reported as a
// miss or a no-op, never as an error to the caller.
package cache

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL bounds how long a cached query result may be served.
const DefaultTTL = time.Hour

type Cache interface {
	// Get returns the cached value for key, or false on miss, expiry, or
	// backend failure.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Put stores value under key for at most ttl. Best effort.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)

	// InvalidateAll drops every cached entry by advancing the cache
	// generation. Best effort.
	InvalidateAll(ctx context.Context)
}

// New returns a Momento-backed cache when MOMENTO_AUTH_TOKEN is set, and an
// in-process cache otherwise (local development and tests).
func New(log *logrus.Logger) Cache {
	if os.Getenv("MOMENTO_AUTH_TOKEN") == "" {
		log.Info("MOMENTO_AUTH_TOKEN not set, using in-process cache")
		return NewMemory()
	}
	c, err := NewMomento(log)
	if err != nil {
		log.WithError(err).Warn("momento cache unavailable, using in-process cache")
		return NewMemory()
	}
	return c
}
