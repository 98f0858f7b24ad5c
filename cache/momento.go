package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/momentohq/client-sdk-go/auth"
	"github.com/momentohq/client-sdk-go/config"
	"github.com/momentohq/client-sdk-go/momento"
	"github.com/momentohq/client-sdk-go/responses"
	"github.com/sirupsen/logrus"
)

const generationKey = "submissions:cache-generation"

// MomentoCache stores query results in a Momento cache shared by every
// handler instance. Entries are written under a generation-prefixed key;
// InvalidateAll atomically increments the generation item, so entries from
// older generations become unreachable and age out by TTL.
type MomentoCache struct {
	client    momento.CacheClient
	cacheName string
	log       *logrus.Entry
}

func NewMomento(log *logrus.Logger) (*MomentoCache, error) {
	credentialProvider, err := auth.NewEnvMomentoTokenProvider("MOMENTO_AUTH_TOKEN")
	if err != nil {
		return nil, fmt.Errorf("failed to load Momento auth token: %v", err)
	}

	client, err := momento.NewCacheClient(config.LaptopLatest(), credentialProvider, DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Momento client: %v", err)
	}

	cacheName := os.Getenv("CACHE_NAME")
	if cacheName == "" {
		cacheName = "formsystem-cache"
	}

	c := &MomentoCache{
		client:    client,
		cacheName: cacheName,
		log:       log.WithField("component", "momento-cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.CreateCache(ctx, &momento.CreateCacheRequest{CacheName: cacheName}); err != nil {
		c.log.WithError(err).Warn("failed to ensure cache exists")
	}

	return c, nil
}

func (c *MomentoCache) Get(ctx context.Context, key string) ([]byte, bool) {
	gen, ok := c.generation(ctx)
	if !ok {
		return nil, false
	}

	resp, err := c.client.Get(ctx, &momento.GetRequest{
		CacheName: c.cacheName,
		Key:       momento.String(versionedKey(gen, key)),
	})
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache GET failed")
		return nil, false
	}

	switch r := resp.(type) {
	case *responses.GetHit:
		return r.ValueByte(), true
	default:
		return nil, false
	}
}

func (c *MomentoCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	gen, ok := c.generation(ctx)
	if !ok {
		return
	}

	if _, err := c.client.Set(ctx, &momento.SetRequest{
		CacheName: c.cacheName,
		Key:       momento.String(versionedKey(gen, key)),
		Value:     momento.Bytes(value),
		Ttl:       ttl,
	}); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache SET failed")
	}
}

func (c *MomentoCache) InvalidateAll(ctx context.Context) {
	if _, err := c.client.Increment(ctx, &momento.IncrementRequest{
		CacheName: c.cacheName,
		Field:     momento.String(generationKey),
		Amount:    1,
	}); err != nil {
		c.log.WithError(err).Warn("cache invalidation failed")
	}
}

// generation reads the current cache generation. A missing item means no
// invalidation happened within the generation item's lifetime: generation 0.
func (c *MomentoCache) generation(ctx context.Context) (int64, bool) {
	resp, err := c.client.Get(ctx, &momento.GetRequest{
		CacheName: c.cacheName,
		Key:       momento.String(generationKey),
	})
	if err != nil {
		c.log.WithError(err).Warn("cache generation read failed")
		return 0, false
	}

	switch r := resp.(type) {
	case *responses.GetHit:
		gen, err := strconv.ParseInt(string(r.ValueByte()), 10, 64)
		if err != nil {
			c.log.WithError(err).Warn("cache generation item is not a number")
			return 0, false
		}
		return gen, true
	default:
		return 0, true
	}
}

func versionedKey(generation int64, key string) string {
	return fmt.Sprintf("g%d:%s", generation, key)
}
