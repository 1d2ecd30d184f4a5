package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/briefly-ai/briefly/tools/web_fetch/models"
)

const keyPrefix = "webfetch:"

// Fetcher matches web_fetch.WebFetcher without importing it, so the cache
// can wrap any fetcher.
type Fetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

// Cache memoizes successful fetch results in redis. Redis being down only
// costs the caching: lookups and stores are best-effort.
type Cache struct {
	next   Fetcher
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func New(next Fetcher, client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[FETCH-CACHE] ", log.LstdFlags),
	}
}

func (c *Cache) Exec(ctx context.Context, url string) (models.Result, error) {
	key := keyPrefix + url
	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var res models.Result
		if err := json.Unmarshal(data, &res); err == nil {
			return res, nil
		}
	} else if err != redis.Nil {
		c.logger.Printf("get %s: %v", url, err)
	}

	res, err := c.next.Exec(ctx, url)
	if err != nil {
		return res, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Printf("set %s: %v", url, err)
		}
	}
	return res, nil
}
