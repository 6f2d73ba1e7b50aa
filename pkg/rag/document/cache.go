package document

import (
	"context"
	"encoding/json"
	"time"

	"ai-study-portal-be/pkg/store"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheTTL = 30 * time.Minute
	cacheKeyPrefix  = "doc_text:"
)

// TextCache is a read-through cache of extracted document text in redis.
// Extracted text never changes after upload, so entries are only expired.
type TextCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTextCache(rdb *redis.Client, ttl time.Duration) *TextCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &TextCache{rdb: rdb, ttl: ttl}
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}

// GetMany returns the cached documents among ids
func (c *TextCache) GetMany(ctx context.Context, ids []string) (map[string]store.Document, error) {
	found := make(map[string]store.Document, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var doc store.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		found[ids[i]] = doc
	}
	return found, nil
}

func (c *TextCache) SetMany(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, d := range docs {
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		pipe.Set(ctx, cacheKey(d.ID), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
