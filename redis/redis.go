package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeCanvasKey = "canvases:active"

// Cache wraps the redis client. Every method is a no-op when redis was
// unreachable at startup: the service runs cache-less rather than failing.
type Cache struct {
	client *redis.Client
}

// New connects to redis. A connection failure downgrades to a nil client.
func New(address string) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Println("Redis not available. Running without Redis.")
		return &Cache{client: nil}
	}

	log.Println("Redis connected successfully.")
	return &Cache{client: client}
}

// NewDisabled returns a cache whose operations are all no-ops, for running
// without redis.
func NewDisabled() *Cache {
	return &Cache{}
}

// Get loads a cached JSON value into dest, reporting whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache marshal failed for %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("cache set failed for %s: %v", key, err)
	}
}

// GetVersion reads the data version behind a cache namespace; 0 when unset.
func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if c.client == nil {
		return 0
	}
	v, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return v
}

// IncrementVersion bumps the version key so stale cached pages are skipped
// on the next read instead of being invalidated one by one.
func (c *Cache) IncrementVersion(ctx context.Context, key string) {
	if c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		log.Printf("cache version bump failed for %s: %v", key, err)
	}
}

// TrackActive records that a canvas has live collaborative activity so the
// snapshot flusher picks it up on the next tick.
func (c *Cache) TrackActive(ctx context.Context, canvasID string) {
	if c.client == nil {
		return
	}
	if err := c.client.SAdd(ctx, activeCanvasKey, canvasID).Err(); err != nil {
		log.Printf("failed to track active canvas %s: %v", canvasID, err)
	}
}

// DrainActive atomically removes and returns the set of canvases marked
// active since the previous drain.
func (c *Cache) DrainActive(ctx context.Context) []string {
	if c.client == nil {
		return nil
	}
	pipe := c.client.TxPipeline()
	members := pipe.SMembers(ctx, activeCanvasKey)
	pipe.Del(ctx, activeCanvasKey)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("failed to drain active canvases: %v", err)
		return nil
	}
	return members.Val()
}
