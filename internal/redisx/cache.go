package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

// putIfNewer stores the snapshot only when its version is higher than the
// cached one, so out-of-order events can never roll the cache back.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'body', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// markStale drops the body but keeps a version floor of ARGV[1]-1, so the
// write that failed can still land while anything older stays out.
var markStale = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
local floor = tonumber(ARGV[1]) - 1
if floor > cur then cur = floor end
redis.call('HDEL', KEYS[1], 'body')
redis.call('HSET', KEYS[1], 'version', cur)
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

type SnapshotCache struct {
	rdb redis.Cmdable
}

func NewSnapshotCache(rdb redis.Cmdable) *SnapshotCache { return &SnapshotCache{rdb: rdb} }

// Put reports whether the snapshot replaced the cached one.
func (c *SnapshotCache) Put(ctx context.Context, a assets.Asset) (bool, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	key := fmt.Sprintf(KeyAssetSnapshot, a.ID)
	n, err := putIfNewer.Run(ctx, c.rdb, []string{key}, a.Version, body, TTLSnapshot.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *SnapshotCache) Get(ctx context.Context, id string) (assets.Asset, bool, error) {
	var a assets.Asset
	body, err := c.rdb.HGet(ctx, fmt.Sprintf(KeyAssetSnapshot, id), "body").Bytes()
	if errors.Is(err, redis.Nil) {
		return a, false, nil
	}
	if err != nil {
		return a, false, err
	}
	if err := json.Unmarshal(body, &a); err != nil {
		return a, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return a, true, nil
}

// MarkStale forces reads of the asset to miss until a snapshot at version or
// later is written.
func (c *SnapshotCache) MarkStale(ctx context.Context, id string, version int64) error {
	key := fmt.Sprintf(KeyAssetSnapshot, id)
	return markStale.Run(ctx, c.rdb, []string{key}, version, TTLSnapshot.Milliseconds()).Err()
}

// Refresh writes committed snapshots in place. A failed write marks the
// entry stale so reads fall back to the database.
func (c *SnapshotCache) Refresh(ctx context.Context, list []assets.Asset) error {
	var errs []error
	for _, a := range list {
		if _, err := c.Put(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("put %s: %w", a.ID, err))
			if err := c.MarkStale(ctx, a.ID, a.Version); err != nil {
				errs = append(errs, fmt.Errorf("mark stale %s: %w", a.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}
