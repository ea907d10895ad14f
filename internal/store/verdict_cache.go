package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerdictCache keeps the most recent scan and verdict payloads in redis so
// read endpoints don't hit postgres on every poll.
type VerdictCache struct{ rdb *redis.Client }

func NewVerdictCache(rdb *redis.Client) *VerdictCache { return &VerdictCache{rdb: rdb} }

const (
	lastScanKey    = "verifier:last:scan"
	lastVerdictKey = "verifier:last:verdict"
	cacheTTL       = 24 * time.Hour
)

func (c *VerdictCache) SetScan(ctx context.Context, scanJSON []byte) error {
	return c.rdb.Set(ctx, lastScanKey, scanJSON, cacheTTL).Err()
}

func (c *VerdictCache) Scan(ctx context.Context) ([]byte, error) {
	b, err := c.rdb.Get(ctx, lastScanKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return b, err
}

func (c *VerdictCache) SetVerdict(ctx context.Context, verdictJSON []byte) error {
	return c.rdb.Set(ctx, lastVerdictKey, verdictJSON, cacheTTL).Err()
}

func (c *VerdictCache) Verdict(ctx context.Context) ([]byte, error) {
	b, err := c.rdb.Get(ctx, lastVerdictKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return b, err
}
