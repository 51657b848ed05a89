package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/dept-service/internal/domain"
)

const (
	// DepartmentSnapshotGenerationKey counts invalidations; every write bumps it.
	DepartmentSnapshotGenerationKey = "dept:snapshot:gen"
	departmentSnapshotKeyPrefix     = "dept:snapshot:v1:"
)

// DepartmentSnapshotKey is the redis key holding the department list cached for generation gen.
func DepartmentSnapshotKey(gen int64) string {
	return departmentSnapshotKeyPrefix + strconv.FormatInt(gen, 10)
}

// SnapshotCache stores the flat list of live departments between writes.
//
// Get reports the current generation even on a miss. Callers load the list after Get and pass
// that generation to Set, so a list loaded before a concurrent Invalidate is stored under a
// generation nobody reads any more.
type SnapshotCache interface {
	Get(ctx context.Context) (records []domain.Department, gen int64, hit bool, err error)
	Set(ctx context.Context, gen int64, records []domain.Department) error
	Invalidate(ctx context.Context) error
}

type redisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshotCache returns a redis-backed cache. A nil client or a zero ttl yields a
// cache that never hits.
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) SnapshotCache {
	if client == nil || ttl <= 0 {
		return NoopSnapshotCache{}
	}
	return &redisSnapshotCache{client: client, ttl: ttl}
}

func (c *redisSnapshotCache) Get(ctx context.Context) ([]domain.Department, int64, bool, error) {
	gen, err := c.client.Get(ctx, DepartmentSnapshotGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	raw, err := c.client.Get(ctx, DepartmentSnapshotKey(gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, false, nil
		}
		return nil, gen, false, err
	}
	var records []domain.Department
	if err := sonic.Unmarshal(raw, &records); err != nil {
		return nil, gen, false, fmt.Errorf("decode department snapshot: %w", err)
	}
	return records, gen, true, nil
}

// Set stores records for gen. The write is skipped when gen is no longer current, and a stale
// generation key is unreachable anyway, so the check only saves a round of memory.
func (c *redisSnapshotCache) Set(ctx context.Context, gen int64, records []domain.Department) error {
	if records == nil {
		records = []domain.Department{}
	}
	raw, err := sonic.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode department snapshot: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, DepartmentSnapshotGenerationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, DepartmentSnapshotKey(gen), raw, c.ttl)
			return nil
		})
		return err
	}, DepartmentSnapshotGenerationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *redisSnapshotCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, DepartmentSnapshotGenerationKey).Err()
}

// NoopSnapshotCache disables snapshot caching.
type NoopSnapshotCache struct{}

func (NoopSnapshotCache) Get(context.Context) ([]domain.Department, int64, bool, error) {
	return nil, 0, false, nil
}

func (NoopSnapshotCache) Set(context.Context, int64, []domain.Department) error { return nil }

func (NoopSnapshotCache) Invalidate(context.Context) error { return nil }
