package infra

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStockCache keeps vehicle stock per tenant in one hash,
// inventario:{tenant_id} → {producto_id: cantidad}. Invalidation drops the
// whole hash and bumps inventario:{tenant_id}:gen; the next read repopulates
// from Postgres. Cache errors are logged and treated as misses, Postgres stays
// the source of truth.
type RedisStockCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStockCache(rdb *redis.Client, ttl time.Duration) *RedisStockCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStockCache{rdb: rdb, ttl: ttl}
}

func stockKey(tenantID uuid.UUID) string { return "inventario:" + tenantID.String() }

func genKey(tenantID uuid.UUID) string { return stockKey(tenantID) + ":gen" }

func (c *RedisStockCache) Get(ctx context.Context, tenantID, productoID uuid.UUID) (int, bool) {
	raw, err := c.rdb.HGet(ctx, stockKey(tenantID), productoID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false
	}
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("stock_cache: get failed")
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Generacion returns the tenant's invalidation counter. Read it before loading
// from Postgres and hand it to Set. A negative value means unknown, and Set
// skips it.
func (c *RedisStockCache) Generacion(ctx context.Context, tenantID uuid.UUID) int64 {
	gen, err := c.rdb.Get(ctx, genKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("stock_cache: generation read failed")
		return -1
	}
	return gen
}

// Set stores cantidad only if no invalidation happened since gen was read.
// WATCH on the generation key makes the check and the write atomic.
func (c *RedisStockCache) Set(ctx context.Context, tenantID, productoID uuid.UUID, cantidad int, gen int64) {
	if gen < 0 {
		return
	}
	key, gk := stockKey(tenantID), genKey(tenantID)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		actual, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if actual != gen {
			return errGeneracionVieja
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, productoID.String(), cantidad)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, gk)
	switch {
	case err == nil:
	case errors.Is(err, errGeneracionVieja), errors.Is(err, redis.TxFailedErr):
		log.Debug().Str("tenant_id", tenantID.String()).Msg("stock_cache: stale value not cached")
	default:
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("stock_cache: set failed")
	}
}

var errGeneracionVieja = errors.New("stock_cache: generation changed")

func (c *RedisStockCache) Invalidar(ctx context.Context, tenantID uuid.UUID) {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, stockKey(tenantID))
	pipe.Incr(ctx, genKey(tenantID))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("stock_cache: invalidate failed")
	}
}
