package redis

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	ckanLogger "github.com/geromet/CKAN/utils/logger"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func CacheKeyBuilder(c *fiber.Ctx, namespace string) string {
	fullPath := c.Path()
	queryString := c.Context().QueryArgs().String()
	queryHash := "none"
	if queryString != "" {
		hash := md5.Sum([]byte(queryString))
		queryHash = hex.EncodeToString(hash[:])
	}
	return fmt.Sprintf("%s:%s:query=%s", namespace, fullPath, queryHash)
}

func (r *RegistryRedisManager) SetCache(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		ckanLogger.Errorf("Failed to marshal cache value for key %s: %v", key, err)
		return err
	}
	if err := r.Redis.Set(ctx, key, data, ttl).Err(); err != nil {
		ckanLogger.Errorf("Failed to set redis cache for key %s: %v", key, err)
		return err
	}
	return nil
}

func (r *RegistryRedisManager) GetCache(ctx context.Context, key string, out any) (bool, error) {
	val, err := r.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		ckanLogger.Errorf("Failed to get redis cache for key %s: %v", key, err)
		return false, err
	}
	if err := sonic.Unmarshal([]byte(val), out); err != nil {
		ckanLogger.Errorf("Failed to unmarshal cache value for key %s: %v", key, err)
		return true, err
	}
	return true, nil
}

// SetCacheBytes stores an opaque payload, used for msgpack packed
// documents that must not go through a JSON round trip.
func (r *RegistryRedisManager) SetCacheBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := r.Redis.Set(ctx, key, data, ttl).Err(); err != nil {
		ckanLogger.Errorf("Failed to set redis cache for key %s: %v", key, err)
		return err
	}
	return nil
}

func (r *RegistryRedisManager) GetCacheBytes(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		ckanLogger.Errorf("Failed to get redis cache for key %s: %v", key, err)
		return nil, false, err
	}
	return val, true, nil
}

func (r *RegistryRedisManager) DeleteCache(ctx context.Context, key string) error {
	if err := r.Redis.Del(ctx, key).Err(); err != nil {
		ckanLogger.Errorf("Failed to delete redis cache for key %s: %v", key, err)
		return err
	}
	return nil
}

// DeleteCachePattern removes every key matching pattern. Public
// responses are cached under hashed query strings, so invalidation has
// to scan rather than name keys directly.
func (r *RegistryRedisManager) DeleteCachePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, newCursor, err := r.Redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			ckanLogger.Errorf("Redis scan error for pattern %s: %v", pattern, err)
			return err
		}
		if len(keys) > 0 {
			if err := r.Redis.Del(ctx, keys...).Err(); err != nil {
				ckanLogger.Errorf("Redis del error for pattern %s: %v", pattern, err)
				return err
			}
		}
		cursor = newCursor
		if cursor == 0 {
			break
		}
	}
	return nil
}

// ClearModuleCache drops everything cached for one module plus the
// index pages that embed its summary.
func (r *RegistryRedisManager) ClearModuleCache(ctx context.Context, identifier string) error {
	if err := r.DeleteCache(ctx, BuildModuleDocKey(identifier)); err != nil {
		return err
	}
	if err := r.DeleteCachePattern(ctx, ModuleCachePattern(identifier)); err != nil {
		return err
	}
	return r.DeleteCachePattern(ctx, ModuleIndexPattern())
}
