// Package redis provides a dbrecord.CacheProvider backed by Redis, so that many
// processes share the cached table descriptions.
//
//	cache, err := redis.NewRedisCache("127.0.0.1:6379", "", "", 0)
//	dbrecord.SetSchemaCache(cache, 10*time.Minute)
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/zzguang83325/dbrecord"
)

const keyPrefix = "dbrecord"

// 单次 Redis 操作超时，缓存失败时退回数据库查询
const opTimeout = 2 * time.Second

// RedisCache implements dbrecord.CacheProvider using Redis. Values are stored as
// JSON and returned as raw bytes; dbrecord decodes them.
type RedisCache struct {
	client *goredis.Client
}

// NewRedisCache 创建一个新的 Redis 缓存提供者
// 参数说明：
//   - addr: Redis 服务器地址，格式 "host:port"
//   - username: 用户名（Redis 6.0+），为空则不使用
//   - password: 密码，为空则不使用
//   - db: 数据库编号
//   - maxConnections: 可选，最大连接数，不传或传 0 使用默认值
func NewRedisCache(addr, username, password string, db int, maxConnections ...int) (*RedisCache, error) {
	opts := &goredis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	}

	if len(maxConnections) > 0 && maxConnections[0] > 0 {
		poolSize := maxConnections[0]
		opts.PoolSize = poolSize
		opts.MinIdleConns = poolSize / 10
		opts.PoolTimeout = 5 * time.Second
	}

	return NewRedisCacheWithOptions(opts)
}

// NewRedisCacheWithOptions creates the provider from full client options and pings the server
func NewRedisCacheWithOptions(opts *goredis.Options) (*RedisCache, error) {
	rc := &RedisCache{client: goredis.NewClient(opts)}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := rc.client.Ping(ctx).Err(); err != nil {
		_ = rc.client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rc, nil
}

func fullKey(cacheRepositoryName, key string) string {
	return keyPrefix + ":" + cacheRepositoryName + ":" + key
}

// encodeValue 字符串和字节切片原样保存，其他值序列化为 JSON
func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

// CacheGet returns the stored bytes
func (r *RedisCache) CacheGet(cacheRepositoryName, key string) (interface{}, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, fullKey(cacheRepositoryName, key)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			dbrecord.LogWarn("redis cache get failed", map[string]interface{}{"key": fullKey(cacheRepositoryName, key), "error": err.Error()})
		}
		return nil, false
	}
	return val, true
}

func (r *RedisCache) CacheSet(cacheRepositoryName, key string, value interface{}, ttl time.Duration) {
	k := fullKey(cacheRepositoryName, key)
	data, err := encodeValue(value)
	if err != nil {
		dbrecord.LogWarn("redis cache marshal failed", map[string]interface{}{"key": k, "error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := r.client.Set(ctx, k, data, ttl).Err(); err != nil {
		dbrecord.LogWarn("redis cache set failed", map[string]interface{}{"key": k, "error": err.Error()})
	}
}

func (r *RedisCache) CacheDelete(cacheRepositoryName, key string) {
	if cacheRepositoryName == "" || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	r.client.Del(ctx, fullKey(cacheRepositoryName, key))
}

// CacheClearRepository 清空指定存储库的所有缓存
func (r *RedisCache) CacheClearRepository(cacheRepositoryName string) {
	if cacheRepositoryName == "" {
		return // 避免误删除所有缓存
	}
	r.deletePattern(fullKey(cacheRepositoryName, "*"))
}

// ClearAll removes every key written by dbrecord
func (r *RedisCache) ClearAll() {
	r.deletePattern(keyPrefix + ":*")
}

func (r *RedisCache) deletePattern(pattern string) {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		r.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		dbrecord.LogWarn("redis cache scan failed", map[string]interface{}{"pattern": pattern, "error": err.Error()})
	}
}

func (r *RedisCache) Status() map[string]interface{} {
	opts := r.client.Options()
	poolStats := r.client.PoolStats()
	stats := map[string]interface{}{
		"type":             "RedisCache",
		"address":          opts.Addr,
		"pool_size":        opts.PoolSize,
		"pool_hits":        poolStats.Hits,
		"pool_misses":      poolStats.Misses,
		"pool_timeouts":    poolStats.Timeouts,
		"pool_total_conns": poolStats.TotalConns,
		"pool_idle_conns":  poolStats.IdleConns,
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if dbSize, err := r.client.DBSize(ctx).Result(); err == nil {
		stats["db_size"] = dbSize
	}
	return stats
}

// Close closes the Redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}
