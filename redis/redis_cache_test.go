package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzguang83325/dbrecord"

	_ "modernc.org/sqlite"
)

func TestFullKey(t *testing.T) {
	assert.Equal(t, "dbrecord:__dbrecord_schema__:ab12:users", fullKey(dbrecord.SchemaCacheRepository, "ab12:users"))
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	b, err = encodeValue([]dbrecord.ColumnInfo{{Name: "id", IsPK: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"id","type":"","nullable":false,"is_pk":true,"is_auto_incr":false}]`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

// newLiveCache connects to DBRECORD_TEST_REDIS_ADDR and skips when it is unset
func newLiveCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("DBRECORD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DBRECORD_TEST_REDIS_ADDR not set")
	}
	rc, err := NewRedisCache(addr, "", os.Getenv("DBRECORD_TEST_REDIS_PASSWORD"), 0, 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		rc.CacheClearRepository("test_repo")
		_ = rc.Close()
	})
	return rc
}

func TestRedisCache_Live(t *testing.T) {
	rc := newLiveCache(t)

	rc.CacheSet("test_repo", "k1", "v1", time.Minute)
	rc.CacheSet("test_repo", "k2", map[string]int{"n": 1}, time.Minute)

	v, ok := rc.CacheGet("test_repo", "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	v, ok = rc.CacheGet("test_repo", "k2")
	require.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(v.([]byte)))

	rc.CacheDelete("test_repo", "k1")
	_, ok = rc.CacheGet("test_repo", "k1")
	assert.False(t, ok)

	rc.CacheClearRepository("test_repo")
	_, ok = rc.CacheGet("test_repo", "k2")
	assert.False(t, ok)

	st := rc.Status()
	assert.Equal(t, "RedisCache", st["type"])
	assert.Equal(t, 4, st["pool_size"])
}

func TestRedisCache_SchemaCacheRoundTrip(t *testing.T) {
	rc := newLiveCache(t)
	prev := dbrecord.GetSchemaCache()
	dbrecord.SetSchemaCache(rc, time.Minute)
	t.Cleanup(func() {
		rc.CacheClearRepository(dbrecord.SchemaCacheRepository)
		dbrecord.SetSchemaCache(prev, dbrecord.DefaultSchemaTTL)
	})

	dbrecord.MasterDbhDestroy()
	dbrecord.MasterConfig(&dbrecord.Config{
		Driver: "sqlite",
		DSN:    t.TempDir() + "/schema.db",
	})
	t.Cleanup(dbrecord.MasterDbhDestroy)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, err := dbrecord.Exec(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)")
	require.NoError(t, err)

	dbh, err := dbrecord.MasterDbh(ctx)
	require.NoError(t, err)
	first, err := dbh.Describe(ctx, "items")
	require.NoError(t, err)

	// 第二次读取来自 Redis 中的 JSON
	second, err := dbh.Describe(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
