package dbrecord

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCache_GetSetDelete(t *testing.T) {
	lc := NewLocalCache(0)
	defer lc.Close()

	lc.CacheSet("repo", "k", "v", 0)
	v, ok := lc.CacheGet("repo", "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = lc.CacheGet("other", "k")
	assert.False(t, ok)

	lc.CacheDelete("repo", "k")
	_, ok = lc.CacheGet("repo", "k")
	assert.False(t, ok)
}

func TestLocalCache_Expiry(t *testing.T) {
	lc := NewLocalCache(10 * time.Millisecond)
	defer lc.Close()

	lc.CacheSet("repo", "short", 1, 20*time.Millisecond)
	lc.CacheSet("repo", "forever", 2, 0)

	_, ok := lc.CacheGet("repo", "short")
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := lc.CacheGet("repo", "short")
		return !ok
	}, time.Second, 10*time.Millisecond)

	_, ok = lc.CacheGet("repo", "forever")
	assert.True(t, ok)
}

func TestLocalCache_ClearRepositoryAndStatus(t *testing.T) {
	lc := NewLocalCache(time.Minute)
	defer lc.Close()
	lc.Close()

	lc.CacheSet("a", "1", 1, 0)
	lc.CacheSet("a", "2", 2, 0)
	lc.CacheSet("b", "1", 1, 0)

	st := lc.Status()
	assert.Equal(t, "LocalCache", st["type"])
	assert.Equal(t, int64(3), st["total_items"])
	assert.Equal(t, int64(2), st["store_count"])

	lc.CacheClearRepository("a")
	st = lc.Status()
	assert.Equal(t, int64(1), st["total_items"])
}

func TestSetSchemaCache(t *testing.T) {
	prev := GetSchemaCache()
	t.Cleanup(func() { SetSchemaCache(prev, DefaultSchemaTTL) })

	lc := NewLocalCache(0)
	SetSchemaCache(lc, time.Minute)
	assert.Same(t, lc, GetSchemaCache())

	lc.CacheSet(SchemaCacheRepository, "x:t", []ColumnInfo{{Name: "id"}}, 0)
	ClearSchemaCache()
	_, ok := lc.CacheGet(SchemaCacheRepository, "x:t")
	assert.False(t, ok)

	SetSchemaCache(nil, 0)
	assert.NotNil(t, GetSchemaCache())
}

func TestDecodeColumns(t *testing.T) {
	want := []ColumnInfo{{Name: "id", Type: "int", IsPK: true}, {Name: "name", Type: "varchar(255)", Nullable: true}}

	cols, ok := decodeColumns(want)
	require.True(t, ok)
	assert.Equal(t, want, cols)

	raw, err := json.Marshal(want)
	require.NoError(t, err)
	cols, ok = decodeColumns(raw)
	require.True(t, ok)
	assert.Equal(t, want, cols)

	cols, ok = decodeColumns(string(raw))
	require.True(t, ok)
	assert.Equal(t, want, cols)

	var generic interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	cols, ok = decodeColumns(generic)
	require.True(t, ok)
	assert.Equal(t, want, cols)

	_, ok = decodeColumns(nil)
	assert.False(t, ok)
	_, ok = decodeColumns([]byte("not json"))
	assert.False(t, ok)
	_, ok = decodeColumns([]byte("[]"))
	assert.False(t, ok)
}
