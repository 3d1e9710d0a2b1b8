package dbrecord

import (
	"sync"
	"time"
)

// CacheProvider interface defines the behavior of a cache provider. The package
// uses it for table descriptions; redis.NewRedisCache provides a shared one.
type CacheProvider interface {
	CacheGet(cacheRepositoryName, key string) (interface{}, bool)
	CacheSet(cacheRepositoryName, key string, value interface{}, ttl time.Duration)
	CacheDelete(cacheRepositoryName, key string)
	CacheClearRepository(cacheRepositoryName string)
	Status() map[string]interface{}
}

// cacheEntry represents a single item in the local cache
type cacheEntry struct {
	value      interface{}
	expiration time.Time
}

func (e cacheEntry) isExpired() bool {
	if e.expiration.IsZero() {
		return false
	}
	return time.Now().After(e.expiration)
}

// localCache implements CacheProvider using in-memory storage
type localCache struct {
	stores          sync.Map // cacheRepositoryName -> *sync.Map(key -> cacheEntry)
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewLocalCache creates an in-memory cache provider. A cleanup goroutine removes
// expired entries every cleanupInterval until Close is called.
func NewLocalCache(cleanupInterval time.Duration) *localCache {
	lc := &localCache{
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go lc.startCleanupTimer()
	}
	return lc
}

func (lc *localCache) startCleanupTimer() {
	ticker := time.NewTicker(lc.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lc.stopCh:
			return
		case <-ticker.C:
			lc.cleanupExpired()
		}
	}
}

// Close stops the cleanup goroutine
func (lc *localCache) Close() {
	lc.stopOnce.Do(func() { close(lc.stopCh) })
}

func (lc *localCache) cleanupExpired() {
	lc.stores.Range(func(_, store interface{}) bool {
		s := store.(*sync.Map)
		s.Range(func(key, value interface{}) bool {
			if value.(cacheEntry).isExpired() {
				s.Delete(key)
			}
			return true
		})
		return true
	})
}

func (lc *localCache) CacheGet(cacheRepositoryName, key string) (interface{}, bool) {
	if store, ok := lc.stores.Load(cacheRepositoryName); ok {
		if entry, ok := store.(*sync.Map).Load(key); ok {
			e := entry.(cacheEntry)
			if !e.isExpired() {
				return e.value, true
			}
			// 过期了，顺手删掉
			store.(*sync.Map).Delete(key)
		}
	}
	return nil, false
}

func (lc *localCache) CacheSet(cacheRepositoryName, key string, value interface{}, ttl time.Duration) {
	store, _ := lc.stores.LoadOrStore(cacheRepositoryName, &sync.Map{})
	var expiration time.Time
	if ttl > 0 {
		expiration = time.Now().Add(ttl)
	}
	store.(*sync.Map).Store(key, cacheEntry{value: value, expiration: expiration})
}

func (lc *localCache) CacheDelete(cacheRepositoryName, key string) {
	if store, ok := lc.stores.Load(cacheRepositoryName); ok {
		store.(*sync.Map).Delete(key)
	}
}

func (lc *localCache) CacheClearRepository(cacheRepositoryName string) {
	lc.stores.Delete(cacheRepositoryName)
}

func (lc *localCache) Status() map[string]interface{} {
	var items, stores int64
	lc.stores.Range(func(_, store interface{}) bool {
		stores++
		store.(*sync.Map).Range(func(_, _ interface{}) bool {
			items++
			return true
		})
		return true
	})
	return map[string]interface{}{
		"type":             "LocalCache",
		"cleanup_interval": lc.cleanupInterval.String(),
		"total_items":      items,
		"store_count":      stores,
	}
}

var (
	cacheMu     sync.RWMutex
	schemaCache CacheProvider = NewLocalCache(time.Minute)
	schemaTTL                 = DefaultSchemaTTL
)

// SetSchemaCache replaces the provider that caches table descriptions.
// A ttl of zero keeps entries until they are cleared.
func SetSchemaCache(provider CacheProvider, ttl time.Duration) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if provider == nil {
		provider = NewLocalCache(time.Minute)
	}
	schemaCache = provider
	schemaTTL = ttl
}

// GetSchemaCache returns the provider caching table descriptions
func GetSchemaCache() CacheProvider {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	return schemaCache
}

// ClearSchemaCache drops every cached table description
func ClearSchemaCache() {
	GetSchemaCache().CacheClearRepository(SchemaCacheRepository)
}
