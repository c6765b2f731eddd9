package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redtrack-io/redtrack/internal/metrics"
)

// LocalCache is an in-process permission cache with TTL expiry and LRU eviction.
type LocalCache struct {
	mu     sync.Mutex
	items  map[string]*localItem
	stats  LocalCacheStats
	stopCh chan struct{}
	once   sync.Once
	config LocalCacheConfig
}

type localItem struct {
	perms      []string
	expiresAt  time.Time
	accessedAt time.Time
}

// LocalCacheConfig configures a LocalCache.
type LocalCacheConfig struct {
	MaxSize         int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// LocalCacheStats tracks local cache statistics
type LocalCacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
	Size      int64
}

// NewLocalCache creates a local cache and starts its cleanup goroutine.
// Call Stop to release it.
func NewLocalCache(config LocalCacheConfig) *LocalCache {
	if config.MaxSize <= 0 {
		config.MaxSize = 10000
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	lc := &LocalCache{
		items:  make(map[string]*localItem),
		stopCh: make(chan struct{}),
		config: config,
	}
	go lc.cleanupLoop(config.CleanupInterval)
	return lc
}

func (lc *LocalCache) Get(ctx context.Context, key string) ([]string, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := time.Now()
	item, exists := lc.items[key]
	if !exists || now.After(item.expiresAt) {
		lc.stats.Misses++
		metrics.CacheRequests.WithLabelValues("local", "miss").Inc()
		return nil, false
	}

	item.accessedAt = now
	lc.stats.Hits++
	metrics.CacheRequests.WithLabelValues("local", "hit").Inc()
	return append([]string(nil), item.perms...), true
}

func (lc *LocalCache) Set(ctx context.Context, key string, perms []string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if _, exists := lc.items[key]; !exists && len(lc.items) >= lc.config.MaxSize {
		lc.evictLRU()
	}

	now := time.Now()
	lc.items[key] = &localItem{
		perms:      append([]string(nil), perms...),
		expiresAt:  now.Add(lc.config.DefaultTTL),
		accessedAt: now,
	}
	lc.stats.Sets++
}

// Purge removes all items.
func (lc *LocalCache) Purge(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.items = make(map[string]*localItem)
	return nil
}

// Stats returns a snapshot of the cache counters.
func (lc *LocalCache) Stats() LocalCacheStats {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	s := lc.stats
	s.Size = int64(len(lc.items))
	return s
}

// evictLRU removes the least recently used item
func (lc *LocalCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range lc.items {
		if oldestKey == "" || item.accessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessedAt
		}
	}

	if oldestKey != "" {
		delete(lc.items, oldestKey)
		lc.stats.Evictions++
	}
}

func (lc *LocalCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lc.cleanup()
		case <-lc.stopCh:
			return
		}
	}
}

// cleanup removes expired items
func (lc *LocalCache) cleanup() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := time.Now()
	for key, item := range lc.items {
		if now.After(item.expiresAt) {
			delete(lc.items, key)
			lc.stats.Evictions++
		}
	}
}

// Stop stops the cleanup goroutine
func (lc *LocalCache) Stop() {
	lc.once.Do(func() { close(lc.stopCh) })
}
