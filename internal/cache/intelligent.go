// Package cache implements a multi-strategy in-memory cache used to keep
// leaderboard, achievement and stats reads cheap. Named caches carry
// independent TTL, size and eviction policy; snapshots of persistent caches
// round-trip through a pluggable Store.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/matchpulse/backend/internal/logger"
	"github.com/matchpulse/backend/internal/metrics"
	"go.uber.org/zap"
)

// Strategy selects the eviction policy of a named cache
type Strategy string

const (
	LRU  Strategy = "LRU"
	LFU  Strategy = "LFU"
	FIFO Strategy = "FIFO"
)

func (s Strategy) valid() bool {
	switch s {
	case LRU, LFU, FIFO:
		return true
	}
	return false
}

// Payloads below this size are never compressed
const compressionThreshold = 1024

// Adaptive sizing bounds relative to the configured max size
const (
	growFactor     = 1.2
	shrinkFactor   = 0.8
	maxGrowthRatio = 4
	minShrinkRatio = 4
	minCacheSize   = 8
)

// Config describes one named cache
type Config struct {
	TTL         time.Duration
	MaxSize     int
	Strategy    Strategy
	Persistent  bool
	Compression bool
}

// Stats is a point-in-time snapshot of one cache's counters
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	TotalSize  int64   `json:"total_size"`
	EntryCount int     `json:"entry_count"`
	HitRate    float64 `json:"hit_rate"`
}

type entry struct {
	Key          string
	Data         []byte
	Compressed   bool
	Timestamp    time.Time
	LastAccessed time.Time
	AccessCount  int64
	Size         int64
}

type namedCache struct {
	config  Config
	entries map[string]*entry
	stats   Stats
	// maxSize floats with the adaptive sizing job; config.MaxSize is the
	// configured baseline it is bounded against
	maxSize int
}

// Service manages all named caches and their background maintenance
type Service struct {
	mu     sync.RWMutex
	caches map[string]*namedCache
	store  Store

	sweepInterval  time.Duration
	resizeInterval time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates a cache service persisting snapshots through store.
// store may be nil when no cache is registered as persistent.
func New(store Store) *Service {
	return &Service{
		caches:         make(map[string]*namedCache),
		store:          store,
		sweepInterval:  time.Minute,
		resizeInterval: 5 * time.Minute,
		stopCh:         make(chan struct{}),
	}
}

// RegisterDefaults creates the standard caches used across the platform
func (s *Service) RegisterDefaults() error {
	defaults := []struct {
		name string
		cfg  Config
	}{
		{"achievements", Config{TTL: 30 * time.Minute, MaxSize: 500, Strategy: LRU, Persistent: true}},
		{"leaderboards", Config{TTL: time.Minute, MaxSize: 200, Strategy: LRU}},
		{"userStats", Config{TTL: 5 * time.Minute, MaxSize: 1000, Strategy: LRU}},
		{"events", Config{TTL: 10 * time.Minute, MaxSize: 300, Strategy: LFU}},
		{"apiResponses", Config{TTL: 30 * time.Second, MaxSize: 500, Strategy: FIFO}},
		{"images", Config{TTL: time.Hour, MaxSize: 100, Strategy: LFU, Persistent: true, Compression: true}},
	}
	for _, d := range defaults {
		if err := s.CreateCache(d.name, d.cfg); err != nil {
			return err
		}
	}
	return nil
}

// CreateCache registers a named cache. Persistent caches restore their last
// snapshot from the Store; a corrupt or missing snapshot starts empty.
func (s *Service) CreateCache(name string, cfg Config) error {
	if name == "" {
		return fmt.Errorf("cache name is required")
	}
	if !cfg.Strategy.valid() {
		return fmt.Errorf("unknown eviction strategy %q", cfg.Strategy)
	}
	if cfg.MaxSize <= 0 {
		return fmt.Errorf("cache %s: max size must be positive", name)
	}
	if cfg.TTL <= 0 {
		return fmt.Errorf("cache %s: ttl must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.caches[name]; exists {
		return fmt.Errorf("cache %s already exists", name)
	}

	c := &namedCache{
		config:  cfg,
		entries: make(map[string]*entry),
		maxSize: cfg.MaxSize,
	}

	if cfg.Persistent && s.store != nil {
		s.restoreLocked(name, c)
	}

	s.caches[name] = c

	logger.Log.Debug("Cache registered",
		zap.String("cache", name),
		zap.String("strategy", string(cfg.Strategy)),
		zap.Duration("ttl", cfg.TTL),
		zap.Int("max_size", cfg.MaxSize),
	)

	return nil
}

// Get returns the decompressed value for key, or (nil, false) on miss or
// expiry. Expired entries are deleted as a side effect of the failed read.
func (s *Service) Get(cacheName, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[cacheName]
	if !ok {
		return nil, false
	}

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		c.updateHitRate()
		metrics.Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
		return nil, false
	}

	now := time.Now()
	if now.Sub(e.Timestamp) > c.config.TTL {
		// Lazy expiry: a read of a stale entry deletes it and counts a miss
		c.removeEntry(key)
		c.stats.Misses++
		c.updateHitRate()
		metrics.Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
		s.persistLocked(cacheName, c)
		return nil, false
	}

	data, err := decode(e)
	if err != nil {
		// Treat undecodable data as absent rather than crashing the read:
		// the entry is dropped and the read counts a miss, like expiry
		logger.Log.Warn("Dropping corrupt cache entry",
			zap.String("cache", cacheName),
			zap.String("key", key),
			zap.Error(err),
		)
		c.removeEntry(key)
		c.stats.Misses++
		c.updateHitRate()
		metrics.Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
		s.persistLocked(cacheName, c)
		return nil, false
	}

	e.AccessCount++
	e.LastAccessed = now
	c.stats.Hits++
	c.updateHitRate()
	metrics.Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
	return data, true
}

// Set stores data under key, evicting per strategy when at capacity.
// Replacing an existing key adjusts size bookkeeping without double counting.
func (s *Service) Set(cacheName, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[cacheName]
	if !ok {
		return fmt.Errorf("cache %s does not exist", cacheName)
	}

	stored := data
	compressed := false
	if c.config.Compression && len(data) >= compressionThreshold {
		if gz, err := compress(data); err == nil && len(gz) < len(data) {
			stored = gz
			compressed = true
		}
	}

	if old, exists := c.entries[key]; exists {
		c.stats.TotalSize -= old.Size
		delete(c.entries, key)
	} else if len(c.entries) >= c.maxSize {
		evicted := c.evict(1)
		c.stats.Evictions += int64(evicted)
		metrics.Get().CacheEvictionsTotal.WithLabelValues(cacheName).Add(float64(evicted))
	}

	now := time.Now()
	e := &entry{
		Key:          key,
		Data:         stored,
		Compressed:   compressed,
		Timestamp:    now,
		LastAccessed: now,
		AccessCount:  0,
		Size:         int64(len(stored)),
	}
	c.entries[key] = e
	c.stats.TotalSize += e.Size
	c.stats.EntryCount = len(c.entries)

	metrics.Get().CacheEntryCount.WithLabelValues(cacheName).Set(float64(len(c.entries)))
	metrics.Get().CacheSizeBytes.WithLabelValues(cacheName).Set(float64(c.stats.TotalSize))

	s.persistLocked(cacheName, c)
	return nil
}

// SetJSON marshals v and stores it under key
func (s *Service) SetJSON(cacheName, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return s.Set(cacheName, key, data)
}

// GetJSON reads key and unmarshals it into target; false on miss
func (s *Service) GetJSON(cacheName, key string, target interface{}) bool {
	data, ok := s.Get(cacheName, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		logger.Log.Warn("Cached value failed to unmarshal",
			zap.String("cache", cacheName),
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Delete removes a single entry
func (s *Service) Delete(cacheName, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[cacheName]
	if !ok {
		return
	}
	c.removeEntry(key)
	s.persistLocked(cacheName, c)
}

// Clear removes all entries of a cache and resets its size accounting
func (s *Service) Clear(cacheName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[cacheName]
	if !ok {
		return
	}
	c.entries = make(map[string]*entry)
	c.stats.TotalSize = 0
	c.stats.EntryCount = 0
	if c.config.Persistent && s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.store.Delete(ctx, cacheName); err != nil {
			logger.WarnWithFields("Failed to delete cache snapshot", err)
		}
	}
}

// Stats returns a snapshot of one cache's counters
func (s *Service) Stats(cacheName string) (Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.caches[cacheName]
	if !ok {
		return Stats{}, false
	}
	st := c.stats
	st.EntryCount = len(c.entries)
	return st, true
}

// AllStats returns snapshots for every registered cache
func (s *Service) AllStats() map[string]Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Stats, len(s.caches))
	for name, c := range s.caches {
		st := c.stats
		st.EntryCount = len(c.entries)
		out[name] = st
	}
	return out
}

// Start launches the TTL sweeper and the adaptive sizing job
func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(2)
	go s.sweepLoop()
	go s.resizeLoop()
}

// Shutdown stops background jobs and flushes persistent caches
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		close(s.stopCh)
		s.started = false
	}
	for name, c := range s.caches {
		s.persistLocked(name, c)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired removes TTL-expired entries across all caches
func (s *Service) sweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for name, c := range s.caches {
		removed := 0
		for key, e := range c.entries {
			if now.Sub(e.Timestamp) > c.config.TTL {
				c.removeEntry(key)
				removed++
			}
		}
		if removed > 0 {
			logger.Log.Debug("Swept expired cache entries",
				zap.String("cache", name),
				zap.Int("removed", removed),
			)
			s.persistLocked(name, c)
		}
	}
}

func (s *Service) resizeLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.resizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.adjustSizes()
		}
	}
}

// adjustSizes grows hot near-capacity caches and shrinks cold sparse ones,
// bounded relative to each cache's configured size
func (s *Service) adjustSizes() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, c := range s.caches {
		occupancy := float64(len(c.entries)) / float64(c.maxSize)
		newSize := c.maxSize

		switch {
		case c.stats.HitRate > 80 && occupancy > 0.9:
			newSize = int(float64(c.maxSize) * growFactor)
			if ceiling := c.config.MaxSize * maxGrowthRatio; newSize > ceiling {
				newSize = ceiling
			}
		case c.stats.HitRate < 30 && occupancy < 0.5:
			newSize = int(float64(c.maxSize) * shrinkFactor)
			if floor := c.config.MaxSize / minShrinkRatio; newSize < floor {
				newSize = floor
			}
			if newSize < minCacheSize {
				newSize = minCacheSize
			}
		}

		if newSize != c.maxSize {
			logger.Log.Info("Adjusted cache size",
				zap.String("cache", name),
				zap.Int("old", c.maxSize),
				zap.Int("new", newSize),
				zap.Float64("hit_rate", c.stats.HitRate),
			)
			c.maxSize = newSize
			if over := len(c.entries) - c.maxSize; over > 0 {
				evicted := c.evict(over)
				c.stats.Evictions += int64(evicted)
			}
		}
	}
}

// evict removes exactly n victims chosen by the cache's strategy and
// returns how many were removed
func (c *namedCache) evict(n int) int {
	removed := 0
	for removed < n && len(c.entries) > 0 {
		victim := c.selectVictim()
		if victim == "" {
			break
		}
		c.removeEntry(victim)
		removed++
	}
	return removed
}

func (c *namedCache) selectVictim() string {
	var victim string
	switch c.config.Strategy {
	case LRU:
		var oldest time.Time
		for key, e := range c.entries {
			if victim == "" || e.LastAccessed.Before(oldest) {
				victim = key
				oldest = e.LastAccessed
			}
		}
	case LFU:
		var lowest int64
		for key, e := range c.entries {
			if victim == "" || e.AccessCount < lowest {
				victim = key
				lowest = e.AccessCount
			}
		}
	case FIFO:
		var oldest time.Time
		for key, e := range c.entries {
			if victim == "" || e.Timestamp.Before(oldest) {
				victim = key
				oldest = e.Timestamp
			}
		}
	}
	return victim
}

func (c *namedCache) removeEntry(key string) {
	if e, ok := c.entries[key]; ok {
		c.stats.TotalSize -= e.Size
		delete(c.entries, key)
		c.stats.EntryCount = len(c.entries)
	}
}

func (c *namedCache) updateHitRate() {
	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		c.stats.HitRate = 0
		return
	}
	c.stats.HitRate = float64(c.stats.Hits) / float64(total) * 100
}

// persistedEntry is the explicit serialization boundary for snapshots:
// timestamps round-trip as typed time.Time, payloads as base64
type persistedEntry struct {
	Key          string    `json:"key"`
	Data         []byte    `json:"data"`
	Compressed   bool      `json:"compressed"`
	Timestamp    time.Time `json:"timestamp"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int64     `json:"access_count"`
	Size         int64     `json:"size"`
}

type persistedCache struct {
	Entries []persistedEntry `json:"entries"`
	Stats   Stats            `json:"stats"`
}

// persistLocked writes a snapshot of a persistent cache through the Store.
// Failures are logged, never surfaced to the caller.
func (s *Service) persistLocked(name string, c *namedCache) {
	if !c.config.Persistent || s.store == nil {
		return
	}

	snap := persistedCache{
		Entries: make([]persistedEntry, 0, len(c.entries)),
		Stats:   c.stats,
	}
	for _, e := range c.entries {
		snap.Entries = append(snap.Entries, persistedEntry{
			Key:          e.Key,
			Data:         e.Data,
			Compressed:   e.Compressed,
			Timestamp:    e.Timestamp,
			LastAccessed: e.LastAccessed,
			AccessCount:  e.AccessCount,
			Size:         e.Size,
		})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		logger.WarnWithFields("Failed to marshal cache snapshot", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, name, data); err != nil {
		logger.Log.Warn("Failed to persist cache snapshot",
			zap.String("cache", name),
			zap.Error(err),
		)
	}
}

// restoreLocked loads a snapshot into a fresh cache; corrupt snapshots are
// treated as absent
func (s *Service) restoreLocked(name string, c *namedCache) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := s.store.Load(ctx, name)
	if err != nil {
		if !IsNotPersisted(err) {
			logger.Log.Warn("Failed to load cache snapshot",
				zap.String("cache", name),
				zap.Error(err),
			)
		}
		return
	}

	var snap persistedCache
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Log.Warn("Discarding corrupt cache snapshot",
			zap.String("cache", name),
			zap.Error(err),
		)
		return
	}

	for i := range snap.Entries {
		pe := snap.Entries[i]
		c.entries[pe.Key] = &entry{
			Key:          pe.Key,
			Data:         pe.Data,
			Compressed:   pe.Compressed,
			Timestamp:    pe.Timestamp,
			LastAccessed: pe.LastAccessed,
			AccessCount:  pe.AccessCount,
			Size:         pe.Size,
		}
	}
	c.stats = snap.Stats
	c.stats.EntryCount = len(c.entries)

	logger.Log.Info("Restored cache snapshot",
		zap.String("cache", name),
		zap.Int("entries", len(c.entries)),
	)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(e *entry) ([]byte, error) {
	if !e.Compressed {
		return e.Data, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(e.Data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
