package cache

import (
	"time"

	"affiliate-redirector/config"
	"affiliate-redirector/model"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"
)

// linkCost is the approximate in-memory size charged per cached link.
const linkCost = 1024

// Cache keeps resolved affiliate links in-process so the hot redirect path
// usually skips the store read. Entries expire on a short TTL; click
// counters are never cached (they are only shown on the stats surface).
type Cache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

// New creates a cache instance with the given configuration.
func New(cfg config.CacheConfig) (*Cache, error) {
	maxCost := int64(cfg.MaxSizeMB) * 1024 * 1024

	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(cfg.CounterSize), // keys tracked for admission frequency
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("max_size_mb", cfg.MaxSizeMB).
		Int("ttl_seconds", cfg.TTLSeconds).
		Msg("Link cache initialized")

	return &Cache{
		client: client,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

// GetLink retrieves a cached link by slug.
func (c *Cache) GetLink(slug string) (model.AffiliateLink, bool) {
	if c == nil || c.client == nil {
		return model.AffiliateLink{}, false
	}
	value, found := c.client.Get(slug)
	if !found {
		return model.AffiliateLink{}, false
	}
	link, ok := value.(model.AffiliateLink)
	return link, ok
}

// SetLink stores a resolved link with the configured TTL.
func (c *Cache) SetLink(slug string, link model.AffiliateLink) {
	if c == nil || c.client == nil {
		return
	}
	c.client.SetWithTTL(slug, link, linkCost, c.ttl)
}

// Delete removes a slug from the cache.
func (c *Cache) Delete(slug string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(slug)
}

// Close cleanly shuts down the cache.
func (c *Cache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
		log.Info().Msg("Link cache closed")
	}
}

// MetricsSnapshot is the JSON view served by the metrics endpoint.
type MetricsSnapshot struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	KeysAdded   uint64  `json:"keys_added"`
	KeysEvicted uint64  `json:"keys_evicted"`
	HitRatio    float64 `json:"hit_ratio"`
	TTLSeconds  int     `json:"ttl_seconds"`
}

// GetMetricsSnapshot returns current cache metrics as a snapshot.
func (c *Cache) GetMetricsSnapshot() MetricsSnapshot {
	if c == nil || c.client == nil || c.client.Metrics == nil {
		return MetricsSnapshot{}
	}

	m := c.client.Metrics
	hits := m.Hits()
	misses := m.Misses()
	total := hits + misses

	hitRatio := 0.0
	if total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return MetricsSnapshot{
		Hits:        hits,
		Misses:      misses,
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		HitRatio:    hitRatio,
		TTLSeconds:  int(c.ttl.Seconds()),
	}
}
