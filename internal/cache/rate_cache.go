package cache

import (
	"sync"
	"time"

	"github.com/vyaparai/vyaparai/internal/clock"
	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
)

const DefaultRateTTL = 5 * time.Minute

// RateCache holds a snapshot of the GST rate table with bounded staleness.
// A stale snapshot is a miss, not an error: the caller reloads from the
// store of record and calls SetCategories/SetHSNMappings. One mutex guards
// both snapshots, so a read never observes a partially-written map.
type RateCache interface {
	GetCategories() (map[string]gstdomain.Category, bool)
	SetCategories(categories map[string]gstdomain.Category)
	GetCategory(code string) (gstdomain.Category, bool)
	GetHSNMapping(hsnCode string) (gstdomain.Category, bool)
	GetHSNMappings() (map[string]string, bool)
	SetHSNMappings(mappings map[string]string)
	InvalidateAll()
	InvalidateCategories()
	InvalidateHSN()
	Stats() gstdomain.CacheStats
}

type rateCache struct {
	mu sync.Mutex

	categories    map[string]gstdomain.Category
	categoriesAt  time.Time
	hsnToCategory map[string]string
	hsnAt         time.Time
	ttl           time.Duration
	clk           clock.Clock

	categoryHits   uint64
	categoryMisses uint64
	hsnHits        uint64
	hsnMisses      uint64
}

// NewRateCache returns a rate cache with the default 300s staleness window.
func NewRateCache() RateCache {
	return NewRateCacheWithOptions(DefaultRateTTL, clock.NewSystemClock())
}

func NewRateCacheWithOptions(ttl time.Duration, clk clock.Clock) RateCache {
	if ttl <= 0 {
		ttl = DefaultRateTTL
	}
	return &rateCache{
		categories:    make(map[string]gstdomain.Category),
		hsnToCategory: make(map[string]string),
		ttl:           ttl,
		clk:           clk,
	}
}

func (c *rateCache) GetCategories() (map[string]gstdomain.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.categoriesStaleLocked() {
		c.categoryMisses++
		return nil, false
	}
	c.categoryHits++

	snapshot := make(map[string]gstdomain.Category, len(c.categories))
	for code, category := range c.categories {
		snapshot[code] = category
	}
	return snapshot, true
}

func (c *rateCache) SetCategories(categories map[string]gstdomain.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replacement := make(map[string]gstdomain.Category, len(categories))
	for code, category := range categories {
		replacement[code] = category
	}
	c.categories = replacement
	c.categoriesAt = c.clk.Now()
}

func (c *rateCache) GetCategory(code string) (gstdomain.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.categoriesStaleLocked() {
		c.categoryMisses++
		return gstdomain.Category{}, false
	}
	category, ok := c.categories[code]
	if !ok {
		c.categoryMisses++
		return gstdomain.Category{}, false
	}
	c.categoryHits++
	return category, true
}

// GetHSNMapping tries the exact code, then its 4-digit prefix, in that order.
func (c *rateCache) GetHSNMapping(hsnCode string) (gstdomain.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hsnStaleLocked() || c.categoriesStaleLocked() {
		c.hsnMisses++
		return gstdomain.Category{}, false
	}

	code, ok := c.hsnToCategory[hsnCode]
	if !ok && len(hsnCode) > 4 {
		code, ok = c.hsnToCategory[hsnCode[:4]]
	}
	if !ok {
		c.hsnMisses++
		return gstdomain.Category{}, false
	}

	category, ok := c.categories[code]
	if !ok {
		c.hsnMisses++
		return gstdomain.Category{}, false
	}
	c.hsnHits++
	return category, true
}

func (c *rateCache) GetHSNMappings() (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hsnStaleLocked() {
		c.hsnMisses++
		return nil, false
	}
	c.hsnHits++

	snapshot := make(map[string]string, len(c.hsnToCategory))
	for hsn, code := range c.hsnToCategory {
		snapshot[hsn] = code
	}
	return snapshot, true
}

func (c *rateCache) SetHSNMappings(mappings map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replacement := make(map[string]string, len(mappings))
	for hsn, code := range mappings {
		replacement[hsn] = code
	}
	c.hsnToCategory = replacement
	c.hsnAt = c.clk.Now()
}

func (c *rateCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categoriesAt = time.Time{}
	c.hsnAt = time.Time{}
}

func (c *rateCache) InvalidateCategories() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categoriesAt = time.Time{}
}

func (c *rateCache) InvalidateHSN() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hsnAt = time.Time{}
}

func (c *rateCache) Stats() gstdomain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := gstdomain.CacheStats{
		CategoryHits:    c.categoryHits,
		CategoryMisses:  c.categoryMisses,
		HSNHits:         c.hsnHits,
		HSNMisses:       c.hsnMisses,
		CategoryCount:   len(c.categories),
		HSNCount:        len(c.hsnToCategory),
		CategoriesStale: c.categoriesStaleLocked(),
		HSNStale:        c.hsnStaleLocked(),
	}
	total := stats.CategoryHits + stats.CategoryMisses + stats.HSNHits + stats.HSNMisses
	if total > 0 {
		stats.HitRate = float64(stats.CategoryHits+stats.HSNHits) / float64(total)
	}
	return stats
}

func (c *rateCache) categoriesStaleLocked() bool {
	return c.categoriesAt.IsZero() || c.clk.Now().Sub(c.categoriesAt) > c.ttl
}

func (c *rateCache) hsnStaleLocked() bool {
	return c.hsnAt.IsZero() || c.clk.Now().Sub(c.hsnAt) > c.ttl
}
