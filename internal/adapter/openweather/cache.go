package openweather

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/couchcryptid/order-geo-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/uber/h3-go/v4"
)

// cellResolution is the H3 resolution of the cache key; a resolution-7 cell
// spans about 5 km², well inside the extent of a weather report.
const cellResolution = 7

// Fetcher is the uncached weather source.
type Fetcher interface {
	Configured() bool
	Fetch(ctx context.Context, lat, lng float64) (domain.WeatherCondition, error)
}

// CachedProvider implements domain.WeatherProvider over a Fetcher. Successful
// lookups are cached per H3 cell for ttl; failures report clear and are not
// cached. Every fetch counts as one openweathermap usage attempt.
type CachedProvider struct {
	fetcher  Fetcher
	cache    *lruCache
	usage    domain.UsageTracker
	location *time.Location
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// Option customizes a CachedProvider.
type Option func(*CachedProvider)

// WithClock replaces the real clock used for expiry and usage days.
func WithClock(c clockwork.Clock) Option {
	return func(p *CachedProvider) { p.clock = c }
}

// WithLocation sets the time zone that defines a usage calendar day.
func WithLocation(loc *time.Location) Option {
	return func(p *CachedProvider) {
		if loc != nil {
			p.location = loc
		}
	}
}

// NewCachedProvider creates a caching weather provider.
func NewCachedProvider(fetcher Fetcher, usage domain.UsageTracker, ttl time.Duration, maxEntries int,
	metrics *observability.Metrics, logger *slog.Logger, opts ...Option,
) *CachedProvider {
	if usage == nil {
		usage = domain.NopUsageTracker{}
	}
	p := &CachedProvider{
		fetcher:  fetcher,
		usage:    usage,
		location: time.UTC,
		clock:    clockwork.NewRealClock(),
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cache = newLRUCache(maxEntries, ttl, p.clock)
	return p
}

// CurrentCondition never fails; an unconfigured fetcher, an invalid point or
// a failed request all report WeatherClear.
func (p *CachedProvider) CurrentCondition(ctx context.Context, lat, lng float64) domain.WeatherCondition {
	if !p.fetcher.Configured() {
		return domain.WeatherClear
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), cellResolution)
	if err != nil {
		p.logger.Warn("weather cell lookup failed", "lat", lat, "lng", lng, "error", err)
		return domain.WeatherClear
	}

	if cond, ok := p.cache.get(cell); ok {
		p.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return cond
	}
	p.metrics.WeatherCache.WithLabelValues("miss").Inc()

	if err := p.usage.RecordAttempt(ctx, domain.ProviderOpenWeatherMap, domain.CalendarDay(p.clock.Now().In(p.location))); err != nil {
		p.metrics.ObserveUsageError(domain.ProviderOpenWeatherMap)
		p.logger.Warn("record provider usage failed", "provider", domain.ProviderOpenWeatherMap, "error", err)
	}

	cond, err := p.fetcher.Fetch(ctx, lat, lng)
	if err != nil {
		p.metrics.WeatherFetch.WithLabelValues("error").Inc()
		p.logger.Warn("weather lookup failed, assuming clear", "error", err)
		return domain.WeatherClear
	}
	p.metrics.WeatherFetch.WithLabelValues("success").Inc()

	p.cache.put(cell, cond)
	return cond
}

// lruCache is a thread-safe LRU cache of conditions with per-entry expiry.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[h3.Cell]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     h3.Cell
	value   domain.WeatherCondition
	expires time.Time
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[h3.Cell]*entry),
	}
}

func (c *lruCache) get(key h3.Cell) (domain.WeatherCondition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return "", false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key h3.Cell, value domain.WeatherCondition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
