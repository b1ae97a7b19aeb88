package cache

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/urlrisk/internal/model"
)

const (
	// DefaultMaxEntries is the default entry ceiling.
	DefaultMaxEntries = 50
	// DefaultEvictBatch is the default number of entries evicted on overflow.
	DefaultEvictBatch = 10
	// DefaultTTL is the default entry lifetime.
	DefaultTTL = 15 * time.Minute
)

// entry is a cached result with its insertion time. seq orders entries
// stored at the same instant.
type entry struct {
	key       string
	value     *model.ScanResult
	timestamp time.Time
	seq       uint64
}

// Cache is a TTL-bounded store of scan results with batch eviction.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64

	maxEntries int
	evictBatch int
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries sets the entry ceiling. Values below 1 are ignored.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithEvictBatch sets how many of the oldest entries are dropped on overflow.
// Values below 1 are ignored.
func WithEvictBatch(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.evictBatch = n
		}
	}
}

// WithTTL sets the entry lifetime. Values of zero or less are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now. It is used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used to report evictions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		maxEntries: DefaultMaxEntries,
		evictBatch: DefaultEvictBatch,
		ttl:        DefaultTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the cached result for key.
// Expired entries are removed and reported as a miss.
func (c *Cache) Get(key string) (*model.ScanResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value.Clone(), true
}

// Put stores a copy of result under key.
//
// Degraded results are never stored. Replacing an existing key refreshes its
// timestamp. Inserting a new key into a full cache first drops expired
// entries and, if the cache is still full, evicts the oldest batch.
func (c *Cache) Put(key string, result *model.ScanResult) {
	if result == nil || result.Degraded() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.removeExpired()
		if len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
	}

	c.seq++
	c.entries[key] = &entry{
		key:       key,
		value:     result.Clone(),
		timestamp: c.now(),
		seq:       c.seq,
	}
}

// Len returns the number of stored entries, including expired ones not yet removed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge removes every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.timestamp) >= c.ttl
}

// removeExpired must be called with mu held.
func (c *Cache) removeExpired() {
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
		}
	}
}

// evictOldest drops the evictBatch oldest entries. It must be called with mu held.
func (c *Cache) evictOldest() {
	all := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	slices.SortFunc(all, func(a, b *entry) int {
		if n := a.timestamp.Compare(b.timestamp); n != 0 {
			return n
		}
		return cmp.Compare(a.seq, b.seq)
	})

	n := min(c.evictBatch, len(all))
	for _, e := range all[:n] {
		delete(c.entries, e.key)
	}
	c.logger.Debug("evicted cache entries", "count", n, "remaining", len(c.entries))
}
