// This module implements the expiring association cache used to track command responses.
//
// Eviction Policy (oldest snowflake first):
// Every primary key is a snowflake ID whose high bits hold its creation time, so ordering keys numerically orders
// them by creation time (ties broken by the low bits). The cache keeps a skip list of keys next to its map; when a
// new key arrives at a full cache, the oldest keys are evicted until there's room for exactly one more entry.
// Access recency plays no role.
//
// Expiration Policy (sweeper):
// A background goroutine wakes up every purge interval, walks the ordered keys from the oldest one and removes every
// entry whose embedded timestamp is at least max age old. The walk stops at the first young key.
//
// Locking:
// Structural changes (insert, evict, remove, clear, sweep removals) hold the write lock and update the live count in
// lockstep with the map. Lookups and appends to an existing entry only hold the read lock; the entry's bag accepts
// concurrent appends without further locking.

package cache

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nobletooth/cmdcache/pkg/snowflake"
	"github.com/nobletooth/cmdcache/pkg/utils"
)

// Expiring is a thread-safe, optionally bounded map from primary snowflake IDs to bags of secondary IDs, whose
// entries expire by the age embedded in their key.
type Expiring struct {
	capacity int // Maximum number of primary keys, or Unbounded.
	maxAge   time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mux     sync.RWMutex
	entries map[uint64]*bag
	order   *skipList[uint64, struct{}] // Same keys as `entries`, ascending.
	// count mirrors len(entries). It's only written while holding the write lock, so readers can load it lock-free.
	count atomic.Int64

	cancel    context.CancelFunc // Stops the sweeper goroutine.
	sweeperWg sync.WaitGroup
	closeOnce sync.Once
}

var _ Associations = (*Expiring)(nil)

// NewExpiring builds an Expiring cache holding at most `capacity` primary keys (or Unbounded) and starts its sweeper.
// The sweeper runs until `ctx` is cancelled or Close is called; the first sweep happens one purge interval from now.
func NewExpiring(ctx context.Context, capacity int, opts ...Option) (*Expiring, error) {
	if capacity < 1 && capacity != Unbounded {
		return nil, fmt.Errorf("%w: capacity %d must be positive or Unbounded", ErrInvalidConfiguration, capacity)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.purgeInterval <= 0 {
		return nil, fmt.Errorf("%w: purge interval %v must be positive", ErrInvalidConfiguration, cfg.purgeInterval)
	}
	if cfg.maxAge <= 0 {
		return nil, fmt.Errorf("%w: max age %v must be positive", ErrInvalidConfiguration, cfg.maxAge)
	}

	sweeperCtx, cancel := context.WithCancel(ctx)
	expiring := &Expiring{
		capacity: capacity,
		maxAge:   cfg.maxAge,
		now:      cfg.now,
		logger:   utils.NewModuleLogger(cfg.logger, "cmd_cache"),
		entries:  make(map[uint64]*bag),
		order:    newSkipList[uint64, struct{}](cmp.Compare),
		cancel:   cancel,
	}
	runningCaches.Store(expiring, struct{}{})
	expiring.sweeperWg.Add(1)
	go expiring.sweeper(sweeperCtx, cfg.purgeInterval)

	expiring.logger.Debug("Command cache initialised.",
		"capacity", capacity, "purgeInterval", cfg.purgeInterval, "maxAge", cfg.maxAge)
	return expiring, nil
}

// Record adds `secondary` under `primary`. A new primary key may evict the oldest entries of a full cache first.
func (c *Expiring) Record(primary, secondary uint64) {
	if c.appendExisting(primary, secondary) {
		return
	}
	c.insert(primary, []uint64{secondary})
}

// RecordMany adds all `secondaries` under `primary`. An empty, non-nil batch still creates the entry.
func (c *Expiring) RecordMany(primary uint64, secondaries []uint64) error {
	if secondaries == nil {
		return fmt.Errorf("%w: primary %d", ErrNullAssociation, primary)
	}
	if c.appendExisting(primary, secondaries...) {
		return nil
	}
	c.insert(primary, secondaries)
	return nil
}

// appendExisting pushes `values` into the entry for `primary` if there's one. The read lock keeps a concurrent
// Remove from detaching the entry halfway through.
func (c *Expiring) appendExisting(primary uint64, values ...uint64) /*appended*/ bool {
	c.mux.RLock()
	defer c.mux.RUnlock()

	entry, exists := c.entries[primary]
	if !exists {
		return false
	}
	entry.pushMany(values)
	cacheRecords.WithLabelValues("append").Inc()
	return true
}

// insert creates the entry for `primary`, evicting the oldest entries if the cache is full.
func (c *Expiring) insert(primary uint64, values []uint64) {
	c.mux.Lock()
	defer c.mux.Unlock()

	// Another caller may have created the entry since appendExisting looked.
	if entry, exists := c.entries[primary]; exists {
		entry.pushMany(values)
		cacheRecords.WithLabelValues("append").Inc()
		return
	}
	if count := int(c.count.Load()); c.capacity != Unbounded && count >= c.capacity {
		c.evictOldestLocked(count - c.capacity + 1)
	}

	c.entries[primary] = newBag(values)
	if existed, err := c.order.Set(primary, struct{}{}); existed || err != nil {
		utils.RaiseInvariant("cmd_cache", "stale_index_key",
			"Primary key was indexed without a cache entry.", "primary", primary, "error", err)
	}
	c.count.Add(1)
	cacheRecords.WithLabelValues("new").Inc()
}

// evictOldestLocked removes the `n` entries with the smallest keys. Must hold the write lock.
func (c *Expiring) evictOldestLocked(n int) {
	victims := make([]uint64, 0, n)
	for pair := range c.order.Iterate() {
		if len(victims) == n {
			break
		}
		victims = append(victims, pair.Key)
	}
	for _, victim := range victims {
		c.removeLocked(victim)
	}
	cacheEvictions.Add(float64(len(victims)))
	c.logger.Debug("Evicted the oldest entries of a full cache.", "evicted", len(victims), "capacity", c.capacity)
}

// removeLocked drops the entry for `primary`. Must hold the write lock.
func (c *Expiring) removeLocked(primary uint64) /*removed*/ bool {
	if _, exists := c.entries[primary]; !exists {
		return false
	}
	delete(c.entries, primary)
	if err := c.order.Delete(primary); err != nil {
		utils.RaiseInvariant("cmd_cache", "missing_index_key",
			"Cache entry had no index key.", "primary", primary, "error", err)
	}
	c.count.Add(-1)
	return true
}

// Contains reports whether there's an entry for `primary`.
func (c *Expiring) Contains(primary uint64) bool {
	c.mux.RLock()
	defer c.mux.RUnlock()
	_, exists := c.entries[primary]
	return exists
}

// Lookup returns a copy of the secondary IDs recorded under `primary`. Appends racing with the lookup may or may not
// be part of the copy.
func (c *Expiring) Lookup(primary uint64) ([]uint64, bool /*found*/) {
	c.mux.RLock()
	defer c.mux.RUnlock()

	entry, exists := c.entries[primary]
	if !exists {
		return nil, false
	}
	return entry.snapshot(), true
}

// Remove drops the entry for `primary` and reports whether it existed.
func (c *Expiring) Remove(primary uint64) /*removed*/ bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.removeLocked(primary)
}

// Clear drops every entry.
func (c *Expiring) Clear() {
	c.mux.Lock()
	defer c.mux.Unlock()

	clear(c.entries)
	c.order.Reset()
	c.count.Store(0)
}

// Count returns the number of primary keys currently stored.
func (c *Expiring) Count() int {
	return int(c.count.Load())
}

// Keys returns the stored primary keys, oldest first.
func (c *Expiring) Keys() []uint64 {
	c.mux.RLock()
	defer c.mux.RUnlock()

	keys := make([]uint64, 0, c.order.Len())
	for pair := range c.order.Iterate() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Snapshot copies every entry, oldest first.
func (c *Expiring) Snapshot() []utils.Pair[uint64, []uint64] {
	c.mux.RLock()
	defer c.mux.RUnlock()

	pairs := make([]utils.Pair[uint64, []uint64], 0, c.order.Len())
	for pair := range c.order.Iterate() {
		pairs = append(pairs, utils.Pair[uint64, []uint64]{Key: pair.Key, Value: c.entries[pair.Key].snapshot()})
	}
	return pairs
}

// Sweep removes every entry whose embedded timestamp is at least max age old and returns how many it removed.
func (c *Expiring) Sweep() /*removed*/ int {
	stale := c.staleKeys(c.now().Add(-c.maxAge))
	removed := 0
	for _, primary := range stale {
		// Someone else may have removed the key since the snapshot.
		if c.Remove(primary) {
			removed++
		}
	}
	c.checkCount()

	cacheSwept.Add(float64(removed))
	c.logger.Debug("Cleaned items from the cache.", "removed", removed)
	return removed
}

// staleKeys snapshots the keys created at or before `cutoff`.
func (c *Expiring) staleKeys(cutoff time.Time) []uint64 {
	c.mux.RLock()
	defer c.mux.RUnlock()

	var stale []uint64
	for pair := range c.order.Iterate() {
		// Keys ascend by timestamp, so the first young key ends the scan.
		if snowflake.Timestamp(pair.Key).After(cutoff) {
			break
		}
		stale = append(stale, pair.Key)
	}
	return stale
}

// checkCount verifies the live count matches the map.
func (c *Expiring) checkCount() {
	c.mux.RLock()
	defer c.mux.RUnlock()

	if count, size := int(c.count.Load()), len(c.entries); count != size || size != c.order.Len() {
		utils.RaiseInvariant("cmd_cache", "count_drift", "Live count doesn't match the cache entries.",
			"count", count, "entries", size, "indexed", c.order.Len())
	}
}

// sweeper is a background goroutine that sweeps stale entries every `interval` until `ctx` is done.
func (c *Expiring) sweeper(ctx context.Context, interval time.Duration) {
	defer c.sweeperWg.Done()
	defer runningCaches.Delete(c)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

// sweepOnce runs a single sweep. A panicking sweep is logged so that the next tick still happens.
func (c *Expiring) sweepOnce() {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.Error("Cache sweep failed.", "panic", recovered)
		}
	}()
	c.Sweep()
}

// Close stops the sweeper and waits for an in-flight sweep to finish. It's safe to call more than once; the cache
// stays usable afterward, only scheduled sweeps stop.
func (c *Expiring) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.sweeperWg.Wait()
		c.logger.Debug("Command cache sweeper stopped.")
	})
}
