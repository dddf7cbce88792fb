/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokencache

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-tokenguard/internal/authutil"
	"github.com/acronis/go-tokenguard/internal/metrics"
	"github.com/acronis/go-tokenguard/internal/strutil"
	"github.com/acronis/go-tokenguard/introspection"
)

const (
	// DefaultTTL is a default time-to-live of the cache entry.
	DefaultTTL = 60 * time.Second

	// DefaultSweepInterval is a default interval between sweeps of expired entries.
	DefaultSweepInterval = 300 * time.Second
)

// Opts is a set of options for creating Cache.
type Opts struct {
	// TTL is a time-to-live of the cache entry. Zero value disables caching:
	// nothing is stored, every lookup is a miss and the sweep is never scheduled.
	TTL time.Duration

	// SweepInterval is an interval between sweeps of expired entries.
	// DefaultSweepInterval is used if it's not set.
	SweepInterval time.Duration

	// MaxEntries limits the number of entries. When the limit is reached, the oldest entry is dropped on insert.
	// Zero value means no limit, the cache grows until the next sweep.
	MaxEntries int

	// Logger is a logger for logging debug information.
	Logger log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	// Caches with the same label share the entries gauge, each of them adds its own entries to it.
	PrometheusLibInstanceLabel string
}

type entry struct {
	token     string
	result    introspection.Result
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt) || e.result.IsExpired(now)
}

// Cache stores token introspection results in memory.
// It's safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries []entry

	ttl           time.Duration
	sweepInterval time.Duration
	maxEntries    int

	logger      log.FieldLogger
	promMetrics *metrics.PrometheusMetrics
}

// New creates a new Cache with the given options.
func New(opts Opts) *Cache {
	if opts.TTL < 0 {
		opts.TTL = 0
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.MaxEntries < 0 {
		opts.MaxEntries = 0
	}
	return &Cache{
		ttl:           opts.TTL,
		sweepInterval: opts.SweepInterval,
		maxEntries:    opts.MaxEntries,
		logger:        authutil.PrepareLogger(opts.Logger),
		promMetrics:   metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceTokenCache),
	}
}

// Enabled reports whether caching is enabled (TTL is positive).
func (c *Cache) Enabled() bool {
	return c.ttl > 0
}

// TTL returns the time-to-live of the cache entry.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// SweepInterval returns the interval between sweeps of expired entries.
func (c *Cache) SweepInterval() time.Duration {
	return c.sweepInterval
}

// Lookup returns a cached introspection result for the token.
// The result is found only if the token is active, not expired and the entry's TTL has not passed.
func (c *Cache) Lookup(token string) (introspection.Result, bool) {
	if !c.Enabled() {
		return introspection.Result{}, false
	}

	tokenBytes := strutil.StringToBytesUnsafe(token)
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.entries {
		e := &c.entries[i]
		if subtle.ConstantTimeCompare(strutil.StringToBytesUnsafe(e.token), tokenBytes) != 1 {
			continue
		}
		if !e.result.Active || e.expired(now) {
			continue
		}
		c.promMetrics.IncTokenCacheLookupsTotal(true)
		return e.result.Clone(), true
	}
	c.promMetrics.IncTokenCacheLookupsTotal(false)
	return introspection.Result{}, false
}

// Insert stores the introspection result for the token. The entry expires after TTL.
// An existing entry for the same token is replaced, so the cache holds at most one entry per token.
// It does nothing if caching is disabled.
func (c *Cache) Insert(token string, result introspection.Result) {
	if !c.Enabled() {
		return
	}

	e := entry{token: token, result: result.Clone(), expiresAt: time.Now().Add(c.ttl)}
	tokenBytes := strutil.StringToBytesUnsafe(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.entries)
	for i := range c.entries {
		if subtle.ConstantTimeCompare(strutil.StringToBytesUnsafe(c.entries[i].token), tokenBytes) != 1 {
			continue
		}
		// The replaced entry moves to the end as the newest one.
		n := i + copy(c.entries[i:], c.entries[i+1:])
		clearEntries(c.entries[n:])
		c.entries = c.entries[:n]
		break
	}

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		dropCount := len(c.entries) - c.maxEntries + 1
		n := copy(c.entries, c.entries[dropCount:])
		clearEntries(c.entries[n:])
		c.entries = c.entries[:n]
	}
	c.entries = append(c.entries, e)
	c.promMetrics.AddTokenCacheEntries(len(c.entries) - before)
}

// Sweep removes all entries which TTL or token expiration time has passed.
// It returns the number of removed entries.
func (c *Cache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	kept := c.entries[:0]
	for i := range c.entries {
		if c.entries[i].expired(now) {
			continue
		}
		kept = append(kept, c.entries[i])
	}
	removed := len(c.entries) - len(kept)
	clearEntries(c.entries[len(kept):])
	c.entries = kept
	entriesLen := len(c.entries)
	c.mu.Unlock()

	c.promMetrics.AddTokenCacheSweptTotal(removed)
	c.promMetrics.AddTokenCacheEntries(-removed)
	c.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc(fmt.Sprintf("token cache sweep removed %d expired entries, %d left", removed, entriesLen))
	})
	return removed
}

// Run sweeps expired entries every SweepInterval until the context is canceled.
// It returns immediately if caching is disabled.
func (c *Cache) Run(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Len returns the number of entries in the cache (including expired ones that are not swept yet).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge removes all entries from the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	removed := len(c.entries)
	clearEntries(c.entries)
	c.entries = nil
	c.mu.Unlock()
	c.promMetrics.AddTokenCacheEntries(-removed)
}

// clearEntries zeroes entries so the dropped tokens and results can be garbage collected.
func clearEntries(entries []entry) {
	for i := range entries {
		entries[i] = entry{}
	}
}
