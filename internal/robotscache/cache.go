// Package robotscache implements the per-authority robots.txt evaluation
// cache described in RFC 9309 §2.3.1: a bounded cache of AccessResult
// values, evicted by age and size rather than a flat TTL.
package robotscache

import (
	"sync"
	"time"

	"github.com/thkoch2001/lara/internal/clockutil"
	"go.uber.org/zap"
)

// Kind is the RFC 9309 §2.3.1 access-result tag.
type Kind int

const (
	// Unavailable means robots.txt returned 4xx: no restrictions apply.
	Unavailable Kind = iota
	// Unreachable means the robots.txt fetch returned a status that is
	// neither 200 nor 4xx (a 5xx, for instance); FirstTried records when
	// this state began.
	Unreachable
	// Ok means robots.txt was retrieved and parsed; Policy holds the
	// evaluator.
	Ok
)

// AccessResult is the closed Unavailable|Unreachable(first_tried)|Ok(T)
// variant from RFC 9309 §2.3.1. T is shared read-only between the cache
// and every caller that received it: cloning an AccessResult duplicates
// the pointer, never the parsed policy underneath it.
type AccessResult[T any] struct {
	Kind       Kind
	FirstTried time.Time
	Policy     T
}

func UnavailableResult[T any]() AccessResult[T] {
	return AccessResult[T]{Kind: Unavailable}
}

func UnreachableResult[T any](firstTried time.Time) AccessResult[T] {
	return AccessResult[T]{Kind: Unreachable, FirstTried: firstTried}
}

func OkResult[T any](policy T) AccessResult[T] {
	return AccessResult[T]{Kind: Ok, Policy: policy}
}

// Entry is a cache entry: the classified access result plus when it was
// written.
type Entry[T any] struct {
	AR      AccessResult[T]
	Updated time.Time
}

// Cache is a per-authority cache of Entry[T], behind a single mutex. Entries
// handed out by Get are safe to hold onto after the lock is released: they
// are never mutated in place, only replaced wholesale by Insert.
type Cache[T any] struct {
	mu         sync.Mutex
	entries    map[string]*Entry[T]
	lastShrink time.Time
	logger     *zap.Logger
}

const (
	maxSize         = 100
	shrinkThreshold = 10
)

// New constructs an empty cache. Callers typically instantiate this as
// Cache[*robotstxt.RobotsData] (see internal/robotsgate).
func New[T any](logger *zap.Logger) *Cache[T] {
	return &Cache[T]{
		entries:    make(map[string]*Entry[T]),
		lastShrink: time.Now(),
		logger:     logger,
	}
}

// Get returns the cached entry for authority, if any.
func (c *Cache[T]) Get(authority string) (*Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[authority]
	return e, ok
}

// Insert unconditionally replaces the entry for authority, then runs the
// size/age-based eviction pass described in §4.C.
func (c *Cache[T]) Insert(authority string, ar AccessResult[T], now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[authority] = &Entry[T]{AR: ar, Updated: now}

	n := len(c.entries)
	if n > maxSize || (n > shrinkThreshold && clockutil.Elapsed(c.lastShrink, clockutil.TwoDays)) {
		c.shrinkLocked(now)
	}
}

// Len reports the current number of cached authorities.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// shrinkLocked drops entries whose Updated timestamp is older than a
// shrinking horizon, halving the horizon until at least one entry is
// removed or the horizon falls below a second. Must be called with c.mu
// held.
func (c *Cache[T]) shrinkLocked(now time.Time) {
	c.lastShrink = now
	before := len(c.entries)

	horizon := clockutil.HalfDay
	for horizon >= time.Second {
		for authority, e := range c.entries {
			if clockutil.Elapsed(e.Updated, horizon) {
				delete(c.entries, authority)
			}
		}
		if len(c.entries) < before {
			break
		}
		horizon /= 2
	}

	if c.logger != nil && len(c.entries) < before {
		c.logger.Info("robots cache shrunk",
			zap.Int("before", before),
			zap.Int("after", len(c.entries)),
		)
	}
}
