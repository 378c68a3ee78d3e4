// Package lawn implements the Lawn timer engine: timers are grouped into FIFO buckets
// by identical TTL duration, so insert, delete, and expiry scans are all O(1) amortized
// when the population concentrates on a small set of distinct TTLs (sessions, caches,
// leases — the common case this engine is built for).
//
// Grounded on original_source/src/lawn.c (bucket table, key index, next_expiration
// cache, and the bucket-by-bucket PopExpired scan order) and on
// nobletooth-kiwi's pkg/cache/hcc.go expiry-bucket map, generalized from a fixed
// tick interval to a per-TTL-duration bucket key.
package lawn

import (
	"time"

	"github.com/riftwood/timerstore/pkg/clock"
	"github.com/riftwood/timerstore/pkg/queue"
	"github.com/riftwood/timerstore/pkg/store"
	"github.com/riftwood/timerstore/pkg/utils"
)

// node is the per-entry linkage the bucket list stores. Unexported so no intrusive
// pointer ever escapes to the caller.
type node struct {
	key       string
	ttl       time.Duration
	expiresAt time.Time
}

// Option configures a Lawn at construction time.
type Option func(*Lawn)

// WithClock overrides the clock the Lawn reads on every mutation and expiry scan.
// Defaults to the system clock; tests use this to inject a clock.Fixed.
func WithClock(c clock.Source) Option {
	return func(l *Lawn) { l.clock = c }
}

// WithLatencyPadding sets how many milliseconds early PopExpired may release an entry.
// Defaults to zero (spec §4.2, "Padding").
func WithLatencyPadding(d time.Duration) Option {
	return func(l *Lawn) { l.padding = d }
}

// Lawn is a TTL-bucketed timer store. It satisfies store.TimerStore.
type Lawn struct {
	clock   clock.Source
	padding time.Duration

	// buckets maps a TTL duration to the FIFO of entries sharing that TTL. Within a
	// bucket, insertion order is expiration order, because every entry in it shares
	// the same TTL (spec invariant 2).
	buckets map[time.Duration]*queue.List[*node]
	// index gives O(1) lookup by key for Remove and duplicate-insert detection.
	index map[string]*queue.Node[*node]
	// nextExpiration caches the earliest expiration across all buckets. The zero
	// time.Time means "stale, recompute" (spec invariant 4).
	nextExpiration time.Time
}

var _ store.TimerStore = (*Lawn)(nil)

// New constructs an empty Lawn.
func New(opts ...Option) *Lawn {
	l := &Lawn{
		clock:   clock.System(),
		buckets: make(map[time.Duration]*queue.List[*node]),
		index:   make(map[string]*queue.Node[*node]),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add inserts or replaces the timer for key. If key already has a pending timer, the
// old one is removed first — a replace never inherits the previous TTL's bucket.
func (l *Lawn) Add(key string, ttl time.Duration) error {
	if key == "" || ttl <= 0 {
		return store.ErrInvalidArgument
	}
	if existing, ok := l.index[key]; ok {
		l.unlink(existing)
	}

	expiresAt := l.clock.Now().Add(ttl)
	bucket, ok := l.buckets[ttl]
	if !ok {
		bucket = new(queue.List[*node])
		l.buckets[ttl] = bucket
	}
	n := bucket.PushBack(&node{key: key, ttl: ttl, expiresAt: expiresAt})
	l.index[key] = n

	if !l.nextExpiration.IsZero() && expiresAt.Before(l.nextExpiration) {
		l.nextExpiration = expiresAt
	}
	return nil
}

// Remove deletes the timer for key. Unlike the Wheel, the Lawn never reports an absent
// key as an error — this preserves the original C implementation's historical contract
// (del_element_exp always returns LAWN_OK), carried forward verbatim per spec §7.
func (l *Lawn) Remove(key string) error {
	n, ok := l.index[key]
	if !ok {
		return nil
	}
	l.unlink(n)
	return nil
}

// unlink removes n from its bucket and the key index, dropping the bucket entirely if
// it becomes empty, and invalidating the cached next-expiration if it could have been
// n's expiration.
func (l *Lawn) unlink(n *queue.Node[*node]) {
	entry := n.Value
	bucket, ok := l.buckets[entry.ttl]
	if !ok {
		utils.RaiseInvariant("lawn", "missing_bucket_for_indexed_node",
			"Key index pointed at a node whose TTL bucket no longer exists.", "key", entry.key)
		delete(l.index, entry.key)
		return
	}

	bucket.Remove(n)
	if bucket.Len() == 0 {
		delete(l.buckets, entry.ttl)
	}
	delete(l.index, entry.key)

	if !l.nextExpiration.IsZero() && !entry.expiresAt.After(l.nextExpiration) {
		l.nextExpiration = time.Time{}
	}
}

// PopExpired returns every entry whose expiration is at or before now (plus the
// configured latency padding), removing them from the Lawn. The returned batch is
// grouped per TTL bucket, not globally sorted by expiration — two entries from
// different buckets are not guaranteed to appear in chronological order relative to
// each other, even though each bucket's own entries are strictly ordered. Callers that
// need a single chronological order must sort the batch themselves (spec §9).
func (l *Lawn) PopExpired(now time.Time) []store.Entry {
	cutoff := now.Add(l.padding)
	if !l.nextExpiration.IsZero() && cutoff.Before(l.nextExpiration) {
		return nil
	}

	var batch queue.FIFO[store.Entry]
	var refreshed time.Time
	for ttl, bucket := range l.buckets {
		for bucket.Len() > 0 {
			head := bucket.Front()
			if head.Value.expiresAt.After(cutoff) {
				if refreshed.IsZero() || head.Value.expiresAt.Before(refreshed) {
					refreshed = head.Value.expiresAt
				}
				break
			}
			v, _ := bucket.PopFront()
			delete(l.index, v.key)
			batch.Push(store.Entry{Key: v.key, TTL: v.ttl, ExpiresAt: v.expiresAt})
		}
		if bucket.Len() == 0 {
			delete(l.buckets, ttl)
		}
	}
	l.nextExpiration = refreshed
	return batch.Drain()
}

// NextAt returns the earliest expiration across all buckets, scanning bucket heads and
// caching the result if it wasn't already cached.
func (l *Lawn) NextAt() (time.Time, bool) {
	if !l.nextExpiration.IsZero() {
		return l.nextExpiration, true
	}
	next, ok := l.scanMinExpiration()
	if !ok {
		return time.Time{}, false
	}
	l.nextExpiration = next
	return next, true
}

func (l *Lawn) scanMinExpiration() (time.Time, bool) {
	var min time.Time
	found := false
	for _, bucket := range l.buckets {
		if bucket.Len() == 0 {
			continue
		}
		headExp := bucket.Front().Value.expiresAt
		if !found || headExp.Before(min) {
			min = headExp
			found = true
		}
	}
	return min, found
}

// Size returns the number of live entries across all buckets.
func (l *Lawn) Size() int {
	return len(l.index)
}

// ExpiresAt returns the scheduled expiration for key, if present.
func (l *Lawn) ExpiresAt(key string) (time.Time, bool) {
	n, ok := l.index[key]
	if !ok {
		return time.Time{}, false
	}
	return n.Value.expiresAt, true
}

// TTLCount returns the number of distinct TTL buckets currently in use.
func (l *Lawn) TTLCount() int {
	return len(l.buckets)
}
