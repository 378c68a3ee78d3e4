// Package store defines the contract shared by the Lawn and Wheel timer engines.
// It never imports either engine; both lawn and wheel import this package and
// implement TimerStore, keeping the contract the single source of truth for
// units, error semantics, and the batch-expiry shape callers receive.
package store

import (
	"errors"
	"time"
)

// Entry is a single (key, TTL) pair handed back to the caller once expired.
// It is a plain value, decoupled from either engine's internal node representation —
// callers must not assume anything about how the entry was linked inside the store.
type Entry struct {
	Key       string
	TTL       time.Duration
	ExpiresAt time.Time
}

// Errors returned by TimerStore implementations. See spec §7 for the full taxonomy;
// ErrNotFound is deliberately asymmetric between engines — see Lawn.Remove's doc comment.
var (
	// ErrInvalidArgument is returned for a nil/empty key or a non-positive TTL. No state changes.
	ErrInvalidArgument = errors.New("timerstore: invalid argument")
	// ErrNotFound is returned by Remove on a key that isn't present. The Wheel surfaces this;
	// the Lawn never does (see Lawn.Remove).
	ErrNotFound = errors.New("timerstore: key not found")
	// ErrResourceExhausted is returned when a mutation could not complete due to an allocation
	// or sizing failure in a collaborating component (e.g. a workload generator's bloom filter).
	// The engines themselves roll back any partial state before returning it.
	ErrResourceExhausted = errors.New("timerstore: resource exhausted")
)

// TimerStore is the abstract contract both the Lawn and the Wheel satisfy. Units are
// time.Duration/time.Time throughout; all comparisons are monotonic within one store
// instance. A store never calls back into user code — expiration is pulled, not pushed —
// and is not safe for concurrent use without external synchronization (spec §5).
type TimerStore interface {
	// Add inserts or replaces the timer for key, expiring ttl after the store's current time.
	// ttl must be positive. Replacing an existing key's TTL reschedules it entirely —
	// the old TTL never fires.
	Add(key string, ttl time.Duration) error

	// Remove deletes the timer for key if present. See each engine's doc comment for its
	// contract on an absent key.
	Remove(key string) error

	// PopExpired returns every entry whose expiration is at or before now, removing them
	// from the store. Order across the returned batch is engine-defined, not necessarily
	// chronological — see each engine's doc comment.
	PopExpired(now time.Time) []Entry

	// NextAt returns the earliest expiration currently tracked. ok is false if the store
	// is empty.
	NextAt() (time.Time, bool)

	// Size returns the number of live entries.
	Size() int

	// ExpiresAt returns the expiration instant currently scheduled for key, supplementing
	// the core contract (grounded on the original Lawn's get_element_exp). ok is false if
	// key is not present.
	ExpiresAt(key string) (time.Time, bool)
}
