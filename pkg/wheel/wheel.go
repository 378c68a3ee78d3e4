// Package wheel implements the Hierarchical Timer Wheel engine: timers are bucketed
// into one of a small number of ring levels of increasing granularity, so insert and
// delete are O(1) amortized regardless of how diverse the TTLs in the population are
// (the trade Lawn makes the other way).
//
// Grounded on original_source/src/utils/timerwheel.c for the canonical level geometry
// (get_timer_position), and on its timer_wheel_advance for the cascade shape. One
// deliberate deviation from the C source: timer_wheel_advance there compares
// (old_time/slot_time)%num_slots to (new_time/slot_time)%num_slots directly, which
// silently skips an entire rotation whenever old and new alias to the same modular
// slot after wrapping — a real bug, not an artifact worth reproducing (spec §9's Open
// Question license covers exactly this kind of source defect). This implementation
// instead tracks, per level, the highest absolute tick known fully drained
// (level.lastSwept) and walks forward from it on every Advance call — correct
// regardless of how large a single jump is, and independent of modular aliasing.
package wheel

import (
	"time"

	"github.com/riftwood/timerstore/pkg/clock"
	"github.com/riftwood/timerstore/pkg/queue"
	"github.com/riftwood/timerstore/pkg/store"
	"github.com/riftwood/timerstore/pkg/utils"
)

// defaultGeometry is the canonical {ms, sec, min, hour} slot counts from spec §3.
var defaultGeometry = []int{20, 60, 60, 24}

// defaultResolution is the Wheel's base tick granularity.
const defaultResolution = time.Millisecond

// entry is a Wheel-internal timer. Its slot list is singly linked — only forward
// traversal is needed during cascade/expire (spec §4.4) — and Remove scans the slot's
// list for a pointer match, exactly like the original's recursive_del_timer.
type entry struct {
	key       string
	ttl       time.Duration
	expiresAt time.Time
	level     int
	slot      int
	next      *entry
}

// level is one ring of the wheel: numSlots slots, each slotTime wide, covering
// totalTime = numSlots * slotTime before wrapping. Slots are lazily populated —
// a nil head costs nothing beyond the slice element already allocated for the level.
type level struct {
	numSlots  int
	slotTime  time.Duration
	totalTime time.Duration
	slots     []*entry

	// lastSwept is the highest tick index (absolute, not modular) known to be fully
	// drained — every entry that ever landed there has either expired or cascaded
	// away. A tick that still holds an entry not yet due (it recomputed the same
	// level and tick on re-placement, which happens whenever its remaining delta
	// still requires this level) blocks lastSwept from advancing past it, so Advance
	// keeps re-checking that exact tick on every later call until it finally drains.
	lastSwept int64
}

func newLevel(numSlots int, slotTime time.Duration) *level {
	if numSlots <= 0 {
		utils.RaiseInvariant("wheel", "non_positive_level_slots",
			"Level configured with a non-positive slot count.", "numSlots", numSlots)
		numSlots = 1
	}
	return &level{
		numSlots:  numSlots,
		slotTime:  slotTime,
		totalTime: slotTime * time.Duration(numSlots),
		slots:     make([]*entry, numSlots),
	}
}

// tick returns the absolute (non-modular) tick index t falls into at this level.
func (lv *level) tick(t time.Time) int64 {
	st := lv.slotTime.Nanoseconds()
	if st <= 0 {
		st = 1
	}
	return t.UnixNano() / st
}

func (lv *level) slotForTick(tick int64) int {
	idx := tick % int64(lv.numSlots)
	if idx < 0 {
		idx += int64(lv.numSlots)
	}
	return int(idx)
}

// Option configures a Wheel at construction time.
type Option func(*Wheel)

// WithResolution overrides the base tick granularity. Defaults to one millisecond.
func WithResolution(d time.Duration) Option {
	return func(w *Wheel) { w.resolution = d }
}

// WithGeometry overrides the per-level slot counts, finest first. Defaults to
// {20, 60, 60, 24} (spec §3's canonical ms/sec/min/hour configuration).
func WithGeometry(slotsPerLevel []int) Option {
	return func(w *Wheel) { w.geometry = append([]int(nil), slotsPerLevel...) }
}

// WithStartTime sets the wheel's initial cursor. Defaults to the system clock's
// current time so the first Advance call doesn't have to sweep from the Unix epoch.
func WithStartTime(t time.Time) Option {
	return func(w *Wheel) { w.currentTime = t }
}

// Wheel is a hierarchical cascading timer store. It satisfies store.TimerStore.
type Wheel struct {
	resolution  time.Duration
	geometry    []int
	currentTime time.Time
	levels      []*level
	index       map[string]*entry
}

var _ store.TimerStore = (*Wheel)(nil)

// New constructs an empty Wheel with its cursor at the current time unless
// WithStartTime overrides it.
func New(opts ...Option) *Wheel {
	w := &Wheel{
		resolution:  defaultResolution,
		geometry:    append([]int(nil), defaultGeometry...),
		currentTime: clock.System().Now(),
		index:       make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.levels = make([]*level, len(w.geometry))
	slotTime := w.resolution
	for i, numSlots := range w.geometry {
		w.levels[i] = newLevel(numSlots, slotTime)
		w.levels[i].lastSwept = w.levels[i].tick(w.currentTime) - 1
		slotTime = w.levels[i].totalTime
	}
	return w
}

// Add inserts or replaces the timer for key, expiring ttl after the wheel's current
// cursor. If key already has a pending timer, it is removed first.
func (w *Wheel) Add(key string, ttl time.Duration) error {
	if key == "" || ttl <= 0 {
		return store.ErrInvalidArgument
	}
	if old, ok := w.index[key]; ok {
		w.unlink(old)
	}
	e := &entry{key: key, ttl: ttl, expiresAt: w.currentTime.Add(ttl)}
	w.place(e)
	w.index[key] = e
	return nil
}

// Remove deletes the timer for key. Unlike the Lawn, the Wheel reports an absent key
// as ErrNotFound (spec §7) — callers that want Lawn-style idempotence should ignore it.
func (w *Wheel) Remove(key string) error {
	e, ok := w.index[key]
	if !ok {
		return store.ErrNotFound
	}
	w.unlink(e)
	delete(w.index, key)
	return nil
}

// locate finds the smallest level whose window still covers e's remaining delta
// (strict less-than — an entry whose delta exactly equals a level's total_time goes
// to the next coarser level, spec §4.3's tie-break), pinning to the highest level if
// the delta exceeds the wheel's whole horizon.
func (w *Wheel) locate(expiresAt time.Time) (levelIdx, slot int) {
	delta := expiresAt.Sub(w.currentTime)
	if delta < 0 {
		delta = 0
	}
	for i, lv := range w.levels {
		if delta < lv.totalTime {
			return i, lv.slotForTick(lv.tick(expiresAt))
		}
	}
	top := len(w.levels) - 1
	return top, w.levels[top].slotForTick(w.levels[top].tick(expiresAt))
}

// place threads e into its slot's list at the head, recording its (level, slot) so
// Remove and cascade can find it again without recomputing placement.
func (w *Wheel) place(e *entry) {
	lvl, slot := w.locate(e.expiresAt)
	e.level, e.slot = lvl, slot
	lv := w.levels[lvl]
	e.next = lv.slots[slot]
	lv.slots[slot] = e
}

// unlink removes e from its recorded slot's list via a linear scan — the slot lists
// are small in practice, and this matches the original's recursive_del_timer.
func (w *Wheel) unlink(e *entry) {
	lv := w.levels[e.level]
	head := lv.slots[e.slot]
	if head == e {
		lv.slots[e.slot] = e.next
		e.next = nil
		return
	}
	for prev := head; prev != nil; prev = prev.next {
		if prev.next == e {
			prev.next = e.next
			e.next = nil
			return
		}
	}
	utils.RaiseInvariant("wheel", "entry_missing_from_slot",
		"Key index pointed at an entry absent from its recorded slot.", "key", e.key)
}

// Advance moves the wheel's cursor forward to newTime, cascading every level from
// coarsest to finest and returning the batch of entries that expired along the way.
// A newTime that doesn't move the cursor forward is a no-op returning nil.
func (w *Wheel) Advance(newTime time.Time) []store.Entry {
	if !newTime.After(w.currentTime) {
		return nil
	}
	w.currentTime = newTime

	// Levels are swept coarsest first. An entry cascading down from a coarser level
	// lands in a finer level that hasn't been swept yet this call, so it is picked up
	// in the same pass instead of landing on a tick already marked drained.
	var expired queue.FIFO[store.Entry]
	for i := len(w.levels) - 1; i >= 0; i-- {
		lv := w.levels[i]
		newTick := lv.tick(newTime)
		start := lv.lastSwept + 1
		if start > newTick {
			continue
		}

		swept := lv.lastSwept
		for tick := start; tick <= newTick; tick++ {
			slot := lv.slotForTick(tick)
			head := lv.slots[slot]
			if head != nil {
				lv.slots[slot] = nil
				for e := head; e != nil; {
					next := e.next
					e.next = nil
					if !e.expiresAt.After(newTime) {
						delete(w.index, e.key)
						expired.Push(store.Entry{Key: e.key, TTL: e.ttl, ExpiresAt: e.expiresAt})
					} else {
						// Cascade: re-locate relative to the now-advanced cursor. An entry
						// that still belongs at this same level lands back in this exact
						// tick (its tick is a fixed function of its own expiresAt), which
						// leaves this slot non-empty and blocks swept from passing it.
						w.place(e)
					}
					e = next
				}
			}
			if tick == swept+1 && lv.slots[slot] == nil {
				swept = tick
			}
		}
		lv.lastSwept = swept
	}
	return expired.Drain()
}

// PopExpired is a thin adapter over Advance so callers can use the shared
// store.TimerStore interface without a type switch between the two engines.
func (w *Wheel) PopExpired(now time.Time) []store.Entry {
	return w.Advance(now)
}

// NextAt scans every slot's entries across every level and returns the minimum
// expiration found. ok is false if the wheel holds no live entries.
func (w *Wheel) NextAt() (time.Time, bool) {
	if len(w.index) == 0 {
		return time.Time{}, false
	}
	var min time.Time
	found := false
	for _, lv := range w.levels {
		for _, head := range lv.slots {
			for e := head; e != nil; e = e.next {
				if !found || e.expiresAt.Before(min) {
					min = e.expiresAt
					found = true
				}
			}
		}
	}
	return min, found
}

// Size returns the number of live entries.
func (w *Wheel) Size() int {
	return len(w.index)
}

// ExpiresAt returns the scheduled expiration for key, if present.
func (w *Wheel) ExpiresAt(key string) (time.Time, bool) {
	e, ok := w.index[key]
	if !ok {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

// CurrentTime returns the wheel's cursor position.
func (w *Wheel) CurrentTime() time.Time {
	return w.currentTime
}
