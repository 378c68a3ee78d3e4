package lawn

import (
	"testing"
	"time"

	"github.com/riftwood/timerstore/pkg/clock"
	"github.com/riftwood/timerstore/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(0, 0).UTC()

func newTestLawn() (*Lawn, *clock.Fixed) {
	fc := clock.NewFixed(epoch)
	return New(WithClock(fc)), fc
}

// Scenario 1: single-TTL FIFO ordering.
func TestLawn_SingleTTLFIFOOrdering(t *testing.T) {
	l, _ := newTestLawn()

	require.NoError(t, l.Add("a", 100*time.Millisecond))
	require.NoError(t, l.Add("b", 100*time.Millisecond))
	require.NoError(t, l.Add("c", 100*time.Millisecond))

	assert.Empty(t, l.PopExpired(epoch.Add(50*time.Millisecond)))

	expired := l.PopExpired(epoch.Add(100 * time.Millisecond))
	var keys []string
	for _, e := range expired {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, 0, l.Size())
}

// Scenario 2: mixed TTLs, selective delete.
func TestLawn_MixedTTLsSelectiveDelete(t *testing.T) {
	l, _ := newTestLawn()

	require.NoError(t, l.Add("x", 1000*time.Millisecond))
	require.NoError(t, l.Add("y", 2000*time.Millisecond))
	require.NoError(t, l.Add("z", 3000*time.Millisecond))
	require.NoError(t, l.Remove("y"))

	expired := l.PopExpired(epoch.Add(1500 * time.Millisecond))
	assert.Len(t, expired, 1)
	assert.Equal(t, "x", expired[0].Key)

	expired = l.PopExpired(epoch.Add(3500 * time.Millisecond))
	assert.Len(t, expired, 1)
	assert.Equal(t, "z", expired[0].Key)
}

// Scenario 4: replace semantics — a second Add on the same key reschedules it entirely.
func TestLawn_ReplaceSemantics(t *testing.T) {
	l, _ := newTestLawn()

	require.NoError(t, l.Add("k", 500*time.Millisecond))
	require.NoError(t, l.Add("k", 100*time.Millisecond))

	expired := l.PopExpired(epoch.Add(200 * time.Millisecond))
	require.Len(t, expired, 1)
	assert.Equal(t, "k", expired[0].Key)

	assert.Empty(t, l.PopExpired(epoch.Add(600*time.Millisecond)))
}

// Scenario 5: next-at on an empty store, then after one insert.
func TestLawn_NextAtEmptyThenPopulated(t *testing.T) {
	l, _ := newTestLawn()

	_, ok := l.NextAt()
	assert.False(t, ok)

	require.NoError(t, l.Add("k", 1000*time.Millisecond))
	next, ok := l.NextAt()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(1000*time.Millisecond), next)
}

func TestLawn_SizeTracksDistinctKeys(t *testing.T) {
	l, _ := newTestLawn()
	require.NoError(t, l.Add("a", time.Second))
	require.NoError(t, l.Add("b", time.Second))
	require.NoError(t, l.Add("a", 2*time.Second)) // Replace, not a new key.
	assert.Equal(t, 2, l.Size())
}

func TestLawn_RemoveThenPopExpiredNeverYieldsKey(t *testing.T) {
	l, _ := newTestLawn()
	require.NoError(t, l.Add("k", 10*time.Millisecond))
	require.NoError(t, l.Remove("k"))
	assert.Empty(t, l.PopExpired(epoch.Add(100*time.Millisecond)))
}

func TestLawn_RemoveAbsentKeyIsNotAnError(t *testing.T) {
	l, _ := newTestLawn()
	assert.NoError(t, l.Remove("never-added"))
}

func TestLawn_AddRejectsNonPositiveTTL(t *testing.T) {
	l, _ := newTestLawn()
	assert.ErrorIs(t, l.Add("k", 0), store.ErrInvalidArgument)
	assert.ErrorIs(t, l.Add("", time.Second), store.ErrInvalidArgument)
}

func TestLawn_PopExpiredIdempotentWhenNothingElapsed(t *testing.T) {
	l, _ := newTestLawn()
	require.NoError(t, l.Add("a", 100*time.Millisecond))
	require.NoError(t, l.Add("b", 200*time.Millisecond))

	first := l.PopExpired(epoch.Add(100 * time.Millisecond))
	assert.Len(t, first, 1)
	second := l.PopExpired(epoch.Add(100 * time.Millisecond))
	assert.Empty(t, second)
}

func TestLawn_LatencyPadding(t *testing.T) {
	fc := clock.NewFixed(epoch)
	l := New(WithClock(fc), WithLatencyPadding(20*time.Millisecond))

	require.NoError(t, l.Add("k", 100*time.Millisecond))
	// 85ms + 20ms padding = 105ms >= 100ms expiration, so it fires early.
	expired := l.PopExpired(epoch.Add(85 * time.Millisecond))
	assert.Len(t, expired, 1)
}

func TestLawn_ExpiresAt(t *testing.T) {
	l, _ := newTestLawn()
	require.NoError(t, l.Add("k", time.Second))

	exp, ok := l.ExpiresAt("k")
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second), exp)

	_, ok = l.ExpiresAt("missing")
	assert.False(t, ok)
}
