package bench

import (
	"strings"
	"testing"
	"time"

	"github.com/riftwood/timerstore/pkg/lawn"
	"github.com/riftwood/timerstore/pkg/store"
	"github.com/riftwood/timerstore/pkg/wheel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePairs(n int) []Pair {
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{Key: string(rune('a' + i%26)), TTL: time.Duration(i+1) * time.Millisecond}
	}
	return pairs
}

func TestRun_ProducesPositiveTimings(t *testing.T) {
	result := Run("lawn", func() store.TimerStore { return lawn.New() }, samplePairs(50), Config{NumRuns: 2})
	require.NotNil(t, result.InsertionTime)
	require.NotNil(t, result.DeletionTime)
	assert.Equal(t, "lawn", result.Engine)
	assert.Equal(t, 50, result.NumTimers)
	assert.GreaterOrEqual(t, result.InsertionTime.AsDuration(), time.Duration(0))
}

func TestRun_EmptyWorkloadIsNoOp(t *testing.T) {
	result := Run("wheel", func() store.TimerStore { return wheel.New() }, nil, Config{})
	assert.Equal(t, 0, result.NumTimers)
	assert.Nil(t, result.InsertionTime)
}

func TestRunSharded_ProducesPositiveTimings(t *testing.T) {
	result := RunSharded("lawn", func() store.TimerStore { return lawn.New() }, samplePairs(64), Config{NumRuns: 2}, 8)
	require.NotNil(t, result.InsertionTime)
	require.NotNil(t, result.DeletionTime)
	assert.Equal(t, "lawn", result.Engine)
	assert.Equal(t, 64, result.NumTimers)
	assert.GreaterOrEqual(t, result.InsertionTime.AsDuration(), time.Duration(0))
}

func TestRunSharded_ZeroShardCountIsNoOp(t *testing.T) {
	result := RunSharded("wheel", func() store.TimerStore { return wheel.New() }, samplePairs(10), Config{}, 0)
	assert.Nil(t, result.InsertionTime)
}

func TestRunTick_CountsExpiredAcrossRuns(t *testing.T) {
	now := time.Now()
	result := RunTick("lawn", func() store.TimerStore { return lawn.New() }, samplePairs(10),
		Config{NumRuns: 3}, func() time.Time { return now })
	require.NotNil(t, result.TickTime)
}

func TestWriteCSV_EmitsHeaderAndRows(t *testing.T) {
	var sb strings.Builder
	results := []Result{
		Run("lawn", func() store.TimerStore { return lawn.New() }, samplePairs(5), Config{NumRuns: 1}),
		Run("wheel", func() store.TimerStore { return wheel.New() }, samplePairs(5), Config{NumRuns: 1}),
	}
	require.NoError(t, WriteCSV(&sb, results))

	out := sb.String()
	assert.Contains(t, out, "metric,lawn,wheel")
	assert.Contains(t, out, "num_timers,5,5")
}
