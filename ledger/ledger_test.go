package ledger_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	// Packages
	ledger "github.com/mutablelogic/go-collect/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	metricdata "go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestStart(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	l.Start("a", 1000)
	assert.Equal(t, int64(1000), l.InFlightBytes())
	assert.True(t, l.Uploading())

	// Duplicate start replaces, never double-counts
	l.Start("a", 1000)
	assert.Equal(t, int64(1000), l.InFlightBytes())

	// Replacement with a different size adjusts the counter
	l.Start("a", 500)
	assert.Equal(t, int64(500), l.InFlightBytes())
}

func TestRoundTrip(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	l.Start("a", 1000)
	l.Update("a", 500)

	e, ok := l.Snapshot("a")
	require.True(t, ok)
	assert.Equal(t, int64(500), e.UploadedBytes)
	assert.InDelta(t, 50.0, e.Percent, 0.01)

	l.Complete("a")
	assert.Equal(t, int64(1000), l.CompletedBytes())
	assert.Equal(t, int64(0), l.InFlightBytes())
	assert.False(t, l.Uploading())

	_, ok = l.Snapshot("a")
	assert.False(t, ok)
}

func TestUpdateAbsent(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	// Update for an unknown task must be a no-op, not a panic: late
	// progress ticks arrive after cancellation.
	l.Update("ghost", 100)
	assert.Equal(t, int64(0), l.InFlightBytes())
	assert.Equal(t, int64(0), l.RealtimeUsage())
}

func TestUpdateClamped(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	l.Start("a", 100)
	l.Update("a", 500)
	e, ok := l.Snapshot("a")
	require.True(t, ok)
	assert.Equal(t, int64(100), e.UploadedBytes)

	l.Update("a", -5)
	e, _ = l.Snapshot("a")
	assert.Equal(t, int64(0), e.UploadedBytes)
}

func TestFail(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	l.Start("a", 1_000_000)
	l.Update("a", 400_000)
	l.Fail("a")

	assert.Equal(t, int64(0), l.InFlightBytes())
	assert.Equal(t, int64(0), l.CompletedBytes())
	assert.False(t, l.Uploading())
}

func TestProjection(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)
	l.SetBaseUsage(10_000)

	l.Start("a", 1000)
	l.Start("b", 2000)
	l.Update("a", 250)

	assert.Equal(t, int64(10_000), l.CurrentUsage())
	assert.Equal(t, int64(13_000), l.ProjectedUsage())
	assert.Equal(t, int64(10_250), l.RealtimeUsage())

	l.Complete("a")
	assert.Equal(t, int64(11_000), l.CurrentUsage())
	assert.Equal(t, int64(13_000), l.ProjectedUsage())
}

func TestProgress(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	// No entries: zero denominator yields zero, not NaN
	assert.Equal(t, 0.0, l.Progress())

	l.Start("a", 1000)
	l.Start("b", 1000)
	l.Update("a", 1000)
	l.Complete("a")
	l.Update("b", 500)

	// 1500 of 2000 bytes
	assert.InDelta(t, 75.0, l.Progress(), 0.01)
}

func TestReset(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	l.Start("a", 1000)
	l.Update("a", 500)
	l.Complete("a")
	l.Start("b", 2000)

	l.Reset()
	assert.Equal(t, int64(0), l.InFlightBytes())
	assert.Equal(t, int64(0), l.CompletedBytes())
	assert.False(t, l.Uploading())

	// A second reset within the guard window is a no-op, and the guard
	// self-clears so later resets still work.
	l.Start("c", 100)
	l.Reset()
	assert.Equal(t, int64(100), l.InFlightBytes())

	time.Sleep(600 * time.Millisecond)
	l.Reset()
	assert.Equal(t, int64(0), l.InFlightBytes())
}

func TestSweep(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	l, err := ledger.New(ledger.WithClock(clock))
	require.NoError(t, err)

	l.Start("stale", 1_000_000)
	l.Update("stale", 400_000)
	l.Start("done", 500)
	l.Update("done", 500)

	// Nothing is old enough yet
	assert.Equal(t, 0, l.Sweep(5*time.Minute))

	// Age both entries past the timeout: the incomplete one is swept,
	// the one at 100% is not
	now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	assert.Equal(t, int64(500), l.InFlightBytes())

	_, ok := l.Snapshot("stale")
	assert.False(t, ok)
	_, ok = l.Snapshot("done")
	assert.True(t, ok)
}

// The in-flight counter must equal the sum of entry totals after any
// sequence of operations.
func TestInvariant(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(1))
	ids := []string{"a", "b", "c", "d", "e"}
	totals := make(map[string]int64)

	check := func() {
		var sum int64
		for id := range totals {
			if e, ok := l.Snapshot(id); ok {
				sum += e.TotalBytes
			}
		}
		require.Equal(t, sum, l.InFlightBytes())
	}

	for i := 0; i < 10_000; i++ {
		id := ids[rnd.Intn(len(ids))]
		switch rnd.Intn(4) {
		case 0:
			size := rnd.Int63n(1 << 20)
			l.Start(id, size)
			totals[id] = size
		case 1:
			l.Update(id, rnd.Int63n(1<<21))
		case 2:
			l.Complete(id)
			delete(totals, id)
		case 3:
			l.Fail(id)
			delete(totals, id)
		}
		check()
	}
}

func TestRebase(t *testing.T) {
	l, err := ledger.New()
	require.NoError(t, err)

	l.Start("a", 1000)
	l.Complete("a")
	assert.Equal(t, int64(1000), l.CompletedBytes())

	// The server-confirmed figure includes the completed bytes, so they
	// are folded into the base rather than counted on top of it
	l.Rebase(5000)
	assert.Equal(t, int64(0), l.CompletedBytes())
	assert.Equal(t, int64(5000), l.CurrentUsage())

	// Unlike Reset, a rebase works even while the reset guard is armed
	l.Reset()
	l.Start("b", 2000)
	l.Complete("b")
	l.Rebase(7000)
	assert.Equal(t, int64(7000), l.CurrentUsage())

	// In-flight entries survive a rebase
	l.Start("c", 300)
	l.Rebase(7300)
	assert.Equal(t, int64(300), l.InFlightBytes())
	assert.Equal(t, int64(7600), l.ProjectedUsage())
}

// The exported in-flight counter must track the internal one when a
// retry starts the same task again.
func TestMetricReplace(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter(t.Name())
	l, err := ledger.New(ledger.WithMeter(meter))
	require.NoError(t, err)

	l.Start("a", 1000)
	l.Start("a", 1000)
	l.Fail("a")
	assert.Equal(t, int64(0), l.InFlightBytes())
	assert.Equal(t, int64(0), metricValue(t, reader, "collect.ledger.inflight_bytes"))

	l.Start("b", 500)
	l.Start("b", 800)
	assert.Equal(t, int64(800), metricValue(t, reader, "collect.ledger.inflight_bytes"))
}

// metricValue sums the data points of a named int64 counter.
func metricValue(t *testing.T, reader sdkmetric.Reader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var sum int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range data.DataPoints {
				sum += dp.Value
			}
		}
	}
	return sum
}
