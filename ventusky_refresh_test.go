package ventusky

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeFetcher struct {
	mu       sync.Mutex
	document string
	err      error
	calls    int
}

func (f *fakeFetcher) FetchHTML(_ context.Context, _ float64, _ float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.document, f.err
}

func (f *fakeFetcher) set(document string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.document = document
	f.err = err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewRefresher(t *testing.T) {
	_, err := NewRefresher(nil, 0, 0, time.Minute, nil, nil)
	assert.Error(t, err)

	_, err = NewRefresher(&fakeFetcher{}, 0, 0, 0, nil, nil)
	assert.Error(t, err)

	refresher, err := NewRefresher(&fakeFetcher{}, 0, 0, time.Minute, nil, nil)
	require.NoError(t, err)
	_, ok := refresher.Latest()
	assert.False(t, ok)
	assert.False(t, refresher.Status().Available)
}

func TestRefresh_KeepsLastGoodResult(t *testing.T) {
	assert := assert.New(t)

	fetcher := &fakeFetcher{document: loadFixture(t)}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	refresher, err := NewRefresher(fetcher, 48.9, 2.2, time.Minute, zaptest.NewLogger(t), metrics)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, refresher.Refresh(ctx))
	latest, ok := refresher.Latest()
	require.True(t, ok)
	assert.Equal("Sartrouville", latest.Location)
	status := refresher.Status()
	assert.True(status.Available)
	assert.Empty(status.LastError)
	assert.False(status.LastSuccess.IsZero())
	assert.Equal(1.0, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues("success")))
	assert.Equal(5.0, testutil.ToFloat64(metrics.HourlySlots))

	// The site fails; the previous forecast stays available
	fetcher.set("", errors.New("connection reset"))
	err = refresher.Refresh(ctx)
	require.Error(t, err)
	assert.Contains(err.Error(), "fetch forecast page")
	latest, ok = refresher.Latest()
	require.True(t, ok)
	assert.Equal("Sartrouville", latest.Location)
	status = refresher.Status()
	assert.True(status.Available)
	assert.Contains(status.LastError, "connection reset")
	assert.Equal(1.0, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues("fetch_error")))

	// The page changes shape
	fetcher.set("<html><body>maintenance</body></html>", nil)
	err = refresher.Refresh(ctx)
	require.ErrorIs(t, err, ErrMissingForecastData)
	assert.Contains(err.Error(), "parse forecast page")
	assert.Equal(1.0, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues("parse_error")))
	assert.Equal(1.0, testutil.ToFloat64(metrics.ParseFailures.WithLabelValues("missing_forecast_data")))
	assert.Same(latest, mustLatest(t, refresher))

	// Recovery clears the error
	fetcher.set(loadFixture(t), nil)
	require.NoError(t, refresher.Refresh(ctx))
	assert.Empty(refresher.Status().LastError)
	assert.Equal(2.0, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues("success")))
}

func mustLatest(t *testing.T, refresher *Refresher) *ForecastResult {
	t.Helper()

	latest, ok := refresher.Latest()
	require.True(t, ok)
	return latest
}

func TestRefresh_NilMetrics(t *testing.T) {
	fetcher := &fakeFetcher{document: "not a forecast"}
	refresher, err := NewRefresher(fetcher, 0, 0, time.Minute, nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, refresher.Refresh(context.Background()), ErrMissingForecastData)
	fetcher.set(loadFixture(t), nil)
	assert.NoError(t, refresher.Refresh(context.Background()))
}

func TestRefresher_StartStop(t *testing.T) {
	fetcher := &fakeFetcher{document: loadFixture(t)}
	refresher, err := NewRefresher(fetcher, 48.9, 2.2, time.Second, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, refresher.Start(ctx))
	assert.Error(t, refresher.Start(ctx))

	// The first refresh runs before Start returns
	assert.Equal(t, 1, fetcher.callCount())
	_, ok := refresher.Latest()
	assert.True(t, ok)

	assert.Eventually(t, func() bool { return fetcher.callCount() >= 2 }, 5*time.Second, 50*time.Millisecond)

	refresher.Stop()
	calls := fetcher.callCount()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, fetcher.callCount())

	// Stopping twice is a no-op
	refresher.Stop()
}

func TestRefresher_StartWithFailingSite(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("dns failure")}
	refresher, err := NewRefresher(fetcher, 0, 0, time.Hour, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	require.NoError(t, refresher.Start(context.Background()))
	defer refresher.Stop()

	_, ok := refresher.Latest()
	assert.False(t, ok)
	assert.Contains(t, refresher.Status().LastError, "dns failure")
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "missing_forecast_data", failureKind(&ParseError{Stage: "blob", Err: ErrMissingForecastData}))
	assert.Equal(t, "malformed_payload", failureKind(&ParseError{Stage: "payload", Err: ErrMalformedPayload}))
	assert.Equal(t, "other", failureKind(errors.New("boom")))
}

func TestRefresher_StopsWhenContextDone(t *testing.T) {
	fetcher := &fakeFetcher{document: loadFixture(t)}
	refresher, err := NewRefresher(fetcher, 48.9, 2.2, time.Second, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, refresher.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		refresher.mu.RLock()
		defer refresher.mu.RUnlock()
		return refresher.cron == nil
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	calls := fetcher.callCount()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, fetcher.callCount())

	// A stopped refresher can be started again
	require.NoError(t, refresher.Start(context.Background()))
	refresher.Stop()
}

type fakeResultCache struct {
	mu        sync.Mutex
	result    *ForecastResult
	fetchedAt time.Time
	stored    int
}

func (c *fakeResultCache) CachedForecast(_ context.Context, _ float64, _ float64) (*ForecastResult, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.fetchedAt, c.result != nil
}

func (c *fakeResultCache) StoreForecast(_ context.Context, _ float64, _ float64, result *ForecastResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = result
	c.stored++
}

func TestRefresher_ResultCache(t *testing.T) {
	assert := assert.New(t)

	cached := &ForecastResult{Location: "Cached"}
	fetchedAt := time.Date(2026, 2, 24, 13, 0, 0, 0, time.UTC)
	cache := &fakeResultCache{result: cached, fetchedAt: fetchedAt}
	fetcher := &fakeFetcher{err: errors.New("site down")}
	refresher, err := NewRefresher(fetcher, 48.9, 2.2, time.Hour, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	refresher.SetResultCache(cache)

	// The site is down at start, the cached result is served
	require.NoError(t, refresher.Start(context.Background()))
	defer refresher.Stop()
	assert.Same(cached, mustLatest(t, refresher))
	status := refresher.Status()
	assert.True(status.Available)
	assert.Equal(fetchedAt, status.LastSuccess)
	assert.Contains(status.LastError, "site down")
	assert.Zero(cache.stored)

	// A successful refresh replaces it and is written back
	fetcher.set(loadFixture(t), nil)
	require.NoError(t, refresher.Refresh(context.Background()))
	latest := mustLatest(t, refresher)
	assert.Equal("Sartrouville", latest.Location)
	assert.Equal(1, cache.stored)
	assert.Same(latest, cache.result)
}
