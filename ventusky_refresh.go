package ventusky

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultRefreshTimeout = 30 * time.Second

// PageFetcher downloads the forecast page for a position.
type PageFetcher interface {
	FetchHTML(ctx context.Context, lat float64, lon float64) (string, error)
}

// ResultCache keeps parsed forecasts between refreshes and across restarts.
type ResultCache interface {
	CachedForecast(ctx context.Context, lat float64, lon float64) (*ForecastResult, time.Time, bool)
	StoreForecast(ctx context.Context, lat float64, lon float64, result *ForecastResult)
}

// RefreshStatus describes the outcome of the most recent refreshes.
type RefreshStatus struct {
	Available   bool      `json:"available"`
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
}

// Refresher fetches and parses the page on a schedule and keeps the latest
// good result. A failed refresh leaves the previous result in place.
type Refresher struct {
	fetcher  PageFetcher
	cache    ResultCache
	lat      float64
	lon      float64
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *Metrics
	now      func() time.Time

	mu     sync.RWMutex
	cron   *cron.Cron
	done   chan struct{}
	latest *ForecastResult
	status RefreshStatus
}

func NewRefresher(fetcher PageFetcher, lat float64, lon float64, interval time.Duration, logger *zap.Logger, metrics *Metrics) (*Refresher, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher must be defined")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		fetcher:  fetcher,
		lat:      lat,
		lon:      lon,
		interval: interval,
		timeout:  DefaultRefreshTimeout,
		logger:   logger.With(zap.String("component", "refresher")),
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

func (r *Refresher) SetRefreshTimeout(timeout time.Duration) {
	r.timeout = timeout
}

// SetResultCache makes Start serve a cached result until the first refresh
// succeeds, and every successful refresh is written back to the cache.
func (r *Refresher) SetResultCache(cache ResultCache) {
	r.cache = cache
}

// Refresh fetches and parses the page once.
func (r *Refresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := r.now()
	document, err := r.fetcher.FetchHTML(ctx, r.lat, r.lon)
	if err != nil {
		r.metrics.recordFetchFailure()
		return r.fail(start, fmt.Errorf("fetch forecast page: %w", err))
	}

	result, err := Parse(document)
	if err != nil {
		r.metrics.recordParseFailure(err)
		return r.fail(start, fmt.Errorf("parse forecast page: %w", err))
	}

	finished := r.now()
	if r.cache != nil {
		r.cache.StoreForecast(ctx, r.lat, r.lon, result)
	}
	r.mu.Lock()
	r.latest = result
	r.status = RefreshStatus{Available: true, LastAttempt: start, LastSuccess: finished}
	r.mu.Unlock()

	r.metrics.recordSuccess(result, finished, finished.Sub(start))
	r.logger.Info("Forecast refreshed",
		zap.String("location", result.Location),
		zap.Int("days", len(result.Forecast)),
		zap.Int("hourly_slots", len(result.Hourly24h)),
		zap.Duration("duration", finished.Sub(start)),
	)
	return nil
}

func (r *Refresher) fail(start time.Time, err error) error {
	r.mu.Lock()
	r.status.LastAttempt = start
	r.status.LastError = err.Error()
	r.mu.Unlock()
	return err
}

// Start refreshes once and then every interval until Stop is called or ctx is done.
// A failing first refresh is logged, not returned.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return errors.New("refresher already started")
	}
	r.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{r.logger.Sugar()})))
	r.done = make(chan struct{})
	scheduler, done := r.cron, r.done
	r.mu.Unlock()

	r.loadCached(ctx)
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("Initial forecast refresh failed", zap.Error(err))
	}

	if _, err := scheduler.AddFunc("@every "+r.interval.String(), func() {
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("Scheduled forecast refresh failed, keeping last result", zap.Error(err))
		}
	}); err != nil {
		r.Stop()
		return fmt.Errorf("failed scheduling refresh: %w", err)
	}
	scheduler.Start()
	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-done:
		}
	}()
	r.logger.Info("Refresher started", zap.Duration("interval", r.interval))
	return nil
}

// loadCached seeds the latest result from the cache when nothing was refreshed yet.
func (r *Refresher) loadCached(ctx context.Context) {
	if r.cache == nil {
		return
	}
	result, fetchedAt, ok := r.cache.CachedForecast(ctx, r.lat, r.lon)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest != nil {
		return
	}
	r.latest = result
	r.status = RefreshStatus{Available: true, LastSuccess: fetchedAt}
	r.logger.Info("Serving cached forecast until the first refresh", zap.Time("fetched_at", fetchedAt))
}

// Stop waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	scheduler, done := r.cron, r.done
	r.cron, r.done = nil, nil
	r.mu.Unlock()
	if scheduler == nil {
		return
	}
	close(done)
	<-scheduler.Stop().Done()
	r.logger.Info("Refresher stopped")
}

// Latest returns the last successfully parsed forecast.
func (r *Refresher) Latest() (*ForecastResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.latest != nil
}

func (r *Refresher) Status() RefreshStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
