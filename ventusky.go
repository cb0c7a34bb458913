package ventusky

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://www.ventusky.com"
	DefaultUserAgent    = "Mozilla/5.0 (compatible; goventusky/1.0)"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultCacheTTL     = 30 * time.Minute
	defaultRequestsRate = rate.Limit(6.0 / 60.0)
	defaultRequestBurst = 1
)

type VentuskyService struct {
	userAgent      string
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	logger         *zap.Logger
	cacheTTL       time.Duration
	forecastCaches []Cache[ForecastResult]
	now            func() time.Time
}

// Method to create a new service to interact with ventusky.com.
// An empty cacheDirectory keeps the cache in memory only.
func NewVentuskyService(userAgent string, cacheDirectory string, logger *zap.Logger) (*VentuskyService, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("userAgent must be defined")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VentuskyService{
		userAgent: userAgent,
		baseURL:   DefaultBaseURL,
		client:    &http.Client{Timeout: DefaultHTTPTimeout},
		limiter:   rate.NewLimiter(defaultRequestsRate, defaultRequestBurst),
		logger:    logger,
		cacheTTL:  DefaultCacheTTL,
		forecastCaches: []Cache[ForecastResult]{
			&MemoryCache[ForecastResult]{},
			&DiskCache[ForecastResult]{CacheDirectory: cacheDirectory},
		},
		now: time.Now,
	}, nil
}

func (s *VentuskyService) SetBaseURL(baseURL string) {
	s.baseURL = strings.TrimRight(baseURL, "/")
}

func (s *VentuskyService) SetHTTPTimeout(timeout time.Duration) {
	s.client.Timeout = timeout
}

// SetRateLimit bounds outgoing page requests to requestsPerMinute.
func (s *VentuskyService) SetRateLimit(requestsPerMinute float64, burst int) {
	s.limiter = rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst)
}

func (s *VentuskyService) SetCacheTTL(ttl time.Duration) {
	s.cacheTTL = ttl
}

// AddCache appends a slower cache layer, consulted after the existing ones.
func (s *VentuskyService) AddCache(cache Cache[ForecastResult]) {
	s.forecastCaches = append(s.forecastCaches, cache)
}

// Gets the forecast for a position, from the caches if still valid or else from the website.
func (s *VentuskyService) Forecast(ctx context.Context, lat float64, lon float64) (*ForecastResult, error) {
	if result, _, ok := s.CachedForecast(ctx, lat, lon); ok {
		return result, nil
	}

	document, err := s.FetchHTML(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	result, err := Parse(document)
	if err != nil {
		return nil, fmt.Errorf("failed parsing the forecast page: %w", err)
	}
	s.logger.Debug("Loaded forecast from website",
		zap.String("location", result.Location),
		zap.Int("days", len(result.Forecast)),
		zap.Int("hourly_slots", len(result.Hourly24h)),
	)

	s.StoreForecast(ctx, lat, lon, result)
	return result, nil
}

// CachedForecast returns the first unexpired cached forecast for a position and
// when it was fetched. Faster layers are refilled on a hit.
func (s *VentuskyService) CachedForecast(ctx context.Context, lat float64, lon float64) (*ForecastResult, time.Time, bool) {
	cacheName := s.buildForecastCacheName(lat, lon)
	log := s.logger.With(zap.String("cache_name", cacheName))

	for i, cache := range s.forecastCaches {
		result, info, err := cache.GetCache(ctx, cacheName)
		if err != nil {
			log.Warn("Failed reading forecast cache", zap.Int("layer", i), zap.Error(err))
			continue
		}
		if result == nil {
			continue
		}
		if s.isExpired(info.Expires) {
			log.Debug("Cached forecast expired", zap.Int("layer", i), zap.Time("expires", info.Expires))
			continue
		}
		log.Debug("Loaded forecast from cache", zap.Int("layer", i))
		// Make sure the faster layers have it too
		s.storeForecast(ctx, s.forecastCaches[:i], cacheName, result, info)
		return result, info.FetchedAt, true
	}
	return nil, time.Time{}, false
}

// StoreForecast writes a freshly parsed forecast to every cache layer.
func (s *VentuskyService) StoreForecast(ctx context.Context, lat float64, lon float64, result *ForecastResult) {
	fetchedAt := s.now()
	s.storeForecast(ctx, s.forecastCaches, s.buildForecastCacheName(lat, lon), result, cacheInfo{Expires: fetchedAt.Add(s.cacheTTL), FetchedAt: fetchedAt})
}

func (s *VentuskyService) storeForecast(ctx context.Context, caches []Cache[ForecastResult], cacheName string, result *ForecastResult, info cacheInfo) {
	for i, cache := range caches {
		if err := cache.SetCache(ctx, cacheName, result, info); err != nil {
			s.logger.Warn("Failed updating the forecast cache",
				zap.String("cache_name", cacheName),
				zap.Int("layer", i),
				zap.Error(err),
			)
		}
	}
}

// ForecastURL returns the page address for a position.
func (s *VentuskyService) ForecastURL(lat float64, lon float64) string {
	return fmt.Sprintf("%s/%s;%s", s.baseURL, formatCoordinate(lat), formatCoordinate(lon))
}

// FetchHTML downloads the forecast page for a position.
func (s *VentuskyService) FetchHTML(ctx context.Context, lat float64, lon float64) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait canceled: %w", err)
	}

	url := s.ForecastURL(lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	start := s.now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed reading the response body: %w", err)
	}
	s.logger.Debug("Fetched forecast page",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return string(body), nil
}

func (s *VentuskyService) buildForecastCacheName(lat float64, lon float64) string {
	return fmt.Sprintf("%.4f-%.4f", lat, lon)
}

//////////
// Helper methods
//////////

func (s *VentuskyService) isExpired(checkDate time.Time) bool {
	return s.now().After(checkDate)
}

func formatCoordinate(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
