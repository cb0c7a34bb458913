package ventusky

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) *RedisCache[ForecastResult] {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RedisCache[ForecastResult]{Client: client}
}

func testCacheEntry() (*ForecastResult, cacheInfo) {
	fetchedAt := time.Date(2026, 2, 24, 14, 0, 0, 0, time.UTC)
	result := &ForecastResult{
		Location: "Sartrouville",
		Units:    Units{Temperature: "°C", Precipitation: "mm", WindSpeed: "km/h"},
		Hourly24h: []HourlySlot{{
			Date:               "2026/02/24",
			Time:               "14:00",
			WeatherDescription: "clear sky",
			TemperatureC:       Some(-3),
			PrecipitationMM:    Some(0.4),
		}},
		Forecast: []DailyForecast{{
			Day:  "d_0",
			Date: "2026/02/24",
			Hourly: []DailySlot{{
				Time:               "01:00",
				TemperatureC:       3.5,
				WeatherCode:        -5,
				WeatherDescription: "clear sky",
				IsNight:            true,
				WindGustKMH:        Some(15.0),
				WindBearingDeg:     45,
				WindDirection:      "NE",
			}},
		}},
	}
	return result, cacheInfo{Expires: fetchedAt.Add(DefaultCacheTTL), FetchedAt: fetchedAt}
}

func TestCaches(t *testing.T) {
	tests := []struct {
		name  string
		cache func(t *testing.T) Cache[ForecastResult]
	}{
		{"memory", func(t *testing.T) Cache[ForecastResult] { return &MemoryCache[ForecastResult]{} }},
		{"disk", func(t *testing.T) Cache[ForecastResult] {
			return &DiskCache[ForecastResult]{CacheDirectory: filepath.Join(t.TempDir(), "cache")}
		}},
		{"redis", func(t *testing.T) Cache[ForecastResult] { return newTestRedisCache(t) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			cache := tt.cache(t)
			ctx := context.Background()
			result, info := testCacheEntry()

			// Nothing stored yet
			cached, _, err := cache.GetCache(ctx, "48.9000-2.2000")
			require.NoError(t, err)
			assert.Nil(cached)

			require.NoError(t, cache.SetCache(ctx, "48.9000-2.2000", result, info))
			cached, cachedInfo, err := cache.GetCache(ctx, "48.9000-2.2000")
			require.NoError(t, err)
			require.NotNil(t, cached)
			assert.Equal(*result, *cached)
			assert.True(info.Expires.Equal(cachedInfo.Expires))
			assert.True(info.FetchedAt.Equal(cachedInfo.FetchedAt))

			require.NoError(t, cache.ClearCache(ctx, "48.9000-2.2000"))
			cached, _, err = cache.GetCache(ctx, "48.9000-2.2000")
			require.NoError(t, err)
			assert.Nil(cached)

			// Clearing twice is fine
			assert.NoError(cache.ClearCache(ctx, "48.9000-2.2000"))
		})
	}
}

func TestDiskCache_NoDirectory(t *testing.T) {
	cache := &DiskCache[ForecastResult]{}
	result, info := testCacheEntry()
	ctx := context.Background()

	assert.NoError(t, cache.SetCache(ctx, "a", result, info))
	cached, _, err := cache.GetCache(ctx, "a")
	assert.NoError(t, err)
	assert.Nil(t, cached)
	assert.NoError(t, cache.ClearCache(ctx, "a"))
}

func TestDiskCache_Files(t *testing.T) {
	directory := t.TempDir()
	cache := &DiskCache[ForecastResult]{CacheDirectory: directory}
	result, info := testCacheEntry()
	ctx := context.Background()

	require.NoError(t, cache.SetCache(ctx, "48.9000-2.2000", result, info))
	assert.FileExists(t, filepath.Join(directory, "ventusky-48.9000-2.2000.json"))
	assert.FileExists(t, filepath.Join(directory, "ventusky-48.9000-2.2000-info.json"))

	// A missing info file counts as a miss
	require.NoError(t, os.Remove(filepath.Join(directory, "ventusky-48.9000-2.2000-info.json")))
	cached, _, err := cache.GetCache(ctx, "48.9000-2.2000")
	assert.NoError(t, err)
	assert.Nil(t, cached)

	// A corrupt data file is an error
	require.NoError(t, os.WriteFile(filepath.Join(directory, "ventusky-broken.json"), []byte("{"), 0o644))
	_, _, err = cache.GetCache(ctx, "broken")
	assert.Error(t, err)
}

func TestRedisCache_KeyAndRetention(t *testing.T) {
	assert := assert.New(t)

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	result, info := testCacheEntry()

	cache := &RedisCache[ForecastResult]{Client: client, KeyPrefix: "weather:", Retention: time.Hour}
	require.NoError(t, cache.SetCache(ctx, "48.9000-2.2000", result, info))
	assert.True(server.Exists("weather:48.9000-2.2000"))
	assert.Equal(time.Hour, server.TTL("weather:48.9000-2.2000"))

	server.FastForward(2 * time.Hour)
	cached, _, err := cache.GetCache(ctx, "48.9000-2.2000")
	require.NoError(t, err)
	assert.Nil(cached)

	require.NoError(t, server.Set("weather:corrupt", "not json"))
	_, _, err = cache.GetCache(ctx, "corrupt")
	assert.Error(err)
}

func TestRedisCache_Unavailable(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	cache := &RedisCache[ForecastResult]{Client: client}
	_, _, err := cache.GetCache(context.Background(), "a")
	assert.Error(t, err)
}
