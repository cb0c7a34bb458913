package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/roemer/goventusky"
	"github.com/roemer/goventusky/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	result *ventusky.ForecastResult
	status ventusky.RefreshStatus
}

func (f *fakeProvider) Latest() (*ventusky.ForecastResult, bool) {
	return f.result, f.result != nil
}

func (f *fakeProvider) Status() ventusky.RefreshStatus {
	return f.status
}

func sampleResult() *ventusky.ForecastResult {
	return &ventusky.ForecastResult{
		Location: "Sartrouville",
		Units:    ventusky.Units{Temperature: "°C", Precipitation: "mm", WindSpeed: "km/h"},
		Hourly24h: []ventusky.HourlySlot{
			{
				Date:               "2026/02/24",
				Time:               "14:00",
				WeatherDescription: "partly cloudy",
				TemperatureC:       ventusky.Some(12),
				WindBearingDeg:     ventusky.Some(135),
			},
		},
		Forecast: []ventusky.DailyForecast{
			{
				Day:  "d_0",
				Date: "2026/02/24",
				Hourly: []ventusky.DailySlot{
					{Time: "13:00", TemperatureC: 11, WeatherDescription: "clear sky", PrecipitationMM: 0.4},
				},
			},
		},
	}
}

func doRequest(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, path, http.NoBody)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func setupRouter(t *testing.T, provider server.ForecastProvider) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	return server.NewRouter(provider, prometheus.NewRegistry(), nil)
}

func TestForecast_NotAvailableYet(t *testing.T) {
	router := setupRouter(t, &fakeProvider{})

	for _, path := range []string{"/forecast", "/forecast/current", "/forecast/daily"} {
		w := doRequest(t, router, path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestForecast_ReturnsLatest(t *testing.T) {
	router := setupRouter(t, &fakeProvider{result: sampleResult()})

	w := doRequest(t, router, "/forecast")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Sartrouville", body["location"])
	assert.Contains(t, body, "units")
	assert.Contains(t, body, "hourly_24h")
	assert.Contains(t, body, "forecast")
}

func TestForecast_Current(t *testing.T) {
	router := setupRouter(t, &fakeProvider{result: sampleResult()})

	w := doRequest(t, router, "/forecast/current")
	require.Equal(t, http.StatusOK, w.Code)

	var slot ventusky.HourlySlot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slot))
	assert.Equal(t, "14:00", slot.Time)
	assert.Equal(t, 135, slot.WindBearingDeg.OrElse(0))
	assert.False(t, slot.WindSpeedKMH.IsPresent())
}

func TestForecast_CurrentWithoutHourlyData(t *testing.T) {
	result := sampleResult()
	result.Hourly24h = []ventusky.HourlySlot{}
	router := setupRouter(t, &fakeProvider{result: result})

	w := doRequest(t, router, "/forecast/current")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestForecast_Daily(t *testing.T) {
	router := setupRouter(t, &fakeProvider{result: sampleResult()})

	w := doRequest(t, router, "/forecast/daily")
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []ventusky.DailySummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, ventusky.ConditionSunny, summaries[0].Condition)
	assert.InDelta(t, 0.4, summaries[0].PrecipitationMM.OrElse(0), 1e-9)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     ventusky.RefreshStatus
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no forecast yet",
			status:     ventusky.RefreshStatus{LastError: "fetch forecast page: boom"},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: server.StatusUnhealthy,
		},
		{
			name:       "healthy",
			status:     ventusky.RefreshStatus{Available: true, LastSuccess: time.Now()},
			wantCode:   http.StatusOK,
			wantStatus: server.StatusHealthy,
		},
		{
			name:       "last refresh failed",
			status:     ventusky.RefreshStatus{Available: true, LastError: "parse forecast page: boom"},
			wantCode:   http.StatusOK,
			wantStatus: server.StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(t, &fakeProvider{status: tt.status})

			w := doRequest(t, router, "/health")
			require.Equal(t, tt.wantCode, w.Code)

			var body server.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	ventusky.NewMetrics(registry)
	router := server.NewRouter(&fakeProvider{}, registry, nil)

	w := doRequest(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ventusky_last_success_timestamp_seconds")
}
