package ventusky

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the refresh loop.
// A nil *Metrics records nothing.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	ParseFailures   *prometheus.CounterVec
	LastSuccess     prometheus.Gauge
	HourlySlots     prometheus.Gauge
	RefreshDuration prometheus.Histogram
}

// NewMetrics registers the metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ventusky_refresh_total",
			Help: "Forecast refreshes by result (success, fetch_error, parse_error)",
		}, []string{"result"}),
		ParseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ventusky_parse_failures_total",
			Help: "Forecast page parse failures by kind",
		}, []string{"kind"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ventusky_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		}),
		HourlySlots: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ventusky_hourly_slots",
			Help: "Number of next-24-hours slots in the latest forecast",
		}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ventusky_refresh_duration_seconds",
			Help:    "Time to fetch and parse the forecast page",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) recordSuccess(result *ForecastResult, at time.Time, duration time.Duration) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues("success").Inc()
	m.LastSuccess.Set(float64(at.Unix()))
	m.HourlySlots.Set(float64(len(result.Hourly24h)))
	m.RefreshDuration.Observe(duration.Seconds())
}

func (m *Metrics) recordFetchFailure() {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues("fetch_error").Inc()
}

func (m *Metrics) recordParseFailure(err error) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues("parse_error").Inc()
	m.ParseFailures.WithLabelValues(failureKind(err)).Inc()
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingForecastData):
		return "missing_forecast_data"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "other"
	}
}
