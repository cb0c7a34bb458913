package ventusky

import (
	"math"
	"strings"
)

// Weather conditions, using the vocabulary of common home automation weather entities.
const (
	ConditionSunny          = "sunny"
	ConditionClearNight     = "clear-night"
	ConditionPartlyCloudy   = "partlycloudy"
	ConditionCloudy         = "cloudy"
	ConditionFog            = "fog"
	ConditionRainy          = "rainy"
	ConditionPouring        = "pouring"
	ConditionSnowy          = "snowy"
	ConditionSnowyRainy     = "snowy-rainy"
	ConditionLightning      = "lightning"
	ConditionLightningRainy = "lightning-rainy"
	ConditionHail           = "hail"
	ConditionExceptional    = "exceptional"
)

// Slot whose description stands for the whole day.
const daytimeSlot = "13:00"

var conditionsByDescription = map[string]string{
	"clear sky":                    ConditionSunny,
	"clear sky with few clouds":    ConditionPartlyCloudy,
	"partly cloudy":                ConditionPartlyCloudy,
	"mostly cloudy":                ConditionCloudy,
	"high clouds":                  ConditionPartlyCloudy,
	"overcast":                     ConditionCloudy,
	"fog":                          ConditionFog,
	"freezing fog":                 ConditionFog,
	"light rain":                   ConditionRainy,
	"rain":                         ConditionRainy,
	"heavy rain":                   ConditionPouring,
	"overcast with light rain":     ConditionRainy,
	"overcast with rain":           ConditionRainy,
	"overcast with heavy rain":     ConditionPouring,
	"light drizzle":                ConditionRainy,
	"drizzle":                      ConditionRainy,
	"freezing drizzle":             ConditionRainy,
	"light snow":                   ConditionSnowy,
	"snow":                         ConditionSnowy,
	"heavy snow":                   ConditionSnowy,
	"sleet":                        ConditionSnowyRainy,
	"light sleet":                  ConditionSnowyRainy,
	"thunderstorm":                 ConditionLightning,
	"thunderstorm with light rain": ConditionLightningRainy,
	"thunderstorm with rain":       ConditionLightningRainy,
	"thunderstorm with heavy rain": ConditionLightningRainy,
	"thunderstorm with snow":       ConditionLightningRainy,
	"hail":                         ConditionHail,
}

// ConditionFor maps a weather description to a condition. A sunny description
// becomes clear-night at night or outside 07:00-19:59.
func ConditionFor(description string, night bool, hour int) string {
	condition, ok := conditionsByDescription[strings.ToLower(strings.TrimSpace(description))]
	if !ok {
		return ConditionExceptional
	}
	if condition == ConditionSunny && (night || hour < 7 || hour >= 20) {
		return ConditionClearNight
	}
	return condition
}

// DailySummary condenses one DailyForecast.
type DailySummary struct {
	Date                        string            `json:"date"`
	Condition                   string            `json:"condition"`
	TemperatureMaxC             float64           `json:"temperature_max_c"`
	TemperatureMinC             float64           `json:"temperature_min_c"`
	PrecipitationMM             Optional[float64] `json:"precipitation_mm"`
	PrecipitationProbabilityMax Optional[int]     `json:"precipitation_probability_pct"`
}

// Current returns the first slot of the next-24-hours table.
func (r *ForecastResult) Current() (HourlySlot, bool) {
	if len(r.Hourly24h) == 0 {
		return HourlySlot{}, false
	}
	return r.Hourly24h[0], true
}

// PrecipitationOn sums the hourly precipitation of the given "YYYY/MM/DD" date.
// Missing amounts count as zero.
func (r *ForecastResult) PrecipitationOn(date string) float64 {
	total := 0.0
	for _, slot := range r.Hourly24h {
		if slot.Date == date {
			total += slot.PrecipitationMM.OrElse(0)
		}
	}
	return math.Round(total*100) / 100
}

// DailySummaries summarizes every day with a known date.
func (r *ForecastResult) DailySummaries() []DailySummary {
	summaries := make([]DailySummary, 0, len(r.Forecast))
	for _, day := range r.Forecast {
		if summary, ok := day.Summary(); ok {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

// Summary returns false for days without a date or without slots.
func (d DailyForecast) Summary() (DailySummary, bool) {
	if d.Date == unknownValue || len(d.Hourly) == 0 {
		return DailySummary{}, false
	}

	summary := DailySummary{
		Date:            d.Date,
		TemperatureMaxC: math.Inf(-1),
		TemperatureMinC: math.Inf(1),
	}
	precipitation := 0.0
	for _, slot := range d.Hourly {
		summary.TemperatureMaxC = math.Max(summary.TemperatureMaxC, slot.TemperatureC)
		summary.TemperatureMinC = math.Min(summary.TemperatureMinC, slot.TemperatureC)
		precipitation += slot.PrecipitationMM
		if probability, ok := slot.PrecipitationProbability.Get(); ok {
			if current, seen := summary.PrecipitationProbabilityMax.Get(); !seen || probability > current {
				summary.PrecipitationProbabilityMax = Some(probability)
			}
		}
	}
	if precipitation > 0 {
		summary.PrecipitationMM = Some(math.Round(precipitation*100) / 100)
	}

	daytime := d.Hourly[0]
	for _, slot := range d.Hourly {
		if slot.Time == daytimeSlot {
			daytime = slot
			break
		}
	}
	summary.Condition = ConditionFor(daytime.WeatherDescription, false, 13)
	return summary, true
}
