package ventusky

import "time"

type cacheInfo struct {
	Expires   time.Time `json:"expires"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Placeholder used for any date, time or location the page does not resolve.
const (
	unknownValue = "unknown"
	unknownTime  = "??:??"
)

// Time of day of each slot in the embedded 8-day forecast.
var timeSlots = [...]string{"01:00", "04:00", "07:00", "10:00", "13:00", "16:00", "19:00", "22:00"}

// ForecastResult is everything extracted from one ventusky page.
type ForecastResult struct {
	Location  string          `json:"location"`
	Units     Units           `json:"units"`
	Hourly24h []HourlySlot    `json:"hourly_24h"`
	Forecast  []DailyForecast `json:"forecast"`
}

type Units struct {
	Temperature   string `json:"temperature"`
	Precipitation string `json:"precipitation"`
	WindSpeed     string `json:"wind_speed"`
}

// DailyForecast is one day of the embedded forecast with its 8 time slots.
type DailyForecast struct {
	Day    string      `json:"day"`
	Date   string      `json:"date"`
	Hourly []DailySlot `json:"hourly"`
}

type DailySlot struct {
	Time                     string            `json:"time"`
	TemperatureC             float64           `json:"temperature_c"`
	WeatherCode              int               `json:"weather_code"`
	WeatherDescription       string            `json:"weather_description"`
	IsNight                  bool              `json:"is_night"`
	PrecipitationMM          float64           `json:"precipitation_mm"`
	PrecipitationProbability Optional[int]     `json:"precipitation_probability_pct"`
	WindSpeedKMH             float64           `json:"wind_speed_kmh"`
	WindGustKMH              Optional[float64] `json:"wind_gust_kmh"`
	WindBearingDeg           int               `json:"wind_direction_deg"`
	WindDirection            string            `json:"wind_direction"`
}

// HourlySlot is one column of the "next 24 hours" table.
type HourlySlot struct {
	Date                     string            `json:"date"`
	Time                     string            `json:"time"`
	WeatherDescription       string            `json:"weather_description"`
	TemperatureC             Optional[int]     `json:"temperature_c"`
	PrecipitationMM          Optional[float64] `json:"precipitation_mm"`
	PrecipitationProbability Optional[int]     `json:"precipitation_probability_pct"`
	WindDirection            Optional[string]  `json:"wind_direction"`
	WindBearingDeg           Optional[int]     `json:"wind_direction_deg"`
	WindSpeedKMH             Optional[int]     `json:"wind_speed_kmh"`
}

// dateMap maps a day index (days ahead) to its "YYYY/MM/DD" date.
type dateMap map[int]string

// forecastBlob is the decoded data-forecast attribute.
type forecastBlob struct {
	Units        blobUnits
	Descriptions map[string]string
	Days         []blobDay
}

// blobDay is one "d_N" entry with its key as written in the payload.
type blobDay struct {
	Key   string
	Index int
	Data  rawDay
}

type blobUnits struct {
	Temperature   string `json:"t"`
	Precipitation string `json:"ws"`
	WindSpeed     string `json:"s"`
}

// rawDay holds the per-slot arrays of one "d_N" entry. A nil slice means the
// array was missing from the payload and a nil element means a null value.
type rawDay struct {
	Codes                    []*int     `json:"s"`
	Temperatures             []*float64 `json:"td"`
	Precipitation            []*float64 `json:"sr"`
	PrecipitationProbability []*float64 `json:"rp"`
	WindSpeed                []*float64 `json:"vsd"`
	WindGust                 []*float64 `json:"vg"`
	WindBearing              []*int     `json:"vd45"`
	WindDirection            []*string  `json:"vdId"`
}
