package ventusky

import (
	"fmt"
	"math"
	"strconv"
)

// noProbability is the value the page uses for "no precipitation probability".
const noProbability = -1

// normalizeDays turns the decoded day arrays into one DailyForecast per day,
// in the order of the decoded days.
func normalizeDays(blob *forecastBlob, dates dateMap) ([]DailyForecast, error) {
	days := make([]DailyForecast, 0, len(blob.Days))
	for _, day := range blob.Days {
		slots, err := normalizeSlots(day.Data, blob.Descriptions)
		if err != nil {
			return nil, &ParseError{Stage: "normalize:" + day.Key, Err: err}
		}
		days = append(days, DailyForecast{
			Day:    day.Key,
			Date:   dates.lookup(day.Index),
			Hourly: slots,
		})
	}
	return days, nil
}

func normalizeSlots(day rawDay, descriptions map[string]string) ([]DailySlot, error) {
	if err := day.validate(); err != nil {
		return nil, err
	}

	slots := make([]DailySlot, 0, len(timeSlots))
	for i, slotTime := range timeSlots {
		code := *day.Codes[i]
		slots = append(slots, DailySlot{
			Time:                     slotTime,
			TemperatureC:             *day.Temperatures[i],
			WeatherCode:              code,
			WeatherDescription:       describe(code, descriptions),
			IsNight:                  code < 0,
			PrecipitationMM:          *day.Precipitation[i],
			PrecipitationProbability: probabilityAt(day.PrecipitationProbability, i),
			WindSpeedKMH:             *day.WindSpeed[i],
			WindGustKMH:              gustAt(day.WindGust, i),
			WindBearingDeg:           *day.WindBearing[i],
			WindDirection:            *day.WindDirection[i],
		})
	}
	return slots, nil
}

// validate checks that every required array is present with a non-null value per slot.
func (d rawDay) validate() error {
	for _, err := range []error{
		requireSlots("s", d.Codes),
		requireSlots("td", d.Temperatures),
		requireSlots("sr", d.Precipitation),
		requireSlots("vsd", d.WindSpeed),
		requireSlots("vd45", d.WindBearing),
		requireSlots("vdId", d.WindDirection),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func requireSlots[T any](name string, values []*T) error {
	if values == nil {
		return fmt.Errorf("%w: missing %q array", ErrMalformedPayload, name)
	}
	if len(values) < len(timeSlots) {
		return fmt.Errorf("%w: %q has %d values, want %d", ErrMalformedPayload, name, len(values), len(timeSlots))
	}
	for i := range timeSlots {
		if values[i] == nil {
			return fmt.Errorf("%w: %q is null at slot %s", ErrMalformedPayload, name, timeSlots[i])
		}
	}
	return nil
}

// describe looks the code up by magnitude; the sign only encodes day or night.
func describe(code int, descriptions map[string]string) string {
	if code < 0 {
		code = -code
	}
	if description, ok := descriptions[strconv.Itoa(code)]; ok {
		return description
	}
	return unknownValue
}

func probabilityAt(values []*float64, i int) Optional[int] {
	if i >= len(values) || values[i] == nil {
		return None[int]()
	}
	probability := int(math.Round(*values[i]))
	if probability == noProbability {
		return None[int]()
	}
	return Some(probability)
}

func gustAt(values []*float64, i int) Optional[float64] {
	if i >= len(values) || values[i] == nil {
		return None[float64]()
	}
	return Some(*values[i])
}
