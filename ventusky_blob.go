package ventusky

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	forecastElementSelector = "custom-forecast"
	forecastAttribute       = "data-forecast"
	dateSelectorSelector    = "select#date_selector"
)

var dayKeyPattern = regexp.MustCompile(`^d_(\d+)$`)

// decodeForecastBlob finds the embedded forecast element and decodes its payload.
func decodeForecastBlob(doc *goquery.Document) (*forecastBlob, error) {
	element := doc.Find(forecastElementSelector).First()
	if element.Length() == 0 {
		return nil, &ParseError{Stage: "blob", Err: fmt.Errorf("no <%s> element: %w", forecastElementSelector, ErrMissingForecastData)}
	}
	payload, exists := element.Attr(forecastAttribute)
	if !exists || strings.TrimSpace(payload) == "" {
		return nil, &ParseError{Stage: "blob", Err: fmt.Errorf("no %s attribute: %w", forecastAttribute, ErrMissingForecastData)}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ParseError{Stage: "payload", Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}

	blob := &forecastBlob{
		Descriptions: map[string]string{},
	}
	if data, ok := raw["units"]; ok {
		if err := json.Unmarshal(data, &blob.Units); err != nil {
			return nil, &ParseError{Stage: "payload", Err: fmt.Errorf("%w: units: %v", ErrMalformedPayload, err)}
		}
	}
	if data, ok := raw["sDesc"]; ok {
		if err := json.Unmarshal(data, &blob.Descriptions); err != nil {
			return nil, &ParseError{Stage: "payload", Err: fmt.Errorf("%w: sDesc: %v", ErrMalformedPayload, err)}
		}
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	seen := map[int]string{}
	for _, key := range keys {
		match := dayKeyPattern.FindStringSubmatch(key)
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, &ParseError{Stage: "payload", Err: fmt.Errorf("%w: day key %q: %v", ErrMalformedPayload, key, err)}
		}
		if previous, ok := seen[index]; ok {
			return nil, &ParseError{Stage: "payload", Err: fmt.Errorf("%w: day keys %q and %q share index %d", ErrMalformedPayload, previous, key, index)}
		}
		seen[index] = key
		var day rawDay
		if err := json.Unmarshal(raw[key], &day); err != nil {
			return nil, &ParseError{Stage: "normalize:" + key, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
		}
		blob.Days = append(blob.Days, blobDay{Key: key, Index: index, Data: day})
	}
	sort.Slice(blob.Days, func(i, j int) bool {
		return blob.Days[i].Index < blob.Days[j].Index
	})

	return blob, nil
}

// readDateMap builds the day index to date lookup from the date selector.
// A missing selector yields an empty map.
func readDateMap(doc *goquery.Document) dateMap {
	dates := dateMap{}
	doc.Find(dateSelectorSelector).First().Find("option").Each(func(_ int, option *goquery.Selection) {
		value, _ := option.Attr("value")
		if value == "" {
			return
		}
		index, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return
		}
		dates[index] = strings.TrimSpace(option.Text())
	})
	return dates
}

func (d dateMap) lookup(index int) string {
	if date, ok := d[index]; ok && date != "" {
		return date
	}
	return unknownValue
}

func (u blobUnits) withDefaults() Units {
	units := Units{Temperature: "°C", Precipitation: "mm", WindSpeed: "km/h"}
	if u.Temperature != "" {
		units.Temperature = u.Temperature
	}
	if u.Precipitation != "" {
		units.Precipitation = u.Precipitation
	}
	if u.WindSpeed != "" {
		units.WindSpeed = u.WindSpeed
	}
	return units
}
