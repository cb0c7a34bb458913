package ventusky

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const titleSeparator = " - "

// Parse extracts the forecast from a ventusky page.
//
// The embedded 8-day forecast is required: without it Parse fails with an
// error matching ErrMissingForecastData or ErrMalformedPayload. The 24-hour
// table, the date selector and the page title are optional and only leave
// their part of the result empty or "unknown".
//
// Parse is pure and CPU bound; callers on a latency sensitive path should run
// it on their own goroutine.
func Parse(document string) (*ForecastResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, &ParseError{Stage: "document", Err: fmt.Errorf("parse html: %w", err)}
	}

	blob, err := decodeForecastBlob(doc)
	if err != nil {
		return nil, err
	}
	dates := readDateMap(doc)

	days, err := normalizeDays(blob, dates)
	if err != nil {
		return nil, err
	}

	return &ForecastResult{
		Location:  extractLocation(doc),
		Units:     blob.Units.withDefaults(),
		Hourly24h: scrapeHourly(doc, dates),
		Forecast:  days,
	}, nil
}

// extractLocation reads the place name from titles like
// "Weather - Sartrouville - 14-Day Forecast & Rain | Ventusky".
func extractLocation(doc *goquery.Document) string {
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return unknownValue
	}
	parts := strings.Split(title.Text(), titleSeparator)
	if len(parts) < 2 {
		return unknownValue
	}
	if location := strings.TrimSpace(parts[1]); location != "" {
		return location
	}
	return unknownValue
}
