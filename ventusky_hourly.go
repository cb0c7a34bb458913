package ventusky

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	hourlySectionSelector   = "div#forecast_24"
	temperatureLineSelector = "[class*='temperature_line']"
	windIconSelector        = "[class*='wind_ico']"
	tomorrowMarker          = "tomorrow"
	precipitationUnit       = "mm"
	speedUnit               = "km/h"
	dateLayout              = "2006/01/02"
)

var (
	signedIntegerPattern = regexp.MustCompile(`-?\d+`)
	integerPattern       = regexp.MustCompile(`\d+`)
	decimalPattern       = regexp.MustCompile(`\d*\.\d+|\d+`)
	windArrowPattern     = regexp.MustCompile(`arrow_(\d+)`)
)

type hourlyHeader struct {
	date string
	time string
}

// scrapeHourly reads the "next 24 hours" table. A missing section or table
// yields an empty slice.
func scrapeHourly(doc *goquery.Document, dates dateMap) []HourlySlot {
	table, err := findHourlyTable(doc)
	if err != nil {
		return []HourlySlot{}
	}

	today, tomorrow := resolveTodayTomorrow(dates)
	headers := readHourlyHeaders(table, today, tomorrow)

	cells := table.Find("tbody tr").First().ChildrenFiltered("td")
	slots := make([]HourlySlot, 0, cells.Length())
	cells.Each(func(i int, cell *goquery.Selection) {
		header := hourlyHeader{date: unknownValue, time: unknownTime}
		if i < len(headers) {
			header = headers[i]
		}
		slots = append(slots, parseHourlyCell(cell, header))
	})
	return slots
}

func findHourlyTable(doc *goquery.Document) (*goquery.Selection, error) {
	section := doc.Find(hourlySectionSelector).First()
	if section.Length() == 0 {
		return nil, ErrSectionAbsent
	}
	table := section.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrSectionAbsent
	}
	return table, nil
}

// resolveTodayTomorrow derives both dates from the day-1 entry of the date selector.
func resolveTodayTomorrow(dates dateMap) (string, string) {
	value, ok := dates[1]
	if !ok {
		return unknownValue, unknownValue
	}
	tomorrow, err := time.Parse(dateLayout, value)
	if err != nil {
		return unknownValue, unknownValue
	}
	return tomorrow.AddDate(0, 0, -1).Format(dateLayout), tomorrow.Format(dateLayout)
}

func readHourlyHeaders(table *goquery.Selection, today, tomorrow string) []hourlyHeader {
	var headers []hourlyHeader
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		text := joinedText(th)
		header := hourlyHeader{date: today, time: unknownTime}
		if strings.Contains(text, tomorrowMarker) {
			header.date = tomorrow
		}
		if fields := strings.Fields(text); len(fields) > 0 {
			header.time = fields[0]
		}
		headers = append(headers, header)
	})
	return headers
}

// parseHourlyCell extracts one column; every field falls back to absent on its own.
func parseHourlyCell(cell *goquery.Selection, header hourlyHeader) HourlySlot {
	direction, bearing := cellWind(cell)
	return HourlySlot{
		Date:                     header.date,
		Time:                     header.time,
		WeatherDescription:       cellDescription(cell),
		TemperatureC:             cellTemperature(cell),
		PrecipitationMM:          cellPrecipitation(cell),
		PrecipitationProbability: cellProbability(cell),
		WindDirection:            direction,
		WindBearingDeg:           bearing,
		WindSpeedKMH:             cellWindSpeed(cell),
	}
}

func cellDescription(cell *goquery.Selection) string {
	if alt, exists := cell.Find("img").First().Attr("alt"); exists {
		return alt
	}
	return unknownValue
}

func cellTemperature(cell *goquery.Selection) Optional[int] {
	line := cell.Find(temperatureLineSelector).First()
	if line.Length() == 0 {
		return None[int]()
	}
	return firstInteger(signedIntegerPattern, normalizeMinus(line.Text()))
}

func cellPrecipitation(cell *goquery.Selection) Optional[float64] {
	for _, text := range fragmentsContaining(cell, precipitationUnit) {
		if match := decimalPattern.FindString(text); match != "" {
			if value, err := strconv.ParseFloat(match, 64); err == nil {
				return Some(value)
			}
		}
	}
	return None[float64]()
}

// cellProbability skips fragments that also carry the precipitation unit; those
// belong to the amount.
func cellProbability(cell *goquery.Selection) Optional[int] {
	for _, text := range fragmentsContaining(cell, "%") {
		if strings.Contains(text, precipitationUnit) {
			continue
		}
		if value := firstInteger(integerPattern, text); value.IsPresent() {
			return value
		}
	}
	return None[int]()
}

func cellWind(cell *goquery.Selection) (Optional[string], Optional[int]) {
	icon := cell.Find(windIconSelector).First()
	if icon.Length() == 0 {
		return None[string](), None[int]()
	}
	direction := Some(strings.TrimSpace(icon.Text()))

	for _, attr := range []string{"class", "style"} {
		value, _ := icon.Attr(attr)
		if match := windArrowPattern.FindStringSubmatch(value); match != nil {
			if degrees, err := strconv.Atoi(match[1]); err == nil {
				return direction, Some(degrees)
			}
		}
	}
	return direction, None[int]()
}

// cellWindSpeed reads the innermost element mentioning km/h, first in document
// order. When that element holds only the unit, its ancestors up to the cell are
// tried in turn.
func cellWindSpeed(cell *goquery.Selection) Optional[int] {
	var speed Optional[int]
	cell.Find("*").EachWithBreak(func(_ int, element *goquery.Selection) bool {
		if !strings.Contains(element.Text(), speedUnit) {
			return true
		}
		innermost := true
		element.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
			if strings.Contains(child.Text(), speedUnit) {
				innermost = false
			}
			return innermost
		})
		if !innermost {
			return true
		}
		for current := element; current.Length() > 0; current = current.Parent() {
			if value := firstInteger(integerPattern, current.Text()); value.IsPresent() {
				speed = value
				break
			}
			if current.IsSelection(cell) {
				break
			}
		}
		return false
	})
	return speed
}

// fragmentsContaining returns the trimmed span texts of the cell that contain marker.
func fragmentsContaining(cell *goquery.Selection, marker string) []string {
	var fragments []string
	cell.Find("span").Each(func(_ int, span *goquery.Selection) {
		text := strings.TrimSpace(span.Text())
		if strings.Contains(text, marker) {
			fragments = append(fragments, text)
		}
	})
	return fragments
}

func firstInteger(pattern *regexp.Regexp, text string) Optional[int] {
	match := pattern.FindString(text)
	if match == "" {
		return None[int]()
	}
	value, err := strconv.Atoi(match)
	if err != nil {
		return None[int]()
	}
	return Some(value)
}

// normalizeMinus maps the typographic minus sign to an ASCII hyphen.
func normalizeMinus(text string) string {
	return strings.ReplaceAll(text, "−", "-")
}

// joinedText concatenates the text nodes under s separated by single spaces,
// so "14:00<br>tomorrow" reads as "14:00 tomorrow".
func joinedText(s *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if text := strings.TrimSpace(node.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, node := range s.Nodes {
		walk(node)
	}
	return strings.Join(parts, " ")
}
