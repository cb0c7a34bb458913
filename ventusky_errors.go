package ventusky

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingForecastData is returned when the page has no embedded forecast element or payload.
	ErrMissingForecastData = errors.New("missing forecast data")
	// ErrMalformedPayload is returned when the embedded payload is not valid JSON or a day lacks required arrays.
	ErrMalformedPayload = errors.New("malformed forecast payload")
	// ErrSectionAbsent marks an optional page section that could not be found.
	// Parse never returns it; the affected part of the result is left empty.
	ErrSectionAbsent = errors.New("section absent")
)

// ParseError reports which stage of the extraction failed.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ventusky: %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is returned by FetchHTML for non-2xx responses.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}
