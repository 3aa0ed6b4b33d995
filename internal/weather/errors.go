package weather

import "fmt"

// TransportError reports a failed or non-2xx call to the weather service.
type TransportError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("weather: GET %s: %v", e.URL, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("weather: GET %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("weather: GET %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError reports model output that is not a usable geopoint.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	preview := e.Raw
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return fmt.Sprintf("weather: cannot parse geopoint (%s): %q", e.Reason, preview)
}
