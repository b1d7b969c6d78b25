package httpclient

import "fmt"

// HTTPError is a non-2xx response from the open-data registry. Callers
// inspect StatusCode to tell transient upstream failures from permanent
// ones.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError wraps a failed request's status and URL into an HTTPError
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}
