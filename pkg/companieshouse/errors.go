package companieshouse

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrMissingResetHeader is returned when the quota is exhausted but the
	// response carries no X-Ratelimit-Reset header.
	ErrMissingResetHeader = errors.New("no X-Ratelimit-Reset header in response")

	// ErrInvalidResetHeader is returned when X-Ratelimit-Reset is not an
	// integer UNIX timestamp.
	ErrInvalidResetHeader = errors.New("X-Ratelimit-Reset is not a UNIX timestamp")

	// ErrNegativeWaitDuration is returned when the reset time has already
	// passed, which points at clock skew or a stale header.
	ErrNegativeWaitDuration = errors.New("X-Ratelimit-Reset time is negative")

	// ErrUnknownEntityType is returned for a significant-control entity type
	// outside individual, corporate, legal, statements and secure.
	ErrUnknownEntityType = errors.New("wrong entity type supplied, choose from individual, corporate, legal, statements or secure")

	// ErrMissingIdentifier is returned when a required path identifier is blank.
	ErrMissingIdentifier = errors.New("identifier is required")
)

// RateLimitError reports a failed rate-limit suspension.
type RateLimitError struct {
	// URL is the request URL whose response triggered the suspension.
	URL string
	// Reset is the raw X-Ratelimit-Reset value, empty when missing.
	Reset string
	// Wait is the computed suspension, meaningful for negative waits.
	Wait time.Duration
	// Err is one of the sentinel errors or a context error.
	Err error
}

func (e *RateLimitError) Error() string {
	switch {
	case errors.Is(e.Err, ErrNegativeWaitDuration):
		return fmt.Sprintf("rate limit: %v (reset %s, wait %s)", e.Err, e.Reset, e.Wait)
	case e.Reset != "":
		return fmt.Sprintf("rate limit: %v (reset %q)", e.Err, e.Reset)
	default:
		return fmt.Sprintf("rate limit: %v", e.Err)
	}
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// HTTPError is a response status the classifier refused to pass through.
type HTTPError struct {
	StatusCode int
	// Status is the status line text, e.g. "401 Unauthorized".
	Status string
	URL    string
	// Message is either the caller's override or the default status message.
	Message string
	// Custom reports whether Message came from an override.
	Custom bool
}

func (e *HTTPError) Error() string {
	return e.Message
}

// defaultHTTPErrorMessage renders the conventional "<code> Client Error:
// <reason> for url: <url>" message.
func defaultHTTPErrorMessage(code int, url string) string {
	kind := "Client Error"
	if code >= 500 {
		kind = "Server Error"
	}
	reason := http.StatusText(code)
	if reason == "" {
		reason = "Unknown"
	}
	return fmt.Sprintf("%d %s: %s for url: %s", code, kind, reason, url)
}

// ConfigError indicates a problem with the client configuration.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, msg)
	}
	return fmt.Sprintf("config error: %s", msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
