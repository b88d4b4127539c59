package companieshouse

import "golang.org/x/time/rate"

// The registry allows 600 requests per five minute window per key.
const (
	DefaultRequestsPerMinute = 120
	DefaultPacerBurst        = 10
	secondsPerMinute         = 60.0
)

// NewPacer builds a token bucket that spaces requests out before they reach
// the registry. A non-positive requestsPerMinute disables pacing and returns
// nil; a non-positive burst falls back to DefaultPacerBurst.
func NewPacer(requestsPerMinute float64, burst int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = DefaultPacerBurst
	}
	return rate.NewLimiter(rate.Limit(requestsPerMinute/secondsPerMinute), burst)
}
