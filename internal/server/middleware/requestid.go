package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

// RequestIDHeader is echoed on every response and forwarded on proxied
// registry requests.
const RequestIDHeader = companieshouse.HeaderRequestID

const maxRequestIDLength = 128

type requestIDKey struct{}

// RequestID assigns each request an ID. A caller-supplied X-Request-ID is
// kept when it is a plain token; anything else is replaced with a UUID, since
// the ID travels on to the registry.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
