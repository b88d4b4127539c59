package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"

	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

// FromRegistryError converts an error returned by the registry client into
// an envelope carrying the request's correlation ID. Errors that did not come
// from the client become INTERNAL_ERROR.
func FromRegistryError(ctx context.Context, err error) *errors.ErrorEnvelope {
	envelope := EnsureEnvelope(err)
	if envelope.CorrelationID == "" {
		correlationID := extractCorrelationID(ctx)
		envelope = envelope.WithCorrelationID(correlationID).WithTraceID(correlationID)
	}
	return envelope
}

// registryEnvelope maps client errors to envelopes. It returns nil for
// errors the client does not produce.
func registryEnvelope(err error) *errors.ErrorEnvelope {
	var (
		httpErr      *companieshouse.HTTPError
		rateLimitErr *companieshouse.RateLimitError
		configErr    *companieshouse.ConfigError
		urlErr       *url.Error
	)

	switch {
	case stderrors.As(err, &rateLimitErr):
		return rateLimitEnvelope(rateLimitErr)

	case stderrors.As(err, &httpErr):
		envelope := errors.NewErrorEnvelope(codeForStatus(httpErr.StatusCode), scrub(httpErr.Message, httpErr.URL))
		envelope = withContext(envelope, map[string]interface{}{
			"upstream_status": httpErr.StatusCode,
			"url":             redactURL(httpErr.URL),
		})
		if httpErr.StatusCode >= http.StatusInternalServerError {
			envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
		}
		return envelope

	case stderrors.Is(err, companieshouse.ErrUnknownEntityType),
		stderrors.Is(err, companieshouse.ErrMissingIdentifier):
		return errors.NewErrorEnvelope(CodeInvalidInput, err.Error())

	case stderrors.As(err, &configErr):
		envelope := errors.NewErrorEnvelope(CodeConfigInvalid, configErr.Error())
		return withContext(envelope, map[string]interface{}{"field": configErr.Field})

	case stderrors.Is(err, context.DeadlineExceeded):
		envelope := errors.NewErrorEnvelope(CodeTimeout, "registry request timed out")
		return withContext(envelope, wrappedErrorContext(err))

	case stderrors.Is(err, context.Canceled):
		envelope := errors.NewErrorEnvelope(CodeUnavailable, "registry request cancelled")
		return withContext(envelope, wrappedErrorContext(err))

	case stderrors.As(err, &urlErr):
		envelope := errors.NewErrorEnvelope(CodeExternalService, "registry unreachable")
		envelope = withContext(envelope, map[string]interface{}{
			"url":           redactURL(urlErr.URL),
			"wrapped_error": scrub(urlErr.Err.Error(), urlErr.URL),
		})
		envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
		return envelope
	}
	return nil
}

func rateLimitEnvelope(err *companieshouse.RateLimitError) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeRateLimited, scrub(err.Error(), err.URL))

	data := map[string]interface{}{"url": redactURL(err.URL)}
	if err.Err != nil {
		data["reason"] = err.Err.Error()
	}
	if err.Reset != "" {
		data["reset"] = err.Reset
	}
	if err.Wait > 0 {
		data["retry_after_seconds"] = int(math.Ceil(err.Wait.Seconds()))
	}
	envelope = withContext(envelope, data)
	envelope, _ = envelope.WithSeverity(errors.SeverityMedium)
	return envelope
}

// redactURL masks the access token carried in registry request URLs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	query := u.Query()
	if !query.Has("access_token") {
		return raw
	}
	query.Set("access_token", "REDACTED")
	u.RawQuery = query.Encode()
	return u.String()
}

func scrub(message, rawURL string) string {
	if rawURL == "" {
		return message
	}
	return strings.ReplaceAll(message, rawURL, redactURL(rawURL))
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= 400 && status < 500:
		return CodeInvalidInput
	default:
		return CodeExternalService
	}
}

// routePattern keeps error metrics low-cardinality by preferring the chi
// route pattern over the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// Describe renders an envelope as a single line for terminal output.
func Describe(envelope *errors.ErrorEnvelope) string {
	if envelope == nil {
		return ""
	}
	return fmt.Sprintf("[%s] %s", envelope.Code, envelope.Message)
}
