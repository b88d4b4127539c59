package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chwrapper/chwrapper/internal/errors"
	"github.com/chwrapper/chwrapper/internal/metrics"
	"github.com/chwrapper/chwrapper/internal/observability"
	"github.com/chwrapper/chwrapper/internal/server/middleware"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

// HeaderIgnoredStatus carries the upstream status of a response suppressed by
// an ignore list. Such responses are answered with 204 and no body.
const HeaderIgnoredStatus = "X-Registry-Ignored-Status"

// Upstream headers relayed to proxy callers.
var relayedHeaders = []string{
	"Content-Type",
	"Content-Disposition",
	"Etag",
	"Last-Modified",
	companieshouse.HeaderRemain,
	companieshouse.HeaderReset,
	companieshouse.HeaderLimit,
	companieshouse.HeaderWindow,
}

type fetchFunc func(r *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error)

// RegistryHandler serves the /v1 proxy routes on top of a registry client.
type RegistryHandler struct {
	client *companieshouse.Client
	raise  bool
	budget time.Duration
}

// NewRegistryHandler wraps client. With raise off, upstream 4xx/5xx bodies are
// relayed with their status instead of becoming error envelopes.
func NewRegistryHandler(client *companieshouse.Client, raise bool) *RegistryHandler {
	return &RegistryHandler{client: client, raise: raise}
}

// WithBudget bounds each proxied call, rate limit suspensions included, to d.
// A call still suspended when the budget runs out is answered with a
// RATE_LIMITED envelope. Zero leaves calls bounded only by the caller.
func (h *RegistryHandler) WithBudget(d time.Duration) *RegistryHandler {
	h.budget = d
	return h
}

// Routes mounts the proxy routes on r.
func (h *RegistryHandler) Routes(r chi.Router) {
	c := h.client

	r.Get("/search/{kind}", h.serve(h.search))

	r.Route("/company/{number}", func(r chi.Router) {
		r.Get("/", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.Profile(req.Context(), param(req, "number"), opts...)
		}))
		r.Get("/registered-office-address", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.RegisteredOfficeAddress(req.Context(), param(req, "number"), opts...)
		}))
		r.Get("/insolvency", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.Insolvency(req.Context(), param(req, "number"), opts...)
		}))
		r.Get("/officers", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.Officers(req.Context(), param(req, "number"), opts...)
		}))
		r.Get("/filing-history", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.FilingHistory(req.Context(), param(req, "number"), "", opts...)
		}))
		r.Get("/filing-history/{transaction}", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.FilingHistory(req.Context(), param(req, "number"), param(req, "transaction"), opts...)
		}))
		r.Get("/charges", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.Charges(req.Context(), param(req, "number"), "", opts...)
		}))
		r.Get("/charges/{chargeID}", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.Charges(req.Context(), param(req, "number"), param(req, "chargeID"), opts...)
		}))
		r.Get("/persons-with-significant-control", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.PersonsSignificantControl(req.Context(), param(req, "number"), false, opts...)
		}))
		r.Get("/persons-with-significant-control-statements", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.PersonsSignificantControl(req.Context(), param(req, "number"), true, opts...)
		}))
		r.Get("/persons-with-significant-control/{entityType}/{entityID}", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.SignificantControl(req.Context(), param(req, "number"), param(req, "entityID"), param(req, "entityType"), opts...)
		}))
	})

	r.Get("/officers/{officerID}/appointments", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
		return c.Appointments(req.Context(), param(req, "officerID"), opts...)
	}))
	r.Get("/disqualified-officers/{kind}/{officerID}", h.serve(h.disqualified))
	r.Get("/document/{documentID}/content", h.serve(func(req *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
		return c.Document(req.Context(), param(req, "documentID"), opts...)
	}))
}

func (h *RegistryHandler) search(r *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		return nil, apperrors.NewInvalidInputError("query parameter q is required")
	}

	switch kind := param(r, "kind"); kind {
	case "companies":
		return h.client.SearchCompanies(r.Context(), term, opts...)
	case "officers":
		return h.client.SearchOfficers(r.Context(), term, false, opts...)
	case "disqualified-officers":
		return h.client.SearchOfficers(r.Context(), term, true, opts...)
	default:
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("unknown search kind %q", kind))
	}
}

func (h *RegistryHandler) disqualified(r *http.Request, opts []companieshouse.CallOption) (*companieshouse.Result, error) {
	switch kind := param(r, "kind"); kind {
	case "natural":
		return h.client.Disqualified(r.Context(), param(r, "officerID"), true, opts...)
	case "corporate":
		return h.client.Disqualified(r.Context(), param(r, "officerID"), false, opts...)
	default:
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("disqualified officer kind must be natural or corporate, got %q", kind))
	}
}

func (h *RegistryHandler) serve(fetch fetchFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.budget > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), h.budget)
			defer cancel()
			r = r.WithContext(ctx)
		}

		result, err := fetch(r, h.callOptions(r))
		if err != nil {
			apperrors.RespondWithError(w, r, apperrors.FromRegistryError(r.Context(), err))
			return
		}
		h.relay(w, r, result)
	}
}

// callOptions forwards the caller's query string and request ID. The access
// token is always the server's own.
func (h *RegistryHandler) callOptions(r *http.Request) []companieshouse.CallOption {
	query := r.URL.Query()
	query.Del("access_token")

	opts := []companieshouse.CallOption{companieshouse.WithParams(query)}
	if id := middleware.GetRequestID(r.Context()); id != "" {
		opts = append(opts, companieshouse.WithHeader(companieshouse.HeaderRequestID, id))
	}
	if !h.raise {
		opts = append(opts, companieshouse.WithoutRaise())
	}
	return opts
}

func (h *RegistryHandler) relay(w http.ResponseWriter, r *http.Request, result *companieshouse.Result) {
	if result.Ignored() {
		w.Header().Set(HeaderIgnoredStatus, strconv.Itoa(result.StatusCode))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := result.Response
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	metrics.RecordQuota(result.RateLimit())

	for _, key := range relayedHeaders {
		if value := resp.Header.Get(key); value != "" {
			w.Header().Set(key, value)
		}
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to relay registry response",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
}

func param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// RegistryChecker reports degraded while the transport is suspended on an
// exhausted quota.
type RegistryChecker struct {
	Transport *companieshouse.RateLimitTransport
	Now       func() time.Time
}

// CheckHealth implements HealthChecker.
func (c RegistryChecker) CheckHealth(ctx context.Context) error {
	if c.Transport == nil {
		return nil
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if until := c.Transport.BlockedUntil(); until.After(now()) {
		return fmt.Errorf("%w: registry quota suspended until %s", ErrDegraded, until.UTC().Format(time.RFC3339))
	}
	return nil
}
