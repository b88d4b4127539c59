package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chwrapper/chwrapper/internal/errors"
	"github.com/chwrapper/chwrapper/internal/server/middleware"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

type upstream struct {
	server *httptest.Server
	hits   atomic.Int32
	last   atomic.Pointer[http.Request]
	status int
}

func newUpstream(t *testing.T, status int) *upstream {
	t.Helper()
	u := &upstream{status: status}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.last.Store(r)
		w.Header().Set(companieshouse.HeaderRemain, "599")
		w.Header().Set(companieshouse.HeaderLimit, "600")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(u.status)
		_, _ = w.Write([]byte(`{"kind":"test","path":"` + r.URL.Path + `"}`))
	}))
	t.Cleanup(u.server.Close)
	return u
}

func newProxy(t *testing.T, u *upstream, raise bool) (http.Handler, *companieshouse.Client) {
	t.Helper()
	client, err := companieshouse.New(
		companieshouse.WithToken("pk.test"),
		companieshouse.WithBaseURL(u.server.URL),
		companieshouse.WithDocumentURL(u.server.URL+"/docs"),
		companieshouse.WithHTTPClient(u.server.Client()),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/v1", NewRegistryHandler(client, raise).Routes)
	return r, client
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRegistryHandlerRelaysResponse(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	proxy, _ := newProxy(t, u, true)

	rec := get(t, proxy, "/v1/company/00000006?items_per_page=5&access_token=stolen")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "599", rec.Header().Get(companieshouse.HeaderRemain))
	assert.JSONEq(t, `{"kind":"test","path":"/company/00000006"}`, rec.Body.String())

	last := u.last.Load()
	require.NotNil(t, last)
	assert.Equal(t, "5", last.URL.Query().Get("items_per_page"))
	assert.Equal(t, "pk.test", last.URL.Query().Get("access_token"))
}

func TestRegistryHandlerRoutes(t *testing.T) {
	tests := []struct {
		target string
		path   string
	}{
		{"/v1/search/companies?q=acme", "/search/companies"},
		{"/v1/search/officers?q=smith", "/search/officers"},
		{"/v1/search/disqualified-officers?q=smith", "/search/disqualified-officers"},
		{"/v1/company/123", "/company/123"},
		{"/v1/company/123/registered-office-address", "/company/123/registered-office-address"},
		{"/v1/company/123/insolvency", "/company/123/insolvency"},
		{"/v1/company/123/officers", "/company/123/officers"},
		{"/v1/company/123/filing-history", "/company/123/filing-history"},
		{"/v1/company/123/filing-history/MzAx", "/company/123/filing-history/MzAx"},
		{"/v1/company/123/charges", "/company/123/charges"},
		{"/v1/company/123/charges/c1", "/company/123/charges/c1"},
		{"/v1/company/123/persons-with-significant-control", "/company/123/persons-with-significant-control"},
		{"/v1/company/123/persons-with-significant-control-statements", "/company/123/persons-with-significant-control-statements"},
		{"/v1/company/123/persons-with-significant-control/corporate/e1", "/company/123/persons-with-significant-control/corporate-entity/e1"},
		{"/v1/officers/o1/appointments", "/officers/o1/appointments"},
		{"/v1/disqualified-officers/natural/o1", "/disqualified-officers/natural/o1"},
		{"/v1/disqualified-officers/corporate/o1", "/disqualified-officers/corporate/o1"},
		{"/v1/document/d1/content", "/docs/document/d1/content"},
	}

	u := newUpstream(t, http.StatusOK)
	proxy, _ := newProxy(t, u, true)

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, proxy, tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.path, u.last.Load().URL.Path)
		})
	}
}

func TestRegistryHandlerRejectsBadInput(t *testing.T) {
	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/v1/search/companies", http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"/v1/search/everything?q=x", http.StatusNotFound, apperrors.CodeNotFound},
		{"/v1/disqualified-officers/robot/o1", http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"/v1/company/123/persons-with-significant-control/alien/e1", http.StatusBadRequest, apperrors.CodeInvalidInput},
	}

	u := newUpstream(t, http.StatusOK)
	proxy, _ := newProxy(t, u, true)

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, proxy, tt.target)
			require.Equal(t, tt.status, rec.Code)

			var resp apperrors.HTTPErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
	assert.Zero(t, u.hits.Load())
}

func TestRegistryHandlerUpstreamErrorBecomesEnvelope(t *testing.T) {
	u := newUpstream(t, http.StatusNotFound)
	proxy, _ := newProxy(t, u, true)

	rec := get(t, proxy, "/v1/company/00000000")

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, apperrors.CodeNotFound, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "pk.test")
	assert.EqualValues(t, 404, resp.Error.Details["upstream_status"])
}

func TestRegistryHandlerRelaysUpstreamErrorWithoutRaise(t *testing.T) {
	u := newUpstream(t, http.StatusNotFound)
	proxy, _ := newProxy(t, u, false)

	rec := get(t, proxy, "/v1/company/00000000")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"kind":"test","path":"/company/00000000"}`, rec.Body.String())
}

func TestRegistryHandlerIgnoredStatus(t *testing.T) {
	u := newUpstream(t, http.StatusNotFound)
	proxy, client := newProxy(t, u, true)
	client.Ignore(http.StatusNotFound)

	rec := get(t, proxy, "/v1/company/00000000/insolvency")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "404", rec.Header().Get(HeaderIgnoredStatus))
	assert.Empty(t, rec.Body.String())
}

func TestRegistryHandlerForwardsRequestID(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	client, err := companieshouse.New(
		companieshouse.WithToken("pk.test"),
		companieshouse.WithBaseURL(u.server.URL),
		companieshouse.WithHTTPClient(u.server.Client()),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Route("/v1", NewRegistryHandler(client, true).Routes)

	req := httptest.NewRequest(http.MethodGet, "/v1/company/00000006", nil)
	req.Header.Set(middleware.RequestIDHeader, "caller-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "caller-42", rec.Header().Get(middleware.RequestIDHeader))

	last := u.last.Load()
	require.NotNil(t, last)
	assert.Equal(t, "caller-42", last.Header.Get(companieshouse.HeaderRequestID))
}

func TestRegistryHandlerBudgetEndsSuspension(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	reset := now.Add(time.Minute)

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set(companieshouse.HeaderRemain, "0")
		w.Header().Set(companieshouse.HeaderReset, strconv.FormatInt(reset.Unix(), 10))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"company_number":"00000006"}`))
	}))
	t.Cleanup(server.Close)

	client, err := companieshouse.New(
		companieshouse.WithToken("pk.test"),
		companieshouse.WithBaseURL(server.URL),
		companieshouse.WithHTTPClient(server.Client()),
		companieshouse.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/v1", NewRegistryHandler(client, true).WithBudget(100*time.Millisecond).Routes)

	started := time.Now()
	rec := get(t, r, "/v1/company/00000006")
	elapsed := time.Since(started)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Less(t, elapsed, 5*time.Second)
	assert.EqualValues(t, 1, hits.Load())

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, apperrors.CodeRateLimited, resp.Error.Code)

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 60)

	// The suspension outlives the call: the next one waits without reaching
	// the registry and also ends at the budget.
	rec = get(t, r, "/v1/company/00000006")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.EqualValues(t, 1, hits.Load())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
