package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chwrapper/chwrapper/internal/config"
	apperrors "github.com/chwrapper/chwrapper/internal/errors"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}
}

func serve(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(Options{Server: testServerConfig()})

	rec := serve(t, srv, http.MethodGet, "/does-not-exist")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)

	rec = serve(t, srv, http.MethodPost, "/version")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerWithoutClientHasNoProxyRoutes(t *testing.T) {
	srv := New(Options{Server: testServerConfig()})

	rec := serve(t, srv, http.MethodGet, "/v1/company/00000006")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerHealthRoutesToggle(t *testing.T) {
	disabled := New(Options{Server: testServerConfig()})
	assert.Equal(t, http.StatusNotFound, serve(t, disabled, http.MethodGet, "/health").Code)

	enabled := New(Options{Server: testServerConfig(), Health: true, Version: "1.0.0"})
	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/startup"} {
		assert.Equal(t, http.StatusOK, serve(t, enabled, http.MethodGet, path).Code, path)
	}
}

func TestServerProxiesRegistry(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(companieshouse.HeaderRemain, "10")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"company_number":"00000006"}`))
	}))
	t.Cleanup(upstream.Close)

	client, err := companieshouse.New(
		companieshouse.WithToken("pk.test"),
		companieshouse.WithBaseURL(upstream.URL),
		companieshouse.WithHTTPClient(upstream.Client()),
	)
	require.NoError(t, err)

	srv := New(Options{Server: testServerConfig(), Client: client, Raise: true, Health: true})

	rec := serve(t, srv, http.MethodGet, "/v1/company/00000006")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"company_number":"00000006"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(t, srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"registry":"healthy"`)
}

func TestServerAdminEndpoint(t *testing.T) {
	without := New(Options{Server: testServerConfig()})
	assert.Equal(t, http.StatusNotFound, serve(t, without, http.MethodPost, "/admin/signal").Code)

	with := New(Options{Server: testServerConfig(), AdminToken: "secret"})
	rec := serve(t, with, http.MethodPost, "/admin/signal")
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, http.StatusOK, rec.Code, "unauthenticated signal must be rejected")
}

func TestServerAddr(t *testing.T) {
	srv := New(Options{Server: config.ServerConfig{Host: "0.0.0.0", Port: 8080}})
	assert.Equal(t, "0.0.0.0:8080", srv.Addr())
	assert.Equal(t, 8080, srv.Port())
}

func TestProxyBudgetStaysInsideWriteTimeout(t *testing.T) {
	assert.Equal(t, 270*time.Second, proxyBudget(5*time.Minute))
	assert.Less(t, proxyBudget(time.Second), time.Second)
	assert.Zero(t, proxyBudget(0))
}
