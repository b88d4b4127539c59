package companieshouse

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newResponse(t *testing.T, code int) (*http.Response, *trackedBody) {
	t.Helper()
	u, err := url.Parse("https://api.example.test/company/12345")
	require.NoError(t, err)
	body := &trackedBody{Reader: strings.NewReader(`{"company_number":"12345"}`)}
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Header:     http.Header{},
		Body:       body,
		Request:    &http.Request{Method: http.MethodGet, URL: u},
	}, body
}

func TestClassifyPassThrough(t *testing.T) {
	resp, body := newResponse(t, http.StatusOK)

	result, err := NewClassifier().Classify(resp)
	require.NoError(t, err)
	require.True(t, result.OK())
	require.Equal(t, OutcomeOK, result.Outcome)
	require.Same(t, resp, result.Response)
	require.False(t, body.closed)
}

func TestClassifyDefaultRaise(t *testing.T) {
	resp, body := newResponse(t, http.StatusUnauthorized)

	result, err := NewClassifier().Classify(resp)
	require.Nil(t, result)
	require.True(t, body.closed)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	require.False(t, httpErr.Custom)
	require.Contains(t, err.Error(), "401")
	require.Equal(t, "401 Client Error: Unauthorized for url: https://api.example.test/company/12345", err.Error())
}

func TestClassifyServerErrorMessage(t *testing.T) {
	resp, _ := newResponse(t, http.StatusBadGateway)

	_, err := NewClassifier().Classify(resp)
	require.EqualError(t, err, "502 Server Error: Bad Gateway for url: https://api.example.test/company/12345")
}

func TestClassifyWithoutRaise(t *testing.T) {
	resp, _ := newResponse(t, http.StatusNotFound)

	result, err := NewClassifier().Classify(resp, WithoutRaise())
	require.NoError(t, err)
	require.True(t, result.OK())
	require.Equal(t, http.StatusNotFound, result.StatusCode)
}

func TestClassifyOverrideBeatsDefault(t *testing.T) {
	resp, _ := newResponse(t, http.StatusUnauthorized)

	_, err := NewClassifier().Classify(resp, WithOverride(http.StatusUnauthorized, "error"))
	require.EqualError(t, err, "error")

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.True(t, httpErr.Custom)
}

func TestClassifyOverrideAppliesWithoutRaise(t *testing.T) {
	resp, _ := newResponse(t, http.StatusOK)

	_, err := NewClassifier().Classify(resp, WithoutRaise(), WithOverrides(map[int]string{http.StatusOK: "unexpected success"}))
	require.EqualError(t, err, "unexpected success")
}

func TestClassifyIgnoreBeatsOverrideAndRaise(t *testing.T) {
	resp, body := newResponse(t, http.StatusNotFound)

	result, err := NewClassifier().Classify(resp,
		WithIgnore(http.StatusNotFound),
		WithOverride(http.StatusNotFound, "company missing"))
	require.NoError(t, err)
	require.True(t, result.Ignored())
	require.False(t, result.OK())
	require.Nil(t, result.Response)
	require.Equal(t, http.StatusNotFound, result.StatusCode)
	require.True(t, body.closed)
}

func TestClassifyPersistentIgnoreSet(t *testing.T) {
	classifier := NewClassifier(http.StatusGone)
	classifier.Ignore(http.StatusNotFound, http.StatusUnauthorized)
	require.Equal(t, []int{401, 404, 410}, classifier.Ignored())

	resp, _ := newResponse(t, http.StatusNotFound)
	result, err := classifier.Classify(resp)
	require.NoError(t, err)
	require.True(t, result.Ignored())

	classifier.Unignore(http.StatusNotFound)
	resp, _ = newResponse(t, http.StatusNotFound)
	_, err = classifier.Classify(resp)
	require.Error(t, err)
}

func TestClassifySetIgnoredSwapsWholeSet(t *testing.T) {
	classifier := NewClassifier(http.StatusNotFound, http.StatusUnauthorized)
	classifier.SetIgnored(http.StatusNotFound, http.StatusGone)
	require.Equal(t, []int{404, 410}, classifier.Ignored())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				classifier.SetIgnored(http.StatusNotFound)
			} else {
				classifier.SetIgnored(http.StatusNotFound, http.StatusGone)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		resp, _ := newResponse(t, http.StatusNotFound)
		result, err := classifier.Classify(resp)
		require.NoError(t, err)
		require.True(t, result.Ignored())
	}
	<-done

	classifier.SetIgnored()
	require.Empty(t, classifier.Ignored())
}

func TestResultHelpersOnIgnored(t *testing.T) {
	result := &Result{Outcome: OutcomeIgnored, StatusCode: http.StatusNotFound}

	_, err := result.Bytes()
	require.Error(t, err)
	require.Error(t, result.DecodeJSON(&map[string]any{}))
	require.Equal(t, RateLimitState{}, result.RateLimit())
	require.Equal(t, "ignored", result.Outcome.String())
}

func TestResultDecodeJSON(t *testing.T) {
	resp, body := newResponse(t, http.StatusOK)
	result := &Result{Outcome: OutcomeOK, StatusCode: http.StatusOK, Response: resp}

	var payload struct {
		CompanyNumber string `json:"company_number"`
	}
	require.NoError(t, result.DecodeJSON(&payload))
	require.Equal(t, "12345", payload.CompanyNumber)
	require.True(t, body.closed)
}
