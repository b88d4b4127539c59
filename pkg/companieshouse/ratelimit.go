package companieshouse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate limit headers returned by the registry.
const (
	HeaderRemain = "X-Ratelimit-Remain"
	HeaderReset  = "X-Ratelimit-Reset"
	HeaderLimit  = "X-Ratelimit-Limit"
	HeaderWindow = "X-Ratelimit-Window"

	// HeaderRequestID correlates a registry request with the caller's own
	// request. It is sent when set through WithHeader and logged by the
	// transport.
	HeaderRequestID = "X-Request-ID"
)

// DefaultSafetyMargin is added to every computed wait so requests resume
// after the quota window has actually rolled over.
const DefaultSafetyMargin = time.Second

// RateLimitState is the quota information carried by a single response.
type RateLimitState struct {
	Remain        string
	RemainPresent bool
	Reset         string
	ResetPresent  bool
	Limit         string
	Window        string
}

// ParseRateLimit reads the rate limit headers from h.
func ParseRateLimit(h http.Header) RateLimitState {
	var state RateLimitState
	if values := h.Values(HeaderRemain); len(values) > 0 {
		state.Remain = values[0]
		state.RemainPresent = true
	}
	if values := h.Values(HeaderReset); len(values) > 0 {
		state.Reset = values[0]
		state.ResetPresent = true
	}
	state.Limit = h.Get(HeaderLimit)
	state.Window = h.Get(HeaderWindow)
	return state
}

// Exhausted reports whether the quota is used up. A missing remain header
// counts as exhausted and the value is compared as a string, so "00" is not
// exhausted.
func (s RateLimitState) Exhausted() bool {
	remain := s.Remain
	if !s.RemainPresent {
		remain = "0"
	}
	return remain == "0"
}

// ResetTime parses the reset header as a UNIX timestamp.
func (s RateLimitState) ResetTime() (time.Time, error) {
	if !s.ResetPresent {
		return time.Time{}, ErrMissingResetHeader
	}
	seconds, err := strconv.ParseInt(strings.TrimSpace(s.Reset), 10, 64)
	if err != nil {
		return time.Time{}, ErrInvalidResetHeader
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// RateLimitTransport is an http.RoundTripper that suspends the caller when a
// response reports an exhausted quota. Every request is sent exactly once;
// the suspension happens after the response arrives and before it is handed
// back, so the next call starts in a fresh quota window.
//
// The body of an exhausted response is read into memory before the
// suspension, so the upstream connection is not held open while waiting.
//
// Redirect hops that the http.Client will follow are not inspected; only the
// final response of a redirect chain can suspend the caller.
//
// Requests started on the same transport while another call is suspended
// wait for that suspension's deadline before they are sent.
type RateLimitTransport struct {
	// Base sends the request. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// SafetyMargin is added to every wait. Defaults to DefaultSafetyMargin.
	SafetyMargin time.Duration
	// Pacer optionally throttles requests before they are sent.
	Pacer    *rate.Limiter
	Logger   Logger
	Observer Observer
	Clock    func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	blockedUntil time.Time
}

// RoundTrip implements http.RoundTripper.
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointFromContext(ctx)

	if wait, err := t.awaitBlocked(ctx, endpoint); err != nil {
		return nil, &RateLimitError{URL: req.URL.String(), Wait: wait, Err: err}
	}
	if t.Pacer != nil {
		if err := t.Pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	started := t.now()
	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.observer().ObserveResponse(endpoint, resp.StatusCode, t.now().Sub(started))

	state := ParseRateLimit(resp.Header)
	if isFollowedRedirect(resp) {
		return resp, nil
	}

	t.logger().Debug("Rate limit state",
		zap.String("endpoint", endpoint),
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.String("remain", state.Remain),
		zap.Bool("remain_present", state.RemainPresent),
		zap.String("reset", state.Reset),
		zap.String("limit", state.Limit))

	if !state.Exhausted() {
		return resp, nil
	}

	wait, err := t.waitFor(state)
	if err != nil {
		closeBody(resp)
		return nil, &RateLimitError{URL: req.URL.String(), Reset: state.Reset, Wait: wait, Err: err}
	}

	if err := bufferBody(resp); err != nil {
		return nil, fmt.Errorf("read registry response before suspension: %w", err)
	}

	t.block(t.now().Add(wait))
	t.logger().Warn("Rate limit exhausted, suspending",
		zap.String("endpoint", endpoint),
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.String("path", req.URL.Path),
		zap.String("reset", state.Reset),
		zap.Duration("wait", wait))
	t.observer().ObserveRateLimitWait(endpoint, wait)

	if err := t.sleep(ctx, wait); err != nil {
		closeBody(resp)
		return nil, &RateLimitError{URL: req.URL.String(), Reset: state.Reset, Wait: wait, Err: err}
	}

	return resp, nil
}

// BlockedUntil returns the latest suspension deadline seen by the transport.
func (t *RateLimitTransport) BlockedUntil() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blockedUntil
}

func (t *RateLimitTransport) waitFor(state RateLimitState) (time.Duration, error) {
	reset, err := state.ResetTime()
	if err != nil {
		return 0, err
	}
	wait := reset.Sub(t.now()) + t.margin()
	if wait < 0 {
		return wait, ErrNegativeWaitDuration
	}
	return wait, nil
}

// awaitBlocked sleeps out a suspension set by an earlier response. It returns
// the wait it was asked to serve.
func (t *RateLimitTransport) awaitBlocked(ctx context.Context, endpoint string) (time.Duration, error) {
	until := t.BlockedUntil()
	if until.IsZero() {
		return 0, nil
	}
	remaining := until.Sub(t.now())
	if remaining <= 0 {
		return 0, nil
	}
	t.logger().Debug("Waiting for pending rate limit suspension",
		zap.String("endpoint", endpoint),
		zap.Duration("wait", remaining))
	t.observer().ObserveRateLimitWait(endpoint, remaining)
	return remaining, t.sleep(ctx, remaining)
}

func (t *RateLimitTransport) block(until time.Time) {
	t.mu.Lock()
	if until.After(t.blockedUntil) {
		t.blockedUntil = until
	}
	t.mu.Unlock()
}

func (t *RateLimitTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *RateLimitTransport) margin() time.Duration {
	if t.SafetyMargin > 0 {
		return t.SafetyMargin
	}
	return DefaultSafetyMargin
}

func (t *RateLimitTransport) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}

func (t *RateLimitTransport) sleep(ctx context.Context, d time.Duration) error {
	if t.Sleep != nil {
		return t.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (t *RateLimitTransport) logger() Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return nopLogger
}

func (t *RateLimitTransport) observer() Observer {
	if t.Observer != nil {
		return t.Observer
	}
	return nopObserver{}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// bufferBody replaces the body of resp with an in-memory copy and closes the
// original.
func bufferBody(resp *http.Response) error {
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return nil
}

func isFollowedRedirect(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return resp.Header.Get("Location") != ""
	default:
		return false
	}
}

func closeBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
