package companieshouse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
)

// Outcome tags a classified response.
type Outcome int

const (
	// OutcomeOK carries a response the caller owns.
	OutcomeOK Outcome = iota
	// OutcomeIgnored means the status was on an ignore list; no body is kept.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what an endpoint call produced when it did not fail.
type Result struct {
	Outcome    Outcome
	StatusCode int
	// Response is set only for OutcomeOK. The caller must close its body,
	// directly or through one of the helpers below.
	Response *http.Response
}

// OK reports whether the result carries a response.
func (r *Result) OK() bool {
	return r != nil && r.Outcome == OutcomeOK && r.Response != nil
}

// Ignored reports whether the status was suppressed by an ignore list.
func (r *Result) Ignored() bool {
	return r != nil && r.Outcome == OutcomeIgnored
}

// Bytes reads and closes the response body.
func (r *Result) Bytes() ([]byte, error) {
	if !r.OK() {
		return nil, fmt.Errorf("no response body: result is %s", r.outcome())
	}
	defer r.Response.Body.Close() // nolint:errcheck // body fully read above
	return io.ReadAll(r.Response.Body)
}

// Raw returns the body as raw JSON without decoding it.
func (r *Result) Raw() (json.RawMessage, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("response body is not valid JSON")
	}
	return json.RawMessage(data), nil
}

// DecodeJSON decodes the body into v and closes it.
func (r *Result) DecodeJSON(v any) error {
	if !r.OK() {
		return fmt.Errorf("no response body: result is %s", r.outcome())
	}
	defer r.Response.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body
	return json.NewDecoder(r.Response.Body).Decode(v)
}

// RateLimit returns the quota state reported by the response.
func (r *Result) RateLimit() RateLimitState {
	if !r.OK() {
		return RateLimitState{}
	}
	return ParseRateLimit(r.Response.Header)
}

func (r *Result) outcome() Outcome {
	if r == nil {
		return OutcomeIgnored
	}
	return r.Outcome
}

// Classifier turns responses into results or errors. Its persistent ignore
// set may be changed at any time and is read on every response.
type Classifier struct {
	mu     sync.RWMutex
	ignore map[int]struct{}
}

// NewClassifier returns a classifier with the given persistent ignore set.
func NewClassifier(ignore ...int) *Classifier {
	c := &Classifier{ignore: make(map[int]struct{}, len(ignore))}
	for _, code := range ignore {
		c.ignore[code] = struct{}{}
	}
	return c
}

// Ignore adds status codes to the persistent ignore set.
func (c *Classifier) Ignore(codes ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ignore == nil {
		c.ignore = make(map[int]struct{}, len(codes))
	}
	for _, code := range codes {
		c.ignore[code] = struct{}{}
	}
}

// Unignore removes status codes from the persistent ignore set.
func (c *Classifier) Unignore(codes ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, code := range codes {
		delete(c.ignore, code)
	}
}

// SetIgnored replaces the persistent ignore set in one step.
func (c *Classifier) SetIgnored(codes ...int) {
	ignore := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		ignore[code] = struct{}{}
	}
	c.mu.Lock()
	c.ignore = ignore
	c.mu.Unlock()
}

// Ignored returns the persistent ignore set in ascending order.
func (c *Classifier) Ignored() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]int, 0, len(c.ignore))
	for code := range c.ignore {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

func (c *Classifier) ignores(code int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ignore[code]
	return ok
}

// Classify applies, in order: ignore lists, override messages, the default
// raise on 4xx/5xx, pass-through. Responses that do not come back as
// OutcomeOK have their body closed.
func (c *Classifier) Classify(resp *http.Response, opts ...CallOption) (*Result, error) {
	return c.classify(resp, newCallOptions(opts))
}

func (c *Classifier) classify(resp *http.Response, o *callOptions) (*Result, error) {
	code := resp.StatusCode

	if o.ignores(code) || c.ignores(code) {
		closeBody(resp)
		return &Result{Outcome: OutcomeIgnored, StatusCode: code}, nil
	}

	url := ""
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}

	if message, ok := o.overrides[code]; ok {
		closeBody(resp)
		return nil, &HTTPError{StatusCode: code, Status: resp.Status, URL: url, Message: message, Custom: true}
	}

	if o.raise && code >= http.StatusBadRequest {
		closeBody(resp)
		return nil, &HTTPError{StatusCode: code, Status: resp.Status, URL: url, Message: defaultHTTPErrorMessage(code, url)}
	}

	return &Result{Outcome: OutcomeOK, StatusCode: code, Response: resp}, nil
}
