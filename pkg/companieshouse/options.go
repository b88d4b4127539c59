package companieshouse

import (
	"net/http"
	"net/url"
)

// CallOption configures a single endpoint call.
type CallOption func(*callOptions)

type callOptions struct {
	params    url.Values
	header    http.Header
	ignore    map[int]struct{}
	overrides map[int]string
	raise     bool
}

func newCallOptions(opts []CallOption) *callOptions {
	o := &callOptions{
		params: url.Values{},
		header: http.Header{},
		raise:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *callOptions) ignores(code int) bool {
	_, ok := o.ignore[code]
	return ok
}

// WithParam adds a query parameter, passed to the registry verbatim.
func WithParam(key, value string) CallOption {
	return func(o *callOptions) {
		o.params.Add(key, value)
	}
}

// WithParams adds every query parameter in values.
func WithParams(values url.Values) CallOption {
	return func(o *callOptions) {
		for key, vals := range values {
			for _, v := range vals {
				o.params.Add(key, v)
			}
		}
	}
}

// WithHeader sets a header on the registry request. Authorization and
// User-Agent are always the session's own.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		o.header.Set(key, value)
	}
}

// WithIgnore suppresses the given status codes for this call only.
func WithIgnore(codes ...int) CallOption {
	return func(o *callOptions) {
		if o.ignore == nil {
			o.ignore = make(map[int]struct{}, len(codes))
		}
		for _, code := range codes {
			o.ignore[code] = struct{}{}
		}
	}
}

// WithOverride fails the call with message when the response has status code.
func WithOverride(code int, message string) CallOption {
	return func(o *callOptions) {
		if o.overrides == nil {
			o.overrides = make(map[int]string)
		}
		o.overrides[code] = message
	}
}

// WithOverrides registers several override messages at once.
func WithOverrides(messages map[int]string) CallOption {
	return func(o *callOptions) {
		for code, message := range messages {
			WithOverride(code, message)(o)
		}
	}
}

// WithoutRaise passes 4xx and 5xx responses through instead of failing.
// Override messages still apply.
func WithoutRaise() CallOption {
	return func(o *callOptions) {
		o.raise = false
	}
}
