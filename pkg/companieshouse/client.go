package companieshouse

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Version is the library version reported in the User-Agent.
	Version = "0.1.0"
	// DefaultBaseURL is the registry API authority.
	DefaultBaseURL = "https://api.companieshouse.gov.uk/"
	// DefaultDocumentURL is the authority serving filed documents.
	DefaultDocumentURL = "https://document-api.companieshouse.gov.uk/"
	// DefaultTimeout bounds the wait for response headers of one request. It
	// does not bound a rate-limit suspension.
	DefaultTimeout = 30 * time.Second

	goUserAgent = "Go-http-client/1.1"
)

// ProductToken identifies the library in User-Agent headers.
func ProductToken() string {
	return "chwrapper/" + Version
}

// Client is a session against the registry. It is safe for concurrent use.
type Client struct {
	token       string
	baseURL     *url.URL
	documentURL *url.URL
	userAgent   string
	httpClient  *http.Client
	transport   *RateLimitTransport
	classifier  *Classifier
	logger      Logger
}

// Option configures a Client.
type Option func(*settings)

type settings struct {
	token        string
	env          Environ
	baseURL      string
	documentURL  string
	httpClient   *http.Client
	userAgent    string
	timeout      time.Duration
	safetyMargin time.Duration
	pacer        *rate.Limiter
	logger       Logger
	observer     Observer
	clock        func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	ignore       []int
}

// WithToken sets an explicit access token, taking precedence over the
// environment.
func WithToken(token string) Option {
	return func(s *settings) { s.token = token }
}

// WithEnviron replaces the environment consulted for a token.
func WithEnviron(env Environ) Option {
	return func(s *settings) { s.env = env }
}

// WithBaseURL overrides the registry API authority.
func WithBaseURL(raw string) Option {
	return func(s *settings) { s.baseURL = raw }
}

// WithDocumentURL overrides the document API authority.
func WithDocumentURL(raw string) Option {
	return func(s *settings) { s.documentURL = raw }
}

// WithHTTPClient uses hc's transport, redirect policy and jar. A Timeout on
// hc also bounds rate-limit suspensions.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithUserAgent replaces the product token at the front of the User-Agent.
func WithUserAgent(product string) Option {
	return func(s *settings) { s.userAgent = product }
}

// WithTimeout sets the response header timeout of the default transport.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithSafetyMargin changes the margin added to every rate-limit wait.
func WithSafetyMargin(d time.Duration) Option {
	return func(s *settings) { s.safetyMargin = d }
}

// WithPacer throttles requests before they are sent.
func WithPacer(limiter *rate.Limiter) Option {
	return func(s *settings) { s.pacer = limiter }
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithObserver receives response and suspension measurements.
func WithObserver(observer Observer) Option {
	return func(s *settings) { s.observer = observer }
}

// WithClock replaces the UTC clock used for wait computation.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) { s.clock = clock }
}

// WithSleep replaces how the transport suspends.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *settings) { s.sleep = sleep }
}

// WithIgnoredStatuses seeds the persistent ignore set.
func WithIgnoredStatuses(codes ...int) Option {
	return func(s *settings) { s.ignore = append(s.ignore, codes...) }
}

// New builds a session. The token is resolved once, here.
func New(opts ...Option) (*Client, error) {
	s := &settings{
		env:         OSEnviron,
		baseURL:     DefaultBaseURL,
		documentURL: DefaultDocumentURL,
		userAgent:   ProductToken(),
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	baseURL, err := parseAuthority("base_url", s.baseURL)
	if err != nil {
		return nil, err
	}
	documentURL, err := parseAuthority("document_url", s.documentURL)
	if err != nil {
		return nil, err
	}
	if s.safetyMargin < 0 {
		return nil, &ConfigError{Field: "safety_margin", Message: "must not be negative"}
	}

	logger := s.logger
	if logger == nil {
		logger = nopLogger
	}

	transport := &RateLimitTransport{
		Base:         baseTransport(s),
		SafetyMargin: s.safetyMargin,
		Pacer:        s.pacer,
		Logger:       logger,
		Observer:     s.observer,
		Clock:        s.clock,
		Sleep:        s.sleep,
	}

	hc := &http.Client{Transport: transport}
	if s.httpClient != nil {
		hc.CheckRedirect = s.httpClient.CheckRedirect
		hc.Jar = s.httpClient.Jar
		hc.Timeout = s.httpClient.Timeout
	}

	userAgent := strings.TrimSpace(s.userAgent)
	if userAgent == "" {
		userAgent = ProductToken()
	}

	return &Client{
		token:       ResolveToken(s.token, s.env),
		baseURL:     baseURL,
		documentURL: documentURL,
		userAgent:   userAgent + " " + goUserAgent,
		httpClient:  hc,
		transport:   transport,
		classifier:  NewClassifier(s.ignore...),
		logger:      logger,
	}, nil
}

// Token returns the resolved access token, possibly empty.
func (c *Client) Token() string { return c.token }

// BaseURL returns the registry API authority.
func (c *Client) BaseURL() *url.URL { return c.baseURL }

// DocumentURL returns the document API authority.
func (c *Client) DocumentURL() *url.URL { return c.documentURL }

// UserAgent returns the User-Agent sent with every request.
func (c *Client) UserAgent() string { return c.userAgent }

// Transport returns the installed rate-limited transport.
func (c *Client) Transport() *RateLimitTransport { return c.transport }

// Ignore adds status codes to the session's ignore set.
func (c *Client) Ignore(codes ...int) { c.classifier.Ignore(codes...) }

// Unignore removes status codes from the session's ignore set.
func (c *Client) Unignore(codes ...int) { c.classifier.Unignore(codes...) }

// SetIgnoredStatuses replaces the session's ignore set atomically.
func (c *Client) SetIgnoredStatuses(codes ...int) { c.classifier.SetIgnored(codes...) }

// IgnoredStatuses lists the session's ignore set.
func (c *Client) IgnoredStatuses() []int { return c.classifier.Ignored() }

// get is the single request path shared by every endpoint method.
func (c *Client) get(ctx context.Context, endpoint string, authority *url.URL, path string, opts []CallOption) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := newCallOptions(opts)

	u, err := authority.Parse(path)
	if err != nil {
		return nil, &ConfigError{Field: "path", Err: err}
	}
	query := u.Query()
	for key, values := range o.params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	if c.token != "" && !query.Has("access_token") {
		query.Set("access_token", c.token)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(withEndpoint(ctx, endpoint), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range o.header {
		req.Header[key] = values
	}
	req.SetBasicAuth(c.token, "")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("Registry request",
		zap.String("endpoint", endpoint),
		zap.String("path", u.Path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return c.classifier.classify(resp, o)
}

func parseAuthority(field, raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &ConfigError{Field: field, Err: err}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &ConfigError{Field: field, Message: "must be an absolute URL: " + raw}
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func baseTransport(s *settings) http.RoundTripper {
	if s.httpClient != nil && s.httpClient.Transport != nil {
		return s.httpClient.Transport
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.timeout > 0 {
		transport.ResponseHeaderTimeout = s.timeout
	}
	return transport
}
