package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/cache"
	"github.com/abdul-hamid-achik/nicehttp/packages/doh"
	"github.com/abdul-hamid-achik/nicehttp/packages/parser"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
	// DefaultUserAgent is sent unless a user-agent header overrides it
	DefaultUserAgent = "NiceHttp"
)

// RequestIDHeader carries the id added by WithRequestID.
const RequestIDHeader = "X-Request-Id"

// Client issues requests with shared defaults. It is safe for concurrent use;
// every call builds its own http.Client over a shared connection pool.
type Client struct {
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	defaultReferer string
	defaultCookies map[string]string
	defaultData    map[string]string
	cacheTime      time.Duration
	maxTextSize    int64
	parser         parser.Parser
	logger         *slog.Logger
	middlewares    []Middleware
	limiter        *rate.Limiter
	store          cache.Store
	resolver       *doh.Resolver
	requestID      bool
	jar            http.CookieJar

	transport *http.Transport
	insecure  func() *http.Transport
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: map[string]string{"User-Agent": DefaultUserAgent},
		maxTextSize:    DefaultMaxTextSize,
		parser:         parser.NewJSON(),
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	// Configure proxy if specified
	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			c.logger.Warn("ignoring invalid proxy url", "proxy", c.proxyURL, "error", err)
		}
	}

	if c.resolver != nil {
		transport.DialContext = c.resolver.DialContext
	}

	c.transport = transport
	c.insecure = sync.OnceValue(func() *http.Transport {
		return IgnoreAllSSLErrors(transport)
	})

	return c
}

// WithTimeout sets the default per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[http.CanonicalHeaderKey(key)] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[http.CanonicalHeaderKey(k)] = v
		}
	}
}

func WithDefaultReferer(referer string) ClientOption {
	return func(c *Client) {
		c.defaultReferer = referer
	}
}

// WithDefaultCookies sets cookies sent with every request.
func WithDefaultCookies(cookies map[string]string) ClientOption {
	return func(c *Client) {
		if c.defaultCookies == nil {
			c.defaultCookies = make(map[string]string, len(cookies))
		}
		for k, v := range cookies {
			c.defaultCookies[k] = v
		}
	}
}

// WithDefaultData sets form fields sent by calls that have no body input of
// their own.
func WithDefaultData(data map[string]string) ClientOption {
	return func(c *Client) {
		c.defaultData = data
	}
}

// WithDefaultCacheTime enables the response cache for every GET. It needs
// WithCacheStore.
func WithDefaultCacheTime(d time.Duration) ClientOption {
	return func(c *Client) {
		c.cacheTime = d
	}
}

// WithCacheStore sets the store used by the response cache.
func WithCacheStore(store cache.Store) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithMaxTextSize caps the bounded text accessors of responses.
func WithMaxTextSize(n int64) ClientOption {
	return func(c *Client) {
		if n <= 0 {
			n = DefaultMaxTextSize
		}
		c.maxTextSize = n
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithParser sets the parser for JSON bodies and response decoding. A nil
// parser makes structured calls fail with ErrNoParser.
func WithParser(p parser.Parser) ClientOption {
	return func(c *Client) {
		c.parser = p
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMiddleware appends transport middlewares. The first one sees the
// request first.
func WithMiddleware(mws ...Middleware) ClientOption {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithThrottle limits the client to rps requests per second with the given
// burst. rps <= 0 disables throttling.
func WithThrottle(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithResolver resolves host names over DNS-over-HTTPS.
func WithResolver(r *doh.Resolver) ClientOption {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithRequestID tags every request with a random X-Request-Id unless the
// call sets one.
func WithRequestID() ClientOption {
	return func(c *Client) {
		c.requestID = true
	}
}

// Custom issues a request with any method.
func (c *Client) Custom(ctx context.Context, method, url string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, NewRequest(method, url, opts...))
}

func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Custom(ctx, http.MethodGet, url, opts...)
}

func (c *Client) Post(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Custom(ctx, http.MethodPost, url, opts...)
}

func (c *Client) Put(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Custom(ctx, http.MethodPut, url, opts...)
}

func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Custom(ctx, http.MethodDelete, url, opts...)
}

func (c *Client) Head(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Custom(ctx, http.MethodHead, url, opts...)
}

func (c *Client) Patch(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Custom(ctx, http.MethodPatch, url, opts...)
}

func (c *Client) Options(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Custom(ctx, http.MethodOptions, url, opts...)
}

// Do executes req. Cancelling ctx aborts the call. The per-call deadline
// stays active until the response body is read or closed.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	// Validate URL before making request
	if err := ValidateURL(req.URL); err != nil {
		return nil, err
	}

	target, err := AppendParams(req.URL, req.Params)
	if err != nil {
		return nil, err
	}

	p := req.Parser
	if p == nil {
		p = c.parser
	}

	form := req.Data
	if req.Body == nil && form == nil && req.JSON == nil && len(req.Files) == 0 {
		form = c.defaultData
	}

	method := strings.ToUpper(req.Method)
	body, err := Negotiate(method, req.Body, form, req.JSON, req.Files, p)
	if err != nil {
		return nil, err
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, method, target, body.Reader())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("building request: %w", err)
	}

	defaultCookies := c.defaultCookies
	if c.jar != nil {
		defaultCookies = sessionCookies(c.jar, httpReq.URL, c.defaultCookies, nil)
	}
	httpReq.Header = ComposeHeaders(c.defaultHeaders, req.Headers, c.defaultReferer, req.Referer, defaultCookies, req.Cookies)
	if body.ContentType != "" {
		httpReq.Header.Set("Content-Type", body.ContentType)
	}
	if c.requestID && httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}

	start := time.Now()
	httpResp, err := c.httpClient(req).Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		cancel()
		return nil, c.callError(ctx, callCtx, timeout, err)
	}
	httpResp.Body = &cancelOnClose{ReadCloser: httpResp.Body, cancel: cancel}

	resp := newResponse(httpResp, duration, p, c.maxTextSize, c.logger)
	c.logger.Debug("request completed",
		"method", method,
		"url", resp.URL,
		"status", resp.StatusCode,
		"duration", duration,
		"request_id", resp.RequestID,
	)
	return resp, nil
}

// httpClient layers the call's overrides on the shared transport.
func (c *Client) httpClient(req *Request) *http.Client {
	follow := c.followRedirect
	if req.AllowRedirects != nil {
		follow = *req.AllowRedirects
	}

	verify := c.validateSSL
	if req.Verify != nil {
		verify = *req.Verify
	}
	base := c.transport
	if !verify {
		base = c.insecure()
	}

	cacheTime := c.cacheTime
	if req.CacheTime != nil {
		cacheTime = *req.CacheTime
	}

	mws := make([]Middleware, 0, len(c.middlewares)+4)
	if c.jar != nil {
		mws = append(mws, keepCookies(c.jar, c.defaultCookies, req.Cookies, !hasHeader(req.Headers, "Cookie")))
	}
	mws = append(mws, c.middlewares...)
	mws = append(mws, req.Interceptor)
	if c.store != nil && cacheTime > 0 {
		mws = append(mws, forceCache(c.store, cacheTime, c.maxTextSize, c.logger))
	}
	if c.limiter != nil {
		mws = append(mws, throttle(c.limiter, c.logger))
	}

	maxRedirects := c.maxRedirects
	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	return &http.Client{
		Transport:     Chain(base, mws...),
		CheckRedirect: redirectPolicy,
	}
}

func (c *Client) callError(ctx, callCtx context.Context, timeout time.Duration, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("request aborted: %w", ctxErr)
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
	}
	return fmt.Errorf("executing request: %w", err)
}

// cancelOnClose releases the per-call context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	// Check for valid scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	// Check for valid host
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
