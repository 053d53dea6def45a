// Package api is the HTTP client for the Wagtee REST backend. It injects bearer
// tokens, retries server errors with exponential backoff, refreshes an expired
// access token once per burst of 401s and maps every failure onto an ErrorKind.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/wagtee/go-client/logger"
	"github.com/wagtee/go-client/metrics"
	"github.com/wagtee/go-client/resilience"
	"github.com/wagtee/go-client/tokens"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

const (
	DefaultBaseURL       = "http://localhost:8000/api"
	DefaultTimeout       = 30 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultRefreshPath   = "/accounts/token/refresh/"

	// HeaderRequestID carries a per-call uuid, shared by every attempt of that call.
	HeaderRequestID = "X-Request-ID"
)

// Request describes one call. Path is appended to the base URL verbatim and may carry a query.
type Request struct {
	Method string
	Path   string
	// Body is JSON encoded. A []byte or json.RawMessage is sent as is.
	Body   any
	Header http.Header
	// SkipAuth omits the bearer token and disables refresh on 401.
	SkipAuth bool
	// Timeout overrides the client timeout for the whole call, retries included.
	Timeout time.Duration
	// Raw keeps a non-JSON success body (exports, files) in Response.Data.
	Raw bool

	noRetry bool
}

// Client is safe for concurrent use. At most one token refresh is in flight per Client.
type Client struct {
	baseURL       string
	storage       tokens.Storage
	client        *http.Client
	logger        logger.Logger
	timeout       time.Duration
	retryAttempts int
	retryDelay    time.Duration
	refreshPath   string
	userAgent     string
	limiter       *rate.Limiter
	breaker       *resilience.CircuitBreaker
	metrics       *metrics.Metrics
	sleep         func(ctx context.Context, d time.Duration) error
	tracer        trace.Tracer

	refreshGroup singleflight.Group
	refreshing   atomic.Bool

	hooksMu       sync.RWMutex
	onRefresh     []func(tokens.Pair)
	onAuthFailure []func()
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.logger = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the total time allowed per call. Defaults to DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetryAttempts sets how many times a server or transport error is retried.
func WithRetryAttempts(n int) Option {
	return func(c *Client) { c.retryAttempts = n }
}

// WithRetryDelay sets the base delay; attempt i waits delay*2^i.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func WithRefreshPath(p string) Option {
	return func(c *Client) { c.refreshPath = p }
}

// WithRateLimit paces outgoing attempts to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithCircuitBreaker stops sending once the backend keeps failing with 5xx or transport errors.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) { c.breaker = resilience.NewCircuitBreaker(cfg) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithSleep replaces the backoff sleep. Tests use it to record delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New returns a Client for baseURL (DefaultBaseURL when empty) reading tokens from storage.
func New(baseURL string, storage tokens.Storage, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if storage == nil {
		storage = tokens.NewMemory()
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		storage:       storage,
		client:        http.DefaultClient,
		logger:        logger.NewConsoleLogger(logger.LevelWarn),
		timeout:       DefaultTimeout,
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		refreshPath:   DefaultRefreshPath,
		userAgent:     UserAgent(),
		tracer:        otel.Tracer("github.com/wagtee/go-client/api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryAttempts < 0 {
		c.retryAttempts = 0
	}
	return c
}

func UserAgent() string {
	gitSHA := Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				gitSHA = setting.Value
			}
		}
	}
	return "Wagtee Go Client/" + Version + " (" + gitSHA + ")"
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Storage returns the token storage the client reads from.
func (c *Client) Storage() tokens.Storage {
	return c.storage
}

func (c *Client) Logger() logger.Logger {
	return c.logger
}

// Do performs req. It never returns a transport error: every failure is a
// Response with Success false and a Code.
func (c *Client) Do(ctx context.Context, req Request) *Response {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	started := time.Now()
	ctx, span := c.tracer.Start(ctx, "api.Do", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path),
	))
	defer span.End()

	resp := c.do(ctx, req, false)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	if !resp.Success {
		span.SetStatus(codes.Error, resp.Error)
		span.SetAttributes(attribute.String("wagtee.error_kind", string(resp.Code)))
	}
	c.metrics.ObserveRequest(req.Method, resp.Status, string(resp.Code), time.Since(started))
	return resp
}

func (c *Client) do(ctx context.Context, req Request, isRetry bool) *Response {
	log := c.logger.WithContext(ctx)
	u := c.baseURL + req.Path
	if !strings.HasPrefix(req.Path, "/") && req.Path != "" {
		u = c.baseURL + "/" + req.Path
	}
	if _, err := url.Parse(u); err != nil {
		return c.finish(log, req, u, "", failure(0, KindNetwork, fmt.Sprintf("error parsing url: %s", err)))
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return c.finish(log, req, u, "", failure(0, KindValidation, fmt.Sprintf("error marshalling payload: %s", err)))
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := c.headers(ctx, req)
	requestID := header.Get(HeaderRequestID)
	log = log.With(map[string]interface{}{"request_id": requestID})
	log.Trace("sending request: %s %s", req.Method, u)

	res, err := c.send(tctx, log, req, u, header, body)
	if err != nil {
		return c.finish(log, req, u, requestID, c.transportFailure(ctx, err))
	}
	log.Debug("response status: %d %s, body: %s", res.status, u, safeBodyPreview(res.body, res.header.Get("Content-Type"), 200))

	if res.status == http.StatusUnauthorized && !isRetry && !req.SkipAuth {
		log.Debug("access token rejected for %s %s, refreshing", req.Method, req.Path)
		if c.Refresh(ctx) {
			return c.do(ctx, req, true)
		}
		// the shared refresh may still succeed for the other callers
		if err := ctx.Err(); err != nil {
			return c.finish(log, req, u, requestID, failure(0, KindNetwork, err.Error()))
		}
		c.notifyAuthFailure()
		return c.finish(log, req, u, requestID, failure(res.status, KindAuthenticationRequired, "Authentication required. Please log in again."))
	}
	return c.finish(log, req, u, requestID, buildResponse(req, res))
}

func (c *Client) finish(log logger.Logger, req Request, u, requestID string, resp *Response) *Response {
	resp.URL = u
	resp.Method = req.Method
	resp.RequestID = requestID
	if !resp.Success {
		log.Debug("%s %s failed: %s (%s)", req.Method, req.Path, resp.Error, resp.Code)
	}
	return resp
}

func (c *Client) headers(ctx context.Context, req Request) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("User-Agent", c.userAgent)
	h.Set(HeaderRequestID, uuid.NewString())
	if !req.SkipAuth {
		if token := tokens.Access(ctx, c.storage); token != "" {
			h.Set("Authorization", "Bearer "+token)
		} else {
			c.logger.Trace("no access token available for %s", req.Path)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	for k, v := range req.Header {
		h[http.CanonicalHeaderKey(k)] = v
	}
	return h
}

func encodeBody(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}
	return json.Marshal(v)
}

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

// statusError is a 5xx response, retried until attempts run out.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, http.StatusText(e.status))
}

func (c *Client) send(ctx context.Context, log logger.Logger, req Request, u string, header http.Header, body []byte) (*rawResponse, error) {
	var result *rawResponse
	cfg := resilience.RetryConfig{
		MaxRetries:        c.retryAttempts,
		InitialBackoff:    c.retryDelay,
		BackoffMultiplier: 2,
		RetryableErrors:   resilience.DefaultRetryableErrors,
		Sleep:             c.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.metrics.Retry()
			log.Debug("attempt %d of %s %s failed: %s, retrying in %v", attempt+1, req.Method, req.Path, err, delay)
		},
	}
	if req.noRetry {
		cfg.MaxRetries = 0
	}
	err := resilience.Retry(ctx, cfg, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if c.breaker != nil {
			if err := c.breaker.Allow(); err != nil {
				return err
			}
		}
		res, err := c.attempt(ctx, req.Method, u, header, body)
		if err == nil && res.status >= 500 {
			err = &statusError{status: res.status}
		}
		if c.breaker != nil {
			c.breaker.Done(err == nil)
		}
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) attempt(ctx context.Context, method, u string, header http.Header, body []byte) (*rawResponse, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}
	httpReq.Header = header.Clone()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading response body")
	}
	return &rawResponse{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// transportFailure converts what the retry routine gave up with into a Response.
func (c *Client) transportFailure(ctx context.Context, err error) *Response {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return failure(se.status, KindNetwork, se.Error())
	case errors.Is(err, resilience.ErrCircuitBreakerOpen):
		return failure(0, KindServiceUnavailable, "Service unavailable: circuit breaker is open")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return failure(0, KindNetwork, ctx.Err().Error())
	case errors.Is(err, context.DeadlineExceeded):
		return failure(0, KindTimeout, "Request timeout")
	}
	var re *resilience.RetryError
	if errors.As(err, &re) {
		err = re.Err
	}
	msg := err.Error()
	if msg == "" {
		msg = "Network error"
	}
	return failure(0, KindNetwork, msg)
}

func buildResponse(req Request, res *rawResponse) *Response {
	if res.status >= 200 && res.status < 300 {
		resp := &Response{Success: true, Status: res.status}
		if len(res.body) > 0 && (req.Raw || gjson.ValidBytes(res.body)) {
			resp.Data = json.RawMessage(res.body)
		}
		return resp
	}
	var payload json.RawMessage
	if gjson.ValidBytes(res.body) {
		payload = json.RawMessage(res.body)
	}
	switch res.status {
	case http.StatusPaymentRequired:
		resp := failure(res.status, KindSubscriptionRequired, errorMessage(res.body, res.status))
		resp.Data = payload
		return resp
	case http.StatusUnprocessableEntity:
		fields := validationFields(res.body)
		resp := failure(res.status, KindValidation, formatValidation(fields, res.body))
		resp.Data = payload
		resp.Fields = fields
		return resp
	}
	resp := failure(res.status, KindForStatus(res.status), errorMessage(res.body, res.status))
	if res.status == http.StatusBadRequest {
		resp.Fields = validationFields(res.body)
	}
	return resp
}

// safeBodyPreview returns a loggable preview of a response body: text is truncated,
// anything else is replaced by its size and hash.
func safeBodyPreview(body []byte, contentType string, maxChars int) string {
	if maxChars == 0 {
		maxChars = 200
	}
	lower := strings.ToLower(contentType)
	isText := contentType == ""
	for _, t := range []string{"text/", "application/json", "application/problem+json", "application/xml"} {
		if strings.Contains(lower, t) {
			isText = true
			break
		}
	}
	if !isText {
		hash := sha256.Sum256(body)
		return fmt.Sprintf("<binary: %d bytes, sha256=%s>", len(body), hex.EncodeToString(hash[:8]))
	}
	if len(body) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		return string(body[:cut]) + fmt.Sprintf("[truncated, total: %d chars]", len(body))
	}
	return string(body)
}
