package tangguh

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the resilient API-client core. It owns all coordination state:
// the pending-request map, the response cache, the refresh handle, and the
// credential store. It is safe for concurrent use; a Reset at sign-out
// clears every piece of shared state.
type Client struct {
	baseURL     string
	refreshPath string
	timeout     time.Duration

	httpClient *http.Client
	transport  *Transport

	durable Storage
	session Storage
	creds   *CredentialStore

	cache          ResponseCache
	cacheTTL       time.Duration
	cacheCondition CacheCondition
	keyFunc        RequestKeyFunc

	pending *pendingTracker
	refresh *refreshCoordinator
	events  *dispatcher

	retryBaseDelay    time.Duration
	retryableStatuses []int

	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker

	metrics *MetricsCollector
	logger  Logger
	debug   *DebugConfig

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	c := &Client{
		refreshPath:       "/auth/refresh",
		timeout:           30 * time.Second,
		cache:             NewInMemoryCache(),
		cacheTTL:          5 * time.Minute,
		cacheCondition:    DefaultCacheCondition,
		keyFunc:           DefaultRequestKey,
		pending:           newPendingTracker(),
		events:            newDispatcher(),
		retryBaseDelay:    time.Second,
		retryableStatuses: DefaultRetryableStatuses,
		debug:             DefaultDebugConfig(),
	}

	for _, option := range options {
		option(c)
	}

	if c.durable == nil {
		c.durable = NewMemoryStorage()
	}
	if c.session == nil {
		c.session = NewMemoryStorage()
	}
	c.creds = NewCredentialStore(c.durable, c.session)
	c.creds.notify = c.events.credentialRefreshed

	c.transport = NewTransport(c.timeout, func() string { return c.creds.Read().Token })
	if c.httpClient != nil {
		c.transport.httpClient = c.httpClient
	}

	c.refresh = newRefreshCoordinator(c.transport, c.creds, c.events, c.baseURL+c.refreshPath)
	c.refresh.logger = c.logger
	c.refresh.debug = c.debug
	c.refresh.metrics = c.metrics

	if err := c.validateConfiguration(); err != nil {
		c.validationError = err
	}

	return c
}

// Execute performs one logical API call through the full pipeline: cache
// lookup, in-flight deduplication, dispatch, 401 refresh-and-replay, cache
// store. N concurrent logically-identical calls collapse into one network
// operation and observe the same outcome.
func (c *Client) Execute(ctx context.Context, method, path string, opts *RequestOptions) (*Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}
	if opts == nil {
		opts = &RequestOptions{}
	}
	method = strings.ToUpper(method)
	rawURL := c.baseURL + path
	key := c.keyFunc(method, rawURL, opts.Params, opts.Data)

	start := time.Now()
	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting request", "requestID", requestID, "method", method, "url", rawURL)
	}

	if c.metrics != nil {
		c.metrics.RecordRequestStart(method)
		defer c.metrics.RecordRequestEnd(method)
	}

	cacheable := c.cache != nil && !opts.SkipCache && c.cacheCondition(method, opts)
	if cc, ok := cacheControlFromContext(ctx); ok {
		cacheable = c.cache != nil && !opts.SkipCache && cc.Enabled
	}

	if cacheable {
		if entry, found := c.cache.Get(key); found {
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("Cache hit", "requestID", requestID, "key", key)
			}
			if c.metrics != nil {
				c.metrics.RecordCacheHit(method)
				c.metrics.RecordRequest(method, entry.Response.StatusCode, time.Since(start))
			}
			return entry.Response, nil
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(method)
		}
	}

	// Check-and-register happens under one lock; no await sits between the
	// cache lookup above and pending registration that could let a second
	// owner in for the same key.
	entry, owner := c.pending.getOrCreate(key)
	if !owner {
		if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
			c.logger.Debug("Coalesced into in-flight request", "requestID", requestID, "key", key, "waiters", entry.waiterCount())
		}
		if c.metrics != nil {
			c.metrics.RecordDedupHit(method)
		}
		resp, err := entry.Wait(ctx)
		c.recordOutcome(method, resp, start)
		return resp, err
	}

	resp, err := c.dispatch(ctx, method, rawURL, opts)

	// Errors are never cached.
	if err == nil && cacheable {
		ttl := c.cacheTTL
		if cc, ok := cacheControlFromContext(ctx); ok && cc.TTL > 0 {
			ttl = cc.TTL
		}
		c.cache.Set(key, &CacheEntry{Response: resp, StoredAt: time.Now()}, ttl)
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("Response cached", "requestID", requestID, "key", key, "ttl", ttl)
		}
	}

	c.pending.complete(key, resp, err)
	c.recordOutcome(method, resp, start)
	return resp, err
}

// dispatch sends the request through the reliability guards and handles the
// one-shot 401 refresh-and-replay.
func (c *Client) dispatch(ctx context.Context, method, rawURL string, opts *RequestOptions) (*Response, error) {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		if c.metrics != nil {
			c.metrics.RecordRateLimited()
			c.metrics.RecordError("RateLimit", method)
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
			c.logger.Warn("Rate limit exceeded", "method", method, "url", rawURL)
		}
		err := &TransportError{Method: method, URL: rawURL, Err: ErrRateLimited}
		c.events.rateLimited(Classify(err))
		return nil, err
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		if c.metrics != nil {
			c.metrics.RecordError("CircuitOpen", method)
		}
		return nil, &TransportError{Method: method, URL: rawURL, Err: ErrCircuitOpen}
	}

	resp, err := c.transport.Do(ctx, method, rawURL, opts.Params, opts.Data, opts.Header)
	c.recordBreaker(err)

	// One-shot per request: the replay result is returned as-is, a second
	// 401 is never re-refreshed.
	if statusOf(err) == http.StatusUnauthorized && c.refresh != nil {
		if _, rerr := c.refresh.refresh(ctx); rerr != nil {
			return nil, rerr
		}
		resp, err = c.transport.Do(ctx, method, rawURL, opts.Params, opts.Data, opts.Header)
		c.recordBreaker(err)
	}

	if statusOf(err) == http.StatusTooManyRequests {
		c.events.rateLimited(Classify(err))
	}
	if err != nil && c.metrics != nil {
		if statusOf(err) == 0 {
			c.metrics.RecordError("Network", method)
		} else {
			c.metrics.RecordError("HTTP", method)
		}
	}
	return resp, err
}

func (c *Client) recordBreaker(err error) {
	if c.circuitBreaker == nil {
		return
	}
	if err != nil && (statusOf(err) == 0 || statusOf(err) >= 500) {
		c.circuitBreaker.RecordFailure()
		return
	}
	c.circuitBreaker.RecordSuccess()
}

func (c *Client) recordOutcome(method string, resp *Response, start time.Time) {
	if c.metrics == nil {
		return
	}
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordRequest(method, statusCode, time.Since(start))
}

// Get performs a GET through the pipeline.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.Execute(ctx, http.MethodGet, path, &RequestOptions{Params: params})
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, data any) (*Response, error) {
	return c.Execute(ctx, http.MethodPost, path, &RequestOptions{Data: data})
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, data any) (*Response, error) {
	return c.Execute(ctx, http.MethodPut, path, &RequestOptions{Data: data})
}

// Patch performs a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, data any) (*Response, error) {
	return c.Execute(ctx, http.MethodPatch, path, &RequestOptions{Data: data})
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Execute(ctx, http.MethodDelete, path, nil)
}

// InvalidateCache removes every cached response whose key contains pattern,
// typically called after a mutation ("/api/users" busts all user reads).
func (c *Client) InvalidateCache(pattern string) {
	if c.cache != nil {
		c.cache.DeletePattern(pattern)
	}
}

// ClearCache empties the response cache.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Reset clears all shared coordination state: response cache, pending map,
// refresh handle, and stored credentials. Call at sign-out.
func (c *Client) Reset() {
	if c.cache != nil {
		c.cache.Clear()
	}
	c.pending.clear()
	if c.refresh != nil {
		c.refresh.reset()
	}
	c.creds.Clear()
}

// Credentials exposes the credential store for login/logout flows.
func (c *Client) Credentials() *CredentialStore {
	return c.creds
}

// Subscribe registers a listener for client lifecycle events.
func (c *Client) Subscribe(l Listener) {
	c.events.subscribe(l)
}

// Unsubscribe removes a previously subscribed listener.
func (c *Client) Unsubscribe(l Listener) {
	c.events.unsubscribe(l)
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
