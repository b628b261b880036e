package tangguh

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WithBaseURL sets the base URL prepended to request paths.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithRefreshPath sets the credential refresh endpoint path.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithTimeout sets the transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client for the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithCache sets the response cache backend.
func WithCache(cache ResponseCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithoutCache disables response caching entirely.
func WithoutCache() Option {
	return func(c *Client) {
		c.cache = nil
	}
}

// WithCacheTTL sets the default cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithCacheCondition sets a custom cache eligibility check.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) {
		c.cacheCondition = fn
	}
}

// WithRequestKeyFunc sets a custom request key function.
func WithRequestKeyFunc(fn RequestKeyFunc) Option {
	return func(c *Client) {
		c.keyFunc = fn
	}
}

// WithCanonicalKeys makes key construction canonicalize body objects so
// logically identical requests with differently ordered fields share one
// key. Off by default to preserve the order-sensitive source behavior.
func WithCanonicalKeys() Option {
	return func(c *Client) {
		c.keyFunc = CanonicalRequestKey
	}
}

// WithDurableStorage sets the durable credential scope (remembered logins).
func WithDurableStorage(s Storage) Option {
	return func(c *Client) {
		c.durable = s
	}
}

// WithSessionStorage sets the session-scoped credential storage.
func WithSessionStorage(s Storage) Option {
	return func(c *Client) {
		c.session = s
	}
}

// WithRetryDefaults sets the defaults used by Run when RetryOptions leaves
// them unset.
func WithRetryDefaults(baseDelay time.Duration, retryableStatuses []int) Option {
	return func(c *Client) {
		if baseDelay > 0 {
			c.retryBaseDelay = baseDelay
		}
		if retryableStatuses != nil {
			c.retryableStatuses = retryableStatuses
		}
	}
}

// WithRateLimiter enables the client-side token bucket.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithCircuitBreaker enables the circuit breaker.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithListener subscribes a listener at construction time.
func WithListener(l Listener) Option {
	return func(c *Client) {
		c.events.subscribe(l)
	}
}

func (c *Client) validateConfiguration() error {
	var errs []string

	if c.timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.cache != nil && c.cacheTTL <= 0 {
		errs = append(errs, "cacheTTL must be positive when caching is enabled")
	}
	if c.retryBaseDelay <= 0 {
		errs = append(errs, "retry base delay must be positive")
	}
	for _, status := range c.retryableStatuses {
		if status < 100 || status > 599 {
			errs = append(errs, fmt.Sprintf("retryable status %d out of range", status))
		}
	}
	if c.keyFunc == nil {
		errs = append(errs, "request key function must not be nil")
	}
	if c.cacheCondition == nil {
		errs = append(errs, "cache condition must not be nil")
	}
	if c.refreshPath != "" && !strings.HasPrefix(c.refreshPath, "/") {
		errs = append(errs, "refresh path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("tangguh: configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
