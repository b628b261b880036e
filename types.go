package tangguh

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Response is the uniform success/failure envelope returned by the backend.
// Data carries the raw payload for the caller to decode.
type Response struct {
	StatusCode int             `json:"statusCode"`
	Header     http.Header     `json:"header,omitempty"`
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	Errors     []FieldError    `json:"errors,omitempty"`
}

// FieldError is a single field-level validation error from the backend.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// RequestOptions carries per-call parameters for Client.Execute.
type RequestOptions struct {
	// Params are encoded into the query string and into the request key.
	Params url.Values

	// Data is serialized as the JSON request body for mutating verbs.
	Data any

	// SkipCache bypasses the response cache for this call. In-flight
	// deduplication still applies.
	SkipCache bool

	// Header holds extra headers merged into the outgoing request.
	Header http.Header
}

// RequestKeyFunc builds the canonical key identifying a logically unique
// request for caching and deduplication.
type RequestKeyFunc func(method, url string, params url.Values, data any) string

// CacheEntry is an immutable cached response. It is valid only while
// younger than its TTL; expired entries are evicted lazily on lookup.
type CacheEntry struct {
	Response  *Response `json:"response"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResponseCache stores successful responses keyed by canonical request key.
// Implementations must be safe for concurrent use.
type ResponseCache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Delete(key string)
	// DeletePattern removes every key containing pattern as a substring.
	DeletePattern(pattern string)
	Clear()
}

// CacheCondition decides whether a request is eligible for caching.
type CacheCondition func(method string, opts *RequestOptions) bool

// DefaultCacheCondition caches GET requests only.
func DefaultCacheCondition(method string, opts *RequestOptions) bool {
	return method == http.MethodGet
}

// Credential is the stored access credential. ExpiresAt is the zero time
// when the token carries no decodable expiry.
type Credential struct {
	Token      string
	ExpiresAt  time.Time
	RememberMe bool
}

// Valid reports whether a token is present.
func (c Credential) Valid() bool {
	return c.Token != ""
}

// Option configures a Client.
type Option func(*Client)

type contextKey string

const cacheControlKey contextKey = "tangguh_cache_control"

// CacheControl overrides cache behavior for a single request via context.
type CacheControl struct {
	Enabled bool
	TTL     time.Duration
}
