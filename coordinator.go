package tangguh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// pendingEntry is an in-flight request shared between its owner and any
// waiters that arrived while it was outstanding.
type pendingEntry struct {
	mu       sync.Mutex
	response *Response
	err      error
	done     chan struct{}
	waiters  int
}

// waiterCount reports how many callers share this entry, owner included.
func (e *pendingEntry) waiterCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waiters
}

// Wait blocks until the owning request settles or ctx is cancelled.
// Abandoning interest does not cancel the underlying operation.
func (e *pendingEntry) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-e.done:
		e.mu.Lock()
		resp, err := e.response, e.err
		e.mu.Unlock()
		return resp, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// pendingTracker coalesces concurrent logically-identical requests, any
// verb, into a single network operation.
type pendingTracker struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{entries: make(map[string]*pendingEntry)}
}

// getOrCreate returns the existing entry for key (owner=false) or registers
// a new one (owner=true). Check and register happen under one lock so no
// second owner can slip in between.
func (t *pendingTracker) getOrCreate(key string) (*pendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &pendingEntry{
		done:    make(chan struct{}),
		waiters: 1,
	}
	t.entries[key] = entry
	return entry, true
}

// complete settles the entry and removes it from the map synchronously, so
// a call issued after settle starts a fresh operation.
func (t *pendingTracker) complete(key string, resp *Response, err error) {
	t.mu.Lock()
	entry, exists := t.entries[key]
	delete(t.entries, key)
	t.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.response = resp
	entry.err = err
	entry.mu.Unlock()
	close(entry.done)
}

// clear drops all pending bookkeeping. In-flight operations still settle;
// their completions find no entry and are ignored.
func (t *pendingTracker) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*pendingEntry)
}

func (t *pendingTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// DefaultRequestKey builds the canonical request key
// "METHOD:url:params:data". Params encode in sorted query order; data
// serializes by direct JSON marshaling, so struct field order and slice
// order are significant. A GET with neither params nor data keys as
// "GET:/path::".
func DefaultRequestKey(method, rawURL string, params url.Values, data any) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(rawURL)
	b.WriteByte(':')
	b.WriteString(serializeParams(params))
	b.WriteByte(':')
	b.WriteString(serializeData(data))
	return b.String()
}

// CanonicalRequestKey is a canonicalizing variant of DefaultRequestKey: it
// round-trips data through an untyped map so logically identical objects
// with differently ordered fields produce one key.
func CanonicalRequestKey(method, rawURL string, params url.Values, data any) string {
	return DefaultRequestKey(method, rawURL, params, canonicalize(data))
}

func serializeParams(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	return params.Encode()
}

func serializeData(data any) string {
	if data == nil {
		return ""
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(encoded)
}

func canonicalize(data any) any {
	if data == nil {
		return nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var untyped any
	if err := json.Unmarshal(encoded, &untyped); err != nil {
		return data
	}
	return untyped
}
