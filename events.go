package tangguh

import (
	"sync"
	"time"
)

// Diagnostic describes a 5xx or network-class failure forwarded to
// observability listeners.
type Diagnostic struct {
	Message   string
	Status    int
	Method    string
	URL       string
	Cause     error
	Timestamp time.Time
}

// Listener receives client lifecycle notifications. Embed NopListener to
// implement a subset of the interface.
type Listener interface {
	// OnCredentialRefreshed fires after a new credential has been persisted.
	OnCredentialRefreshed(cred Credential)

	// OnRateLimited fires when a request is classified as rate limited.
	OnRateLimited(apiErr *APIError)

	// OnSessionInvalid fires when a credential refresh fails terminally;
	// the consumer is expected to force a sign-out.
	OnSessionInvalid(err error)

	// OnDiagnostic fires for 5xx and network-class failures.
	OnDiagnostic(d Diagnostic)
}

// NopListener implements Listener with no-ops.
type NopListener struct{}

func (NopListener) OnCredentialRefreshed(Credential) {}
func (NopListener) OnRateLimited(*APIError)          {}
func (NopListener) OnSessionInvalid(error)           {}
func (NopListener) OnDiagnostic(Diagnostic)          {}

// dispatcher fans notifications out to subscribed listeners. A panicking
// listener never affects the caller or other listeners.
type dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

func newDispatcher() *dispatcher {
	return &dispatcher{}
}

func (d *dispatcher) subscribe(l Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *dispatcher) unsubscribe(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.listeners {
		if existing == l {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

func (d *dispatcher) snapshot() []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Listener, len(d.listeners))
	copy(out, d.listeners)
	return out
}

func (d *dispatcher) credentialRefreshed(cred Credential) {
	for _, l := range d.snapshot() {
		safeNotify(func() { l.OnCredentialRefreshed(cred) })
	}
}

func (d *dispatcher) rateLimited(apiErr *APIError) {
	for _, l := range d.snapshot() {
		safeNotify(func() { l.OnRateLimited(apiErr) })
	}
}

func (d *dispatcher) sessionInvalid(err error) {
	for _, l := range d.snapshot() {
		safeNotify(func() { l.OnSessionInvalid(err) })
	}
}

func (d *dispatcher) diagnostic(diag Diagnostic) {
	for _, l := range d.snapshot() {
		safeNotify(func() { l.OnDiagnostic(diag) })
	}
}

func safeNotify(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
