package tangguh

import (
	"errors"
	"testing"
)

// panickingListener panics on every notification.
type panickingListener struct{}

func (panickingListener) OnCredentialRefreshed(Credential) { panic("refreshed") }
func (panickingListener) OnRateLimited(*APIError)          { panic("rate limited") }
func (panickingListener) OnSessionInvalid(error)           { panic("session invalid") }
func (panickingListener) OnDiagnostic(Diagnostic)          { panic("diagnostic") }

func TestDispatcherFansOut(t *testing.T) {
	d := newDispatcher()
	first := &recordingListener{}
	second := &recordingListener{}
	d.subscribe(first)
	d.subscribe(second)

	d.credentialRefreshed(Credential{Token: "tok"})
	d.sessionInvalid(errors.New("expired"))
	d.rateLimited(&APIError{Status: 429})
	d.diagnostic(Diagnostic{Message: "server failure", Status: 500})

	for i, l := range []*recordingListener{first, second} {
		l.mu.Lock()
		if len(l.refreshed) != 1 || l.sessionInvalid != 1 || l.rateLimited != 1 || len(l.diagnostics) != 1 {
			t.Errorf("listener %d missed notifications: %+v", i, l)
		}
		l.mu.Unlock()
	}
}

func TestDispatcherUnsubscribe(t *testing.T) {
	d := newDispatcher()
	l := &recordingListener{}
	d.subscribe(l)
	d.unsubscribe(l)

	d.credentialRefreshed(Credential{Token: "tok"})

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.refreshed) != 0 {
		t.Error("unsubscribed listener should not be notified")
	}
}

func TestDispatcherIgnoresNilListener(t *testing.T) {
	d := newDispatcher()
	d.subscribe(nil)
	// Must not panic.
	d.credentialRefreshed(Credential{Token: "tok"})
}

func TestDispatcherSurvivesPanickingListener(t *testing.T) {
	d := newDispatcher()
	after := &recordingListener{}
	d.subscribe(panickingListener{})
	d.subscribe(after)

	d.credentialRefreshed(Credential{Token: "tok"})
	d.rateLimited(&APIError{Status: 429})
	d.sessionInvalid(errors.New("expired"))
	d.diagnostic(Diagnostic{Status: 500})

	after.mu.Lock()
	defer after.mu.Unlock()
	if len(after.refreshed) != 1 || after.rateLimited != 1 || after.sessionInvalid != 1 || len(after.diagnostics) != 1 {
		t.Error("a panicking listener must not block later listeners")
	}
}
