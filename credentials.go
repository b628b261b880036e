package tangguh

import (
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Storage keys for credential persistence. Each is duplicated across the
// durable and session scopes.
const (
	storageKeyToken    = "auth.token"
	storageKeyExpiry   = "auth.token_expiry"
	storageKeyRemember = "auth.remember"
)

// CredentialStore persists the access credential across two mutually
// exclusive scopes: a durable one (survives restarts) for remembered
// sessions and a session-scoped one otherwise. At most one scope holds a
// non-empty token at any time.
type CredentialStore struct {
	mu      sync.Mutex
	durable Storage
	session Storage

	// notify is invoked after a successful Store with the new credential.
	// Wired to the client's event dispatcher; nil-safe.
	notify func(Credential)
}

// NewCredentialStore creates a store over the given scopes.
func NewCredentialStore(durable, session Storage) *CredentialStore {
	return &CredentialStore{durable: durable, session: session}
}

// StoreOption configures a single Store call.
type StoreOption func(*storeConfig)

type storeConfig struct {
	expiresAt *time.Time
	remember  *bool
}

// WithExpiresAt sets an explicit expiry instead of decoding it from the token.
func WithExpiresAt(t time.Time) StoreOption {
	return func(c *storeConfig) { c.expiresAt = &t }
}

// WithRemember selects the durable (true) or session (false) scope.
func WithRemember(remember bool) StoreOption {
	return func(c *storeConfig) { c.remember = &remember }
}

// Store writes the token into the chosen scope and clears the other one.
// When no expiry is given it is derived from the token's exp claim; when no
// remember preference is given the last saved preference is reused
// (default true). The remember preference itself is persisted in both
// scopes so later calls observe it regardless of scope.
func (s *CredentialStore) Store(token string, opts ...StoreOption) error {
	var cfg storeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()

	remember := s.lastPreferenceLocked()
	if cfg.remember != nil {
		remember = *cfg.remember
	}

	var expiresAt time.Time
	if cfg.expiresAt != nil {
		expiresAt = *cfg.expiresAt
	} else if exp, ok := DecodeExpiry(token); ok {
		expiresAt = exp
	}

	target, other := s.durable, s.session
	if !remember {
		target, other = s.session, s.durable
	}

	if err := target.Set(storageKeyToken, token); err != nil {
		s.mu.Unlock()
		return err
	}
	if expiresAt.IsZero() {
		_ = target.Delete(storageKeyExpiry)
	} else if err := target.Set(storageKeyExpiry, strconv.FormatInt(expiresAt.UnixMilli(), 10)); err != nil {
		s.mu.Unlock()
		return err
	}

	// Mutual exclusion: writing one scope clears the other.
	_ = other.Delete(storageKeyToken)
	_ = other.Delete(storageKeyExpiry)

	pref := strconv.FormatBool(remember)
	_ = s.durable.Set(storageKeyRemember, pref)
	_ = s.session.Set(storageKeyRemember, pref)

	notify := s.notify
	cred := Credential{Token: token, ExpiresAt: expiresAt, RememberMe: remember}
	s.mu.Unlock()

	if notify != nil {
		notify(cred)
	}
	return nil
}

// Read returns the current credential, preferring the durable scope. When
// neither scope holds a token the returned credential carries only the
// last saved remember preference.
func (s *CredentialStore) Read() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.durable.Get(storageKeyToken); ok && token != "" {
		return Credential{Token: token, ExpiresAt: s.readExpiry(s.durable), RememberMe: true}
	}
	if token, ok := s.session.Get(storageKeyToken); ok && token != "" {
		return Credential{Token: token, ExpiresAt: s.readExpiry(s.session), RememberMe: false}
	}
	return Credential{RememberMe: s.lastPreferenceLocked()}
}

// Clear removes the token and expiry from both scopes. The remember
// preference is left intact.
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scope := range []Storage{s.durable, s.session} {
		_ = scope.Delete(storageKeyToken)
		_ = scope.Delete(storageKeyExpiry)
	}
}

func (s *CredentialStore) readExpiry(scope Storage) time.Time {
	raw, ok := scope.Get(storageKeyExpiry)
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *CredentialStore) lastPreferenceLocked() bool {
	raw, ok := s.durable.Get(storageKeyRemember)
	if !ok {
		raw, ok = s.session.Get(storageKeyRemember)
	}
	if !ok {
		return true
	}
	pref, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return pref
}

// DecodeExpiry extracts the expiry claim from a three-segment dotted token
// without verifying its signature. It reports false for any malformed,
// empty, or claimless input and never panics.
func DecodeExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
