package tangguh

import (
	"encoding/base64"
	"sync"
	"testing"
	"time"
)

func makeToken(t *testing.T, claims string) string {
	t.Helper()
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(claims))
	return header + "." + payload + ".signature"
}

func TestDecodeExpiry(t *testing.T) {
	token := makeToken(t, `{"exp":1234567890}`)

	exp, ok := DecodeExpiry(token)
	if !ok {
		t.Fatal("expected decodable expiry")
	}
	if exp.UnixMilli() != 1234567890000 {
		t.Errorf("expiry = %d ms, want 1234567890000", exp.UnixMilli())
	}
}

func TestDecodeExpiryMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"not-a-token",
		"a.b",
		"a.b.c",
		"!!!.###.$$$",
		makeToken(t, `{"sub":"user-1"}`), // no exp claim
		makeToken(t, `{"exp":"soon"}`),   // wrong claim type
	}
	for _, input := range cases {
		if _, ok := DecodeExpiry(input); ok {
			t.Errorf("DecodeExpiry(%q) should report no expiry", input)
		}
	}
}

func newTestCredentialStore() *CredentialStore {
	return NewCredentialStore(NewMemoryStorage(), NewMemoryStorage())
}

func TestCredentialStoreRememberedWritesDurable(t *testing.T) {
	store := newTestCredentialStore()

	expiry := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	if err := store.Store("tok-1", WithExpiresAt(expiry), WithRemember(true)); err != nil {
		t.Fatal(err)
	}

	cred := store.Read()
	if cred.Token != "tok-1" {
		t.Errorf("token = %q", cred.Token)
	}
	if !cred.RememberMe {
		t.Error("remembered credential should read from the durable scope")
	}
	if !cred.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", cred.ExpiresAt, expiry)
	}
}

func TestCredentialStoreScopesAreMutuallyExclusive(t *testing.T) {
	store := newTestCredentialStore()

	if err := store.Store("durable-tok", WithRemember(true)); err != nil {
		t.Fatal(err)
	}
	if err := store.Store("session-tok", WithRemember(false)); err != nil {
		t.Fatal(err)
	}

	cred := store.Read()
	if cred.Token != "session-tok" || cred.RememberMe {
		t.Errorf("session write should win and clear durable, got %+v", cred)
	}

	// And back the other way.
	if err := store.Store("durable-2", WithRemember(true)); err != nil {
		t.Fatal(err)
	}
	cred = store.Read()
	if cred.Token != "durable-2" || !cred.RememberMe {
		t.Errorf("durable write should win and clear session, got %+v", cred)
	}
}

func TestCredentialStoreReusesLastPreference(t *testing.T) {
	store := newTestCredentialStore()

	if err := store.Store("tok-1", WithRemember(false)); err != nil {
		t.Fatal(err)
	}
	// No explicit preference: the last saved one (false) applies.
	if err := store.Store("tok-2"); err != nil {
		t.Fatal(err)
	}

	cred := store.Read()
	if cred.RememberMe {
		t.Error("store without preference should reuse the saved one")
	}
	if cred.Token != "tok-2" {
		t.Errorf("token = %q", cred.Token)
	}
}

func TestCredentialStoreDefaultPreferenceIsRemember(t *testing.T) {
	store := newTestCredentialStore()

	if err := store.Store("tok-1"); err != nil {
		t.Fatal(err)
	}
	if cred := store.Read(); !cred.RememberMe {
		t.Error("first store with no preference should default to remembered")
	}
}

func TestCredentialStoreDerivesExpiryFromToken(t *testing.T) {
	store := newTestCredentialStore()

	token := makeToken(t, `{"exp":1234567890}`)
	if err := store.Store(token); err != nil {
		t.Fatal(err)
	}

	cred := store.Read()
	if cred.ExpiresAt.UnixMilli() != 1234567890000 {
		t.Errorf("derived expiry = %d", cred.ExpiresAt.UnixMilli())
	}
}

func TestCredentialStoreOpaqueTokenHasNoExpiry(t *testing.T) {
	store := newTestCredentialStore()

	if err := store.Store("opaque-token"); err != nil {
		t.Fatal(err)
	}
	if cred := store.Read(); !cred.ExpiresAt.IsZero() {
		t.Errorf("opaque token should carry no expiry, got %v", cred.ExpiresAt)
	}
}

func TestCredentialStoreClearKeepsPreference(t *testing.T) {
	store := newTestCredentialStore()

	if err := store.Store("tok", WithRemember(false)); err != nil {
		t.Fatal(err)
	}
	store.Clear()

	cred := store.Read()
	if cred.Token != "" {
		t.Errorf("token should be cleared, got %q", cred.Token)
	}
	if cred.RememberMe {
		t.Error("preference should survive Clear")
	}
}

func TestCredentialStoreNotifiesOnStore(t *testing.T) {
	store := newTestCredentialStore()

	var mu sync.Mutex
	var seen []Credential
	store.notify = func(c Credential) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c)
	}

	if err := store.Store("tok-1", WithRemember(true)); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0].Token != "tok-1" || !seen[0].RememberMe {
		t.Errorf("notify payload mismatch: %+v", seen)
	}
}
