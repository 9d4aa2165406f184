package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func fakeIDToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	signed, err := token.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("signing fake id_token: %v", err)
	}
	return signed
}

func TestExchangeExtractsSubject(t *testing.T) {
	idToken := fakeIDToken(t, "user-123")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token-value",
			"token_type":   "Bearer",
			"id_token":     idToken,
		})
	}))
	defer ts.Close()

	p := New("http://example.invalid/auth", ts.URL, "client", "secret", "nonce-value", "http://example.invalid/me/callback")
	subject, err := p.Exchange(context.Background(), "some-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if subject != "user-123" {
		t.Fatalf("subject = %q, want %q", subject, "user-123")
	}
	if ident := Ident(subject); ident != "openid-user-123" {
		t.Fatalf("Ident(%q) = %q, want %q", subject, ident, "openid-user-123")
	}
}

func TestExchangeFailsWithoutIDToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token-value",
			"token_type":   "Bearer",
		})
	}))
	defer ts.Close()

	p := New("http://example.invalid/auth", ts.URL, "client", "secret", "nonce-value", "http://example.invalid/me/callback")
	if _, err := p.Exchange(context.Background(), "some-code"); err == nil {
		t.Fatalf("Exchange without id_token should fail")
	}
}

func TestAuthCodeURLIncludesNonce(t *testing.T) {
	p := New("http://example.invalid/auth", "http://example.invalid/token", "client", "secret", "my-nonce", "http://example.invalid/me/callback")
	url := p.AuthCodeURL("state-value")
	if !strings.Contains(url, "nonce=my-nonce") {
		t.Fatalf("AuthCodeURL = %q, want it to contain nonce=my-nonce", url)
	}
	if !strings.Contains(url, "state=state-value") {
		t.Fatalf("AuthCodeURL = %q, want it to contain state=state-value", url)
	}
}
