package statement

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const testAudience = "https://agent.example.com/dcr"

type testIssuer struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	pub, err := jwk.FromRaw(key.Public())
	if err != nil {
		t.Fatalf("failed to build jwk: %v", err)
	}
	_ = pub.Set(jwk.KeyIDKey, "test-key")
	_ = pub.Set(jwk.AlgorithmKey, "RS256")

	set := jwk.NewSet()
	_ = set.AddKey(pub)

	payload, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("failed to marshal jwks: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)

	return &testIssuer{key: key, server: server}
}

func (i *testIssuer) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	raw, err := token.SignedString(i.key)
	if err != nil {
		t.Fatalf("failed to sign statement: %v", err)
	}
	return raw
}

func statementClaims(aud string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"order_id":   "ord-1",
		"account_id": "acct-1",
		"aud":        aud,
		"iat":        time.Now().Unix(),
		"exp":        exp.Unix(),
	}
}

func newTestVerifier(t *testing.T, issuer *testIssuer) *Verifier {
	t.Helper()
	v, err := NewVerifier(context.Background(), issuer.server.URL)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	return v
}

func TestVerifyValidStatement(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(t, issuer)

	raw := issuer.sign(t, statementClaims(testAudience, time.Now().Add(time.Hour)))
	claims, err := v.Verify(context.Background(), raw, testAudience)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if claims.OrderID != "ord-1" || claims.AccountID != "acct-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyExpiredStatement(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(t, issuer)

	raw := issuer.sign(t, statementClaims(testAudience, time.Now().Add(-time.Hour)))
	if _, err := v.Verify(context.Background(), raw, testAudience); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyAudienceMismatch(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(t, issuer)

	raw := issuer.sign(t, statementClaims("https://other.example.com", time.Now().Add(time.Hour)))
	if _, err := v.Verify(context.Background(), raw, testAudience); err != ErrAudienceMismatch {
		t.Fatalf("expected ErrAudienceMismatch, got %v", err)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(t, issuer)

	raw := issuer.sign(t, statementClaims(testAudience, time.Now().Add(time.Hour)))
	parts := strings.Split(raw, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, err := v.Verify(context.Background(), tampered, testAudience); err != ErrSignatureInvalid {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyGarbageInput(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(t, issuer)

	for _, raw := range []string{"", "not-a-jwt", "a.b", "%%%.%%%.%%%"} {
		if _, err := v.Verify(context.Background(), raw, testAudience); err != ErrMalformed {
			t.Fatalf("input %q: expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestVerifySignedByUnknownKey(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(t, issuer)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, statementClaims(testAudience, time.Now().Add(time.Hour)))
	token.Header["kid"] = "unknown-key"
	raw, err := token.SignedString(otherKey)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if _, err := v.Verify(context.Background(), raw, testAudience); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
