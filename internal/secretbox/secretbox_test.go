package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := New(testKey(t))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	ciphertext, err := box.Encrypt("super-secret-client-secret")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if ciphertext == "super-secret-client-secret" {
		t.Fatal("ciphertext must differ from plaintext")
	}

	plaintext, err := box.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plaintext != "super-secret-client-secret" {
		t.Fatalf("expected round trip, got %q", plaintext)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	box, err := New(testKey(t))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	ciphertext, err := box.Encrypt("value")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := box.Decrypt(tampered); err != ErrInvalidCiphertext {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	if _, err := New("not-base64!"); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := New(short); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey for short key, got %v", err)
	}
}
