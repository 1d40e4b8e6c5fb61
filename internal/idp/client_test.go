package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimbusworks/tenantgate/internal/config"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.Config{
		IssuerURL:            server.URL,
		ResourceClientID:     "resource-server",
		ResourceClientSecret: "resource-secret",
		InitialAccessToken:   "iat-token",
	}, zap.NewNop())
}

func TestRegisterClient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != registrationPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer iat-token" {
			t.Errorf("expected initial access token, got %q", got)
		}
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(RegisteredClient{
			ClientID:                "c1",
			ClientSecret:            "s1",
			RegistrationAccessToken: "rat-1",
			RegistrationClientURI:   "https://idp/clients/c1",
		})
	}))

	registered, err := client.RegisterClient(context.Background(), RegisterRequest{
		ClientName:   "agent ord-1",
		RedirectURIs: []string{"https://app.example.com/callback"},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if registered.ClientID != "c1" || registered.ClientSecret != "s1" {
		t.Fatalf("unexpected response: %+v", registered)
	}
}

func TestRegisterClientUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.RegisterClient(context.Background(), RegisterRequest{ClientName: "agent"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestIntrospectActiveToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != introspectionPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "resource-server" || pass != "resource-secret" {
			t.Errorf("expected resource server basic auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if r.PostForm.Get("token") != "tok-1" {
			t.Errorf("expected token in form, got %q", r.PostForm.Get("token"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Introspection{
			Active: true,
			Sub:    "user-1",
			Azp:    "client-1",
			Scope:  "openid agent:use",
		})
	}))

	result, err := client.Introspect(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.Active || result.AuthorizedParty() != "client-1" {
		t.Fatalf("unexpected introspection: %+v", result)
	}
}

func TestIntrospectUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	if _, err := client.Introspect(context.Background(), "tok-1"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestValidateClientCredentials(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		if user == "good-client" && pass == "good-secret" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"x","token_type":"Bearer"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if err := client.ValidateClientCredentials(context.Background(), "good-client", "good-secret"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := client.ValidateClientCredentials(context.Background(), "bad-client", "bad-secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
