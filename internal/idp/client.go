// Package idp talks to the external OAuth identity provider: client
// registration, RFC 7662 token introspection and credential validation.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nimbusworks/tenantgate/internal/config"
	"go.uber.org/zap"
)

const (
	registrationPath  = "/clients-registrations/openid-connect"
	introspectionPath = "/protocol/openid-connect/token/introspect"
	tokenPath         = "/protocol/openid-connect/token"

	maxResponseSize = 64 * 1024
	defaultTimeout  = 10 * time.Second
)

var (
	// ErrUpstream marks provider transport failures and 5xx responses.
	// Callers surface it as server_error; the platform retries.
	ErrUpstream = errors.New("identity provider unavailable")
	// ErrInvalidCredentials is returned when the token endpoint rejects
	// caller-supplied client credentials.
	ErrInvalidCredentials = errors.New("invalid client credentials")
	// ErrRegistrationRejected is returned when the provider refuses a
	// registration request (4xx).
	ErrRegistrationRejected = errors.New("client registration rejected")
)

// Client is a thin HTTP client for a Keycloak-compatible realm.
type Client struct {
	http               *http.Client
	issuerURL          string
	resourceClientID   string
	resourceSecret     string
	initialAccessToken string
	log                *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		http:               &http.Client{Timeout: defaultTimeout},
		issuerURL:          strings.TrimRight(cfg.IssuerURL, "/"),
		resourceClientID:   cfg.ResourceClientID,
		resourceSecret:     cfg.ResourceClientSecret,
		initialAccessToken: cfg.InitialAccessToken,
		log:                log.Named("idp.client"),
	}
}

// RegisterRequest is the payload for the provider's DCR endpoint.
type RegisterRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	GrantTypes   []string `json:"grant_types,omitempty"`
}

// RegisteredClient is the provider's DCR response.
type RegisteredClient struct {
	ClientID                string `json:"client_id"`
	ClientSecret            string `json:"client_secret"`
	RegistrationAccessToken string `json:"registration_access_token"`
	RegistrationClientURI   string `json:"registration_client_uri"`
}

// RegisterClient creates a new OAuth client through the provider's dynamic
// registration endpoint, authenticated with the initial access token.
func (c *Client) RegisterClient(ctx context.Context, req RegisterRequest) (*RegisteredClient, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.issuerURL+registrationPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.initialAccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.initialAccessToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: registration returned %d", ErrUpstream, resp.StatusCode)
	default:
		c.log.Warn("registration rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("%w: status %d", ErrRegistrationRejected, resp.StatusCode)
	}

	var registered RegisteredClient
	if err := json.Unmarshal(body, &registered); err != nil {
		return nil, fmt.Errorf("%w: malformed registration response", ErrUpstream)
	}
	if registered.ClientID == "" || registered.ClientSecret == "" {
		return nil, fmt.Errorf("%w: registration response missing credentials", ErrUpstream)
	}
	return &registered, nil
}

// Introspection is the provider's RFC 7662 response.
type Introspection struct {
	Active   bool   `json:"active"`
	Sub      string `json:"sub"`
	Azp      string `json:"azp"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	OrgID    string `json:"org_id"`
	Scope    string `json:"scope"`
	Exp      int64  `json:"exp"`
}

// AuthorizedParty returns the client the token was issued to,
// preferring azp over client_id.
func (i *Introspection) AuthorizedParty() string {
	if i.Azp != "" {
		return i.Azp
	}
	return i.ClientID
}

// Introspect asks the provider whether a token is active, authenticating
// as the confidential resource-server client.
func (c *Client) Introspect(ctx context.Context, token string) (*Introspection, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.issuerURL+introspectionPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.resourceClientID, c.resourceSecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: introspection returned %d", ErrUpstream, resp.StatusCode)
	}

	var result Introspection
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed introspection response", ErrUpstream)
	}
	return &result, nil
}

// ValidateClientCredentials exercises the token endpoint with a
// client_credentials grant to confirm caller-supplied credentials.
func (c *Client) ValidateClientCredentials(ctx context.Context, clientID, clientSecret string) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.issuerURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(clientID, clientSecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: token endpoint returned %d", ErrUpstream, resp.StatusCode)
	default:
		return ErrInvalidCredentials
	}
}

func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxResponseSize))
}
