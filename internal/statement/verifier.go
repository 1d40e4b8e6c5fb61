// Package statement verifies marketplace software statements: RS256-signed
// JWT assertions binding a registration request to an order and account.
package statement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

var (
	ErrMalformed        = errors.New("malformed software statement")
	ErrSignatureInvalid = errors.New("software statement signature invalid")
	ErrExpired          = errors.New("software statement expired")
	ErrAudienceMismatch = errors.New("software statement audience mismatch")
	ErrKeyFetchFailed   = errors.New("failed to fetch signing keys")
)

// Claims are the verified assertions carried by a software statement.
type Claims struct {
	OrderID   string `json:"order_id"`
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// Verifier validates signed statements against the issuer's published keys.
type Verifier struct {
	jwksURL string
	cache   *jwk.Cache
	leeway  time.Duration
}

// NewVerifier builds a Verifier with an auto-refreshing key cache for jwksURL.
func NewVerifier(ctx context.Context, jwksURL string) (*Verifier, error) {
	if jwksURL == "" {
		return nil, errors.New("missing JWKS URL")
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}

	return &Verifier{
		jwksURL: jwksURL,
		cache:   cache,
		leeway:  30 * time.Second,
	}, nil
}

// Verify parses and validates a statement and checks its audience.
// Every failure maps to one of the package sentinel errors; attacker
// controlled input never produces anything other than ErrMalformed.
func (v *Verifier) Verify(ctx context.Context, raw, expectedAudience string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(expectedAudience),
		jwt.WithIssuedAt(),
	)

	_, err := parser.ParseWithClaims(raw, claims, v.keyfunc(ctx))
	if err != nil {
		return nil, classify(err)
	}

	return claims, nil
}

func (v *Verifier) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		set, err := v.cache.Get(ctx, v.jwksURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyFetchFailed, err)
		}

		key, err := lookupKey(set, token)
		if err != nil {
			return nil, err
		}

		var rawKey interface{}
		if err := key.Raw(&rawKey); err != nil {
			return nil, fmt.Errorf("failed to materialize key: %w", err)
		}
		return rawKey, nil
	}
}

func lookupKey(set jwk.Set, token *jwt.Token) (jwk.Key, error) {
	if kid, ok := token.Header["kid"].(string); ok && kid != "" {
		if key, found := set.LookupKeyID(kid); found {
			return key, nil
		}
		return nil, fmt.Errorf("no key found for kid %q", kid)
	}

	// No kid in the header: only unambiguous if the set has a single key.
	if set.Len() == 1 {
		if key, found := set.Key(0); found {
			return key, nil
		}
	}
	return nil, errors.New("token header missing kid")
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrKeyFetchFailed):
		return ErrKeyFetchFailed
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}
