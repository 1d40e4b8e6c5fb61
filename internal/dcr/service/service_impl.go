package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/nimbusworks/tenantgate/internal/config"
	"github.com/nimbusworks/tenantgate/internal/dcr/domain"
	"github.com/nimbusworks/tenantgate/internal/idp"
	"github.com/nimbusworks/tenantgate/internal/observability/metrics"
	procdomain "github.com/nimbusworks/tenantgate/internal/procurement/domain"
	"github.com/nimbusworks/tenantgate/internal/secretbox"
	"github.com/nimbusworks/tenantgate/internal/statement"
	"github.com/nimbusworks/tenantgate/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config holds DCR service configuration.
type Config struct {
	// Audience every software statement must carry: this service's own
	// provider URL.
	Audience string
	Enabled  bool

	// StaticCredentials switches issuance to caller-supplied credentials
	// instead of provider-side registration.
	StaticCredentials         bool
	ValidateStaticCredentials bool
}

func NewConfig(cfg config.Config) Config {
	return Config{
		Audience:                  cfg.ProviderURL,
		Enabled:                   cfg.DCREnabled,
		StaticCredentials:         cfg.StaticCredentials,
		ValidateStaticCredentials: cfg.ValidateStaticCredentials,
	}
}

// StatementVerifier validates software statements. Implemented by
// statement.Verifier.
type StatementVerifier interface {
	Verify(ctx context.Context, raw, expectedAudience string) (*statement.Claims, error)
}

// IdentityProvider is the subset of the idp client used for issuance.
type IdentityProvider interface {
	RegisterClient(ctx context.Context, req idp.RegisterRequest) (*idp.RegisteredClient, error)
	ValidateClientCredentials(ctx context.Context, clientID, clientSecret string) error
}

var defaultGrantTypes = []string{"client_credentials"}

type serviceImpl struct {
	cfg          Config
	db           *gorm.DB
	verifier     StatementVerifier
	provider     IdentityProvider
	clients      domain.Repository
	entitlements procdomain.Repository
	box          *secretbox.Cipher
	genID        *snowflake.Node
	metrics      *metrics.Metrics
	log          *zap.Logger
}

func New(
	cfg Config,
	conn *gorm.DB,
	verifier StatementVerifier,
	provider IdentityProvider,
	clients domain.Repository,
	entitlements procdomain.Repository,
	box *secretbox.Cipher,
	genID *snowflake.Node,
	m *metrics.Metrics,
	log *zap.Logger,
) domain.Service {
	return &serviceImpl{
		cfg:          cfg,
		db:           conn,
		verifier:     verifier,
		provider:     provider,
		clients:      clients,
		entitlements: entitlements,
		box:          box,
		genID:        genID,
		metrics:      m,
		log:          log.Named("dcr.service"),
	}
}

// Register creates or retrieves the OAuth client for the order named by the
// software statement. Repeat calls for the same order return the same
// credentials; concurrent calls resolve through the unique order_id
// constraint, not an in-process lock.
func (s *serviceImpl) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Credentials, error) {
	if !s.cfg.Enabled {
		return nil, domain.ErrRegistrationDisabled
	}

	claims, err := s.verifier.Verify(ctx, req.SoftwareStatement, s.cfg.Audience)
	if err != nil {
		if errors.Is(err, statement.ErrKeyFetchFailed) {
			return nil, domain.ErrServer
		}
		s.log.Info("software statement rejected", zap.Error(err))
		return nil, domain.ErrInvalidSoftwareStatement
	}
	if claims.OrderID == "" || claims.AccountID == "" {
		return nil, domain.ErrInvalidSoftwareStatement
	}

	// The order must have been observed on the event path. A valid
	// signature alone does not authorize registration.
	if _, err := s.entitlements.FindEntitlement(ctx, s.db, claims.OrderID); err != nil {
		if errors.Is(err, procdomain.ErrEntitlementNotFound) {
			s.log.Warn("registration for unapproved order",
				zap.String("order_id", claims.OrderID),
				zap.String("account_id", claims.AccountID),
			)
			return nil, domain.ErrUnapprovedSoftwareStatement
		}
		return nil, err
	}

	existing, err := s.clients.FindByOrderID(ctx, s.db, claims.OrderID)
	if err == nil {
		return s.credentials(existing)
	}
	if !errors.Is(err, domain.ErrClientNotFound) {
		return nil, err
	}

	return s.issue(ctx, claims, req)
}

func (s *serviceImpl) issue(ctx context.Context, claims *statement.Claims, req domain.RegisterRequest) (*domain.Credentials, error) {
	client := &domain.Client{
		ID:           s.genID.Generate(),
		OrderID:      claims.OrderID,
		AccountID:    claims.AccountID,
		RedirectURIs: req.RedirectURIs,
		GrantTypes:   defaultGrantTypes,
	}

	var plainSecret string
	mode := "provider"
	if s.cfg.StaticCredentials {
		mode = "static"
		if req.ClientID == "" || req.ClientSecret == "" {
			return nil, domain.ErrInvalidRequest
		}
		if s.cfg.ValidateStaticCredentials {
			if err := s.provider.ValidateClientCredentials(ctx, req.ClientID, req.ClientSecret); err != nil {
				if errors.Is(err, idp.ErrInvalidCredentials) {
					return nil, domain.ErrInvalidRequest
				}
				return nil, domain.ErrServer
			}
		} else {
			s.log.Warn("accepting static credentials without provider validation",
				zap.String("order_id", claims.OrderID),
			)
		}
		client.ClientID = req.ClientID
		plainSecret = req.ClientSecret
	} else {
		registered, err := s.provider.RegisterClient(ctx, idp.RegisterRequest{
			ClientName:   "agent-" + claims.OrderID,
			RedirectURIs: req.RedirectURIs,
			GrantTypes:   defaultGrantTypes,
		})
		if err != nil {
			return nil, domain.ErrServer
		}
		client.ClientID = registered.ClientID
		client.ProviderRegistrationURI = registered.RegistrationClientURI
		plainSecret = registered.ClientSecret

		if registered.RegistrationAccessToken != "" {
			tokenEnc, err := s.box.Encrypt(registered.RegistrationAccessToken)
			if err != nil {
				return nil, err
			}
			client.RegistrationTokenEnc = tokenEnc
		}
	}

	secretEnc, err := s.box.Encrypt(plainSecret)
	if err != nil {
		return nil, err
	}
	client.ClientSecretEnc = secretEnc

	if err := s.clients.Insert(ctx, s.db, client); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// A concurrent registration for the same order won the insert.
		// Its credentials are the order's credentials.
		s.log.Info("lost issuance race, returning winner's credentials",
			zap.String("order_id", claims.OrderID),
		)
		winner, findErr := s.clients.FindByOrderID(ctx, s.db, claims.OrderID)
		if findErr != nil {
			return nil, findErr
		}
		return s.credentials(winner)
	}

	s.log.Info("issued oauth client",
		zap.String("order_id", claims.OrderID),
		zap.String("account_id", claims.AccountID),
		zap.String("client_id", client.ClientID),
		zap.String("mode", mode),
	)
	s.metrics.RecordClientIssued(ctx, mode)

	return &domain.Credentials{
		ClientID:     client.ClientID,
		ClientSecret: plainSecret,
		ExpiresAt:    0,
	}, nil
}

func (s *serviceImpl) credentials(client *domain.Client) (*domain.Credentials, error) {
	secret, err := s.box.Decrypt(client.ClientSecretEnc)
	if err != nil {
		return nil, err
	}
	return &domain.Credentials{
		ClientID:     client.ClientID,
		ClientSecret: secret,
		ExpiresAt:    0,
	}, nil
}
