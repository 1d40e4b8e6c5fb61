package dcr

import (
	"context"

	"github.com/nimbusworks/tenantgate/internal/config"
	"github.com/nimbusworks/tenantgate/internal/dcr/repository"
	"github.com/nimbusworks/tenantgate/internal/dcr/service"
	"github.com/nimbusworks/tenantgate/internal/idp"
	"github.com/nimbusworks/tenantgate/internal/secretbox"
	"github.com/nimbusworks/tenantgate/internal/statement"
	"go.uber.org/fx"
)

var Module = fx.Module("dcr",
	fx.Provide(
		service.NewConfig,
		newVerifier,
		secretbox.NewFromConfig,
		repository.New,
		service.New,
		func(v *statement.Verifier) service.StatementVerifier { return v },
		func(c *idp.Client) service.IdentityProvider { return c },
	),
)

func newVerifier(cfg config.Config) (*statement.Verifier, error) {
	return statement.NewVerifier(context.Background(), cfg.JWKSURL())
}
