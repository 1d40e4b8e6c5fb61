package procurement

import (
	"github.com/nimbusworks/tenantgate/internal/procurement/partner"
	"github.com/nimbusworks/tenantgate/internal/procurement/repository"
	"github.com/nimbusworks/tenantgate/internal/procurement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("procurement",
	fx.Provide(
		repository.New,
		partner.New,
		service.New,
	),
)
