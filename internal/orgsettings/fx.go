package orgsettings

import (
	"github.com/smallbiznis/leavehub/internal/orgsettings/repository"
	"github.com/smallbiznis/leavehub/internal/orgsettings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("orgsettings",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
