package usage

import (
	"github.com/smallbiznis/leavehub/internal/usage/repository"
	"github.com/smallbiznis/leavehub/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
