package leave

import (
	"github.com/smallbiznis/leavehub/internal/leave/repository"
	"github.com/smallbiznis/leavehub/internal/leave/service"
	"go.uber.org/fx"
)

var Module = fx.Module("leave",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
