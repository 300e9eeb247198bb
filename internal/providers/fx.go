package providers

import (
	"github.com/smallbiznis/leavehub/internal/providers/notify"
	"github.com/smallbiznis/leavehub/internal/providers/roles"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	roles.Module,
	notify.Module,
)
