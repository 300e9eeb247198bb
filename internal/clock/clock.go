// Package clock provides the time source used by services and the scheduler.
package clock

import (
	"time"

	"github.com/smallbiznis/leavehub/internal/config"
	"go.uber.org/fx"
)

// Clock abstracts time.Now so lifecycle decisions can be driven in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewSystem returns the wall-clock implementation.
func NewSystem() Clock { return systemClock{} }

var Module = fx.Module("clock",
	fx.Provide(NewSystem),
	fx.Provide(func(cfg config.Config) Calendar {
		return NewCalendar(cfg.Timezone)
	}),
)
