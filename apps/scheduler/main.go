package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leavehub/internal/clock"
	"github.com/smallbiznis/leavehub/internal/config"
	"github.com/smallbiznis/leavehub/internal/leave"
	"github.com/smallbiznis/leavehub/internal/migration"
	"github.com/smallbiznis/leavehub/internal/observability"
	"github.com/smallbiznis/leavehub/internal/orgsettings"
	"github.com/smallbiznis/leavehub/internal/providers"
	"github.com/smallbiznis/leavehub/internal/scheduler"
	"github.com/smallbiznis/leavehub/internal/usage"
	"github.com/smallbiznis/leavehub/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services the passes drive
		providers.Module,
		orgsettings.Module,
		usage.Module,
		leave.Module,

		// No HTTP server in this binary
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
