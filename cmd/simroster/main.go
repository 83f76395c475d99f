package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/simroster/simroster/internal/audit"
	"github.com/simroster/simroster/internal/clock"
	"github.com/simroster/simroster/internal/config"
	"github.com/simroster/simroster/internal/ledger"
	"github.com/simroster/simroster/internal/legacy"
	"github.com/simroster/simroster/internal/migration"
	"github.com/simroster/simroster/internal/notifier"
	"github.com/simroster/simroster/internal/roster"
	"github.com/simroster/simroster/internal/settings"
	"github.com/simroster/simroster/internal/tariff"
	"github.com/simroster/simroster/internal/transport"
	"github.com/simroster/simroster/internal/workflow"
	"github.com/simroster/simroster/pkg/db"
	"github.com/simroster/simroster/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		transport.Module,
		migration.Module,

		// Functional domains
		ledger.Module,
		tariff.Module,
		audit.Module,
		settings.Module,
		roster.Module,
		workflow.Module,

		// Startup jobs and background loops
		legacy.Module,
		notifier.Module,

		// Operator console on stdin
		consoleModule,
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
