package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/parishkeep/parishkeep/internal/auth"
	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	"github.com/parishkeep/parishkeep/internal/invite"
	"github.com/parishkeep/parishkeep/internal/logger"
	"github.com/parishkeep/parishkeep/internal/migration"
	"github.com/parishkeep/parishkeep/internal/organization"
	"github.com/parishkeep/parishkeep/internal/payment"
	"github.com/parishkeep/parishkeep/internal/ratelimit"
	"github.com/parishkeep/parishkeep/internal/scheduler"
	"github.com/parishkeep/parishkeep/internal/server"
	"github.com/parishkeep/parishkeep/internal/subscription"
	"github.com/parishkeep/parishkeep/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		auth.Module,
		organization.Module,
		subscription.Module,
		invite.Module,
		payment.Module,
		ratelimit.Module,
		scheduler.Module,

		server.Module,
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
