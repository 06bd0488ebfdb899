package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/gridbill/gridbill/internal/account"
	"github.com/gridbill/gridbill/internal/bill"
	"github.com/gridbill/gridbill/internal/clock"
	"github.com/gridbill/gridbill/internal/config"
	"github.com/gridbill/gridbill/internal/logger"
	"github.com/gridbill/gridbill/internal/meter"
	"github.com/gridbill/gridbill/internal/migration"
	"github.com/gridbill/gridbill/internal/notification"
	"github.com/gridbill/gridbill/internal/observability"
	"github.com/gridbill/gridbill/internal/policy"
	"github.com/gridbill/gridbill/internal/providers/email"
	"github.com/gridbill/gridbill/internal/reading"
	"github.com/gridbill/gridbill/internal/region"
	"github.com/gridbill/gridbill/internal/scheduler"
	"github.com/gridbill/gridbill/pkg/db"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		observability.Module,
		migration.Module,

		// billing domains
		region.Module,
		account.Module,
		meter.Module,
		reading.Module,
		policy.Module,
		notification.Module,
		email.Module,
		bill.Module,
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
