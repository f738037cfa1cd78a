package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/quotient-hq/quotient/internal/billingevent"
	"github.com/quotient-hq/quotient/internal/clock"
	"github.com/quotient-hq/quotient/internal/config"
	"github.com/quotient-hq/quotient/internal/customer"
	"github.com/quotient-hq/quotient/internal/dunning"
	"github.com/quotient-hq/quotient/internal/limit"
	"github.com/quotient-hq/quotient/internal/logger"
	"github.com/quotient-hq/quotient/internal/migration"
	"github.com/quotient-hq/quotient/internal/observability/metrics"
	"github.com/quotient-hq/quotient/internal/plan"
	paymentprovider "github.com/quotient-hq/quotient/internal/providers/payment"
	"github.com/quotient-hq/quotient/internal/server"
	"github.com/quotient-hq/quotient/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		// Functional domains
		limit.Module,
		plan.Module,
		customer.Module,
		paymentprovider.Module,
		dunning.Module,
		billingevent.Module,

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
