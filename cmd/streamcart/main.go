package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/streamcart/streamcart/internal/clock"
	"github.com/streamcart/streamcart/internal/config"
	"github.com/streamcart/streamcart/internal/logger"
	"github.com/streamcart/streamcart/internal/migration"
	"github.com/streamcart/streamcart/internal/observability"
	"github.com/streamcart/streamcart/internal/server"
	"github.com/streamcart/streamcart/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
