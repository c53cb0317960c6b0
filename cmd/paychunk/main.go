package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/paychunk/paychunk/internal/clock"
	"github.com/paychunk/paychunk/internal/migration"
	"github.com/paychunk/paychunk/internal/observability"
	"github.com/paychunk/paychunk/internal/server"
	"github.com/paychunk/paychunk/pkg/db"
)

func main() {
	app := fx.New(
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
