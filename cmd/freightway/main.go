package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/internal/clock"
	"github.com/harborline/freightway/internal/migration"
	"github.com/harborline/freightway/internal/observability"
	"github.com/harborline/freightway/internal/server"
	"github.com/harborline/freightway/pkg/db"
	"go.uber.org/fx"
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
