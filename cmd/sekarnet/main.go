package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/smallbiznis/sekarnet/internal/migration"
	"github.com/smallbiznis/sekarnet/internal/observability"
	"github.com/smallbiznis/sekarnet/internal/server"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		migration.Module,
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
