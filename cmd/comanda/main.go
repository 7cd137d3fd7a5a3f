package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/internal/clock"
	"github.com/mesaops/comanda/internal/config"
	"github.com/mesaops/comanda/internal/migration"
	"github.com/mesaops/comanda/internal/observability"
	"github.com/mesaops/comanda/internal/server"
	"github.com/mesaops/comanda/pkg/db"
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
