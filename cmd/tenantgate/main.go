package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/nimbusworks/tenantgate/internal/agent"
	"github.com/nimbusworks/tenantgate/internal/config"
	"github.com/nimbusworks/tenantgate/internal/dcr"
	"github.com/nimbusworks/tenantgate/internal/idp"
	"github.com/nimbusworks/tenantgate/internal/migration"
	"github.com/nimbusworks/tenantgate/internal/observability"
	"github.com/nimbusworks/tenantgate/internal/procurement"
	"github.com/nimbusworks/tenantgate/internal/server"
	"github.com/nimbusworks/tenantgate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Functional Domains
		idp.Module,
		procurement.Module,
		dcr.Module,
		agent.Module,

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
