package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/access"
	"github.com/smallbiznis/campus/internal/audit"
	"github.com/smallbiznis/campus/internal/cache"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/internal/config"
	"github.com/smallbiznis/campus/internal/course"
	"github.com/smallbiznis/campus/internal/enrollment"
	"github.com/smallbiznis/campus/internal/events"
	"github.com/smallbiznis/campus/internal/identity"
	"github.com/smallbiznis/campus/internal/microsite"
	"github.com/smallbiznis/campus/internal/migration"
	"github.com/smallbiznis/campus/internal/observability"
	"github.com/smallbiznis/campus/internal/ratelimit"
	"github.com/smallbiznis/campus/internal/server"
	"github.com/smallbiznis/campus/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,
		migration.Module,

		// Functional Domains
		identity.Module,
		events.Module,
		course.Module,
		access.Module,
		audit.Module,
		microsite.Module,
		enrollment.Module,

		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
