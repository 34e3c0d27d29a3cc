package microsite

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/campus/internal/cache"
	"github.com/smallbiznis/campus/internal/config"
	"github.com/smallbiznis/campus/internal/microsite/domain"
	"github.com/smallbiznis/campus/internal/microsite/repository"
	"github.com/smallbiznis/campus/internal/microsite/service"
	"github.com/smallbiznis/campus/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("microsite.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		newOverlayCache,
		newOrgsCache,
		func(m *metrics.Metrics) domain.Counter { return m },
	),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) domain.Resolver { return s }),
)

type cacheParams struct {
	fx.In

	Config config.Config
	Client redis.UniversalClient `optional:"true"`
	Log    *zap.Logger
}

func newOverlayCache(p cacheParams) cache.LookupCache[domain.Overlay] {
	return newLookup[domain.Overlay](p, "campus:microsite:host")
}

func newOrgsCache(p cacheParams) cache.LookupCache[[]string] {
	return newLookup[[]string](p, "campus:microsite:orgs")
}

func newLookup[V any](p cacheParams, prefix string) cache.LookupCache[V] {
	ttl := time.Duration(p.Config.Microsite.CacheTTLSeconds) * time.Second
	if p.Client != nil {
		return cache.NewRedisLookup[V](p.Client, prefix, ttl, p.Log.Named("microsite.cache"))
	}
	return cache.NewMemoryLookup[V](ttl)
}
