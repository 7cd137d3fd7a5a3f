package locks

import (
	"github.com/mesaops/comanda/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("locks",
	fx.Provide(provideRedisClient),
	fx.Provide(New),
)

// provideRedisClient returns nil when no redis address is configured; the
// locker treats a nil client as "locking disabled".
func provideRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Named("locks").Info("redis not configured, advisory locking disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}
