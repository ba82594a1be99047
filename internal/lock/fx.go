package lock

import (
	"github.com/redis/go-redis/v9"
	"github.com/vyaparai/vyaparai/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLocker prefers redis when configured; otherwise appends serialize only
// within this process.
func NewLocker(cfg config.Config, log *zap.Logger) Locker {
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, using in-process locks")
		return NewStripedLocker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisLocker(client)
}

var Module = fx.Module("lock",
	fx.Provide(NewLocker),
)
