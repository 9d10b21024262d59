package repositories

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"meetprobe/internal/core/ports"
	"meetprobe/internal/infrastructure/repositories/memory"
	redisrepo "meetprobe/internal/infrastructure/repositories/redis"
	"meetprobe/pkg/config"
)

// RepositoryFactory creates the snapshot sink with a memory fallback.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis: cfg.Publish.Enabled,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.Publish.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Publish.Address,
			cfg.Publish.Password,
			cfg.Publish.DB,
			cfg.Publish.PoolSize,
			cfg.Publish.KeyPrefix,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory snapshot sink",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis snapshot sink")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory snapshot sink")
	}

	return factory
}

func (f *RepositoryFactory) UsesRedis() bool {
	return f.useRedis && f.redisClient != nil
}

// RedisClient is nil when the memory sink is in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) CreateSnapshotSink() ports.SnapshotSink {
	if f.UsesRedis() {
		return redisrepo.NewRedisSnapshotSink(
			f.redisClient,
			f.cfg.Publish.KeyPrefix,
			f.cfg.Publish.Channel,
			f.cfg.Publish.TTL,
		)
	}
	return memory.NewMemorySnapshotSink()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.UsesRedis() {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
