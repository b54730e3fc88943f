package bootstrap

import (
	"context"
	"log/slog"

	"github.com/clevtech/vision-backend/internal/objectstore"
	"github.com/clevtech/vision-backend/internal/tracing"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ProvideRedisClient(lc fx.Lifecycle, cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func ProvideDatabase(cfg *Config) (*gorm.DB, error) {
	dialector := postgres.Open(cfg.DatabaseDSN)
	if cfg.DatabaseDriver == "sqlite" {
		dialector = sqlite.Open(cfg.DatabaseDSN)
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func ProvideQdrantClient(lc fx.Lifecycle, cfg *Config) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func ProvideObjectStore(cfg *Config) (*objectstore.Store, error) {
	return objectstore.New(objectstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Bucket:    cfg.MinioBucket,
	})
}

// EnsureBucket logs a failure instead of aborting startup; document file
// routes report errors until the bucket becomes reachable.
func EnsureBucket(lc fx.Lifecycle, store *objectstore.Store, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := store.EnsureBucket(ctx); err != nil {
				logger.Error("failed to ensure bucket", "bucket", store.Bucket(), "error", err)
			}
			return nil
		},
	})
}

func ProvideTracerProvider(lc fx.Lifecycle, cfg *Config) (*trace.TracerProvider, error) {
	tp, err := tracing.InitTracer(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideRedisClient,
		ProvideDatabase,
		ProvideQdrantClient,
		ProvideObjectStore,
		ProvideTracerProvider,
	),
	fx.Invoke(EnsureBucket),
	fx.Invoke(func(*trace.TracerProvider) {}),
)
