package bootstrap

import (
	"context"
	"log/slog"

	"github.com/clevtech/vision-backend/internal/analysis"
	"github.com/clevtech/vision-backend/internal/document"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideDocumentStore(db *gorm.DB) *document.Store {
	return document.NewStore(db)
}

func ProvideAnalysisStore(db *gorm.DB) *analysis.Store {
	return analysis.NewStore(db)
}

func ProvideHistory(redisClient *redis.Client, cfg *Config) *analysis.History {
	return analysis.NewHistory(redisClient, cfg.HistoryTTL)
}

func ProvideQdrantIndex(client *qdrant.Client, cfg *Config) *analysis.QdrantIndex {
	return analysis.NewQdrantIndex(client, cfg.QdrantCollection)
}

func ProvideSimilarityIndex(index *analysis.QdrantIndex) analysis.SimilarityIndex {
	return index
}

func RunMigrations(documentStore *document.Store, analysisStore *analysis.Store) error {
	if err := documentStore.Migrate(); err != nil {
		return err
	}
	return analysisStore.Migrate()
}

// EnsureCollection creates the similarity collection on startup. Qdrant being
// down only disables similarity search.
func EnsureCollection(lc fx.Lifecycle, index *analysis.QdrantIndex, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := index.EnsureCollection(ctx); err != nil {
				logger.Error("failed to ensure qdrant collection", "error", err)
			}
			return nil
		},
	})
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideDocumentStore,
		ProvideAnalysisStore,
		ProvideHistory,
		ProvideQdrantIndex,
		ProvideSimilarityIndex,
	),
	fx.Invoke(RunMigrations),
	fx.Invoke(EnsureCollection),
)
