package bootstrap

import (
	"log/slog"
	"os"

	"github.com/clevtech/vision-backend/internal/analysis"
	"github.com/clevtech/vision-backend/internal/document"
	"github.com/clevtech/vision-backend/internal/metrics"
	"github.com/clevtech/vision-backend/internal/objectstore"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	DocumentHandler *document.Handler
	AnalysisHandler *analysis.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	e.GET("/", params.DocumentHandler.Root)
	params.DocumentHandler.RegisterRoutes(e.Group("/documents"))
	params.AnalysisHandler.RegisterRoutes(e.Group(""))

	metrics.RegisterRoutes(e)
	e.GET("/swagger/*", echoSwagger.EchoWrapHandlerV3())
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideDocumentHandler(store *document.Store, objects *objectstore.Store, logger *slog.Logger) *document.Handler {
	return document.NewHandler(store, objects, logger)
}

func ProvideAnalysisHandler(
	service *analysis.Service,
	store *analysis.Store,
	history *analysis.History,
	index analysis.SimilarityIndex,
	cfg *Config,
	logger *slog.Logger,
) *analysis.Handler {
	return analysis.NewHandler(service, store, history, index, analysis.HandlerConfig{
		TempDir:        cfg.UploadTempDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideDocumentHandler,
		ProvideAnalysisHandler,
	),
	fx.Invoke(RegisterRoutes),
)
