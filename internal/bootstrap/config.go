package bootstrap

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
)

type Config struct {
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`
	GRPCAddr   string `env:"GRPC_ADDR" envDefault:":50051"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	QdrantHost       string `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int    `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantAPIKey     string `env:"QDRANT_API_KEY"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"analyses"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"files"`

	ModelPath             string  `env:"MODEL_PATH" envDefault:"./models/yolo11n.onnx"`
	DetectorDevice        string  `env:"DETECTOR_DEVICE" envDefault:"auto"`
	DetectorInstances     int     `env:"DETECTOR_INSTANCES" envDefault:"1"`
	DetectorConfThreshold float64 `env:"DETECTOR_CONF_THRESHOLD" envDefault:"0.25"`
	DetectorIoUThreshold  float64 `env:"DETECTOR_IOU_THRESHOLD" envDefault:"0.45"`

	SampleCount    int           `env:"SAMPLE_COUNT" envDefault:"16"`
	UploadTempDir  string        `env:"UPLOAD_TEMP_DIR"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"536870912"`
	HistoryTTL     time.Duration `env:"HISTORY_TTL" envDefault:"24h"`

	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		return nil, errors.Newf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if cfg.SampleCount <= 0 {
		return nil, errors.Newf("SAMPLE_COUNT must be positive, got %d", cfg.SampleCount)
	}
	if cfg.DetectorInstances <= 0 {
		return nil, errors.Newf("DETECTOR_INSTANCES must be positive, got %d", cfg.DetectorInstances)
	}
	return cfg, nil
}
