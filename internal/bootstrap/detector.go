package bootstrap

import (
	"context"
	"io"
	"log/slog"

	"github.com/clevtech/vision-backend/internal/analysis"
	"github.com/clevtech/vision-backend/internal/health"
	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/clevtech/vision-backend/internal/opencv"
	"github.com/cockroachdb/errors"
	"go.uber.org/fx"
)

type DetectorResult struct {
	fx.Out

	Oracle keyframe.Oracle
	Stats  health.DetectorStats
}

// ProvideDetector loads DETECTOR_INSTANCES copies of the model. A single
// instance is serialized; several are pooled so frames run in parallel.
func ProvideDetector(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) (DetectorResult, error) {
	detectorCfg := opencv.Config{
		ModelPath:     cfg.ModelPath,
		Device:        cfg.DetectorDevice,
		ConfThreshold: cfg.DetectorConfThreshold,
		IoUThreshold:  cfg.DetectorIoUThreshold,
	}

	detectors := make([]keyframe.Oracle, 0, cfg.DetectorInstances)
	var device string
	for i := 0; i < cfg.DetectorInstances; i++ {
		d, err := opencv.NewDetector(detectorCfg, logger)
		if err != nil {
			for _, loaded := range detectors {
				loaded.(io.Closer).Close()
			}
			return DetectorResult{}, errors.Wrapf(err, "load detector %d", i)
		}
		device = d.Device()
		detectors = append(detectors, d)
	}

	var oracle interface {
		keyframe.Oracle
		io.Closer
	}
	if len(detectors) == 1 {
		oracle = keyframe.Serialize(detectors[0])
	} else {
		pool, err := keyframe.NewPool(detectors...)
		if err != nil {
			return DetectorResult{}, err
		}
		oracle = pool
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return oracle.Close()
		},
	})

	return DetectorResult{
		Oracle: oracle,
		Stats: health.DetectorStats{
			Device:    device,
			Instances: len(detectors),
			Samples:   cfg.SampleCount,
		},
	}, nil
}

func ProvideAnalyzer(oracle keyframe.Oracle, cfg *Config, logger *slog.Logger) *keyframe.Analyzer {
	return keyframe.NewAnalyzer(oracle, keyframe.Config{
		Samples: cfg.SampleCount,
		Workers: cfg.DetectorInstances,
	}, logger)
}

func ProvideOpener() analysis.Opener {
	return opencv.OpenVideo
}

func ProvideAnalysisService(
	analyzer *keyframe.Analyzer,
	open analysis.Opener,
	store *analysis.Store,
	history *analysis.History,
	index analysis.SimilarityIndex,
	logger *slog.Logger,
) *analysis.Service {
	return analysis.NewService(analyzer, open, store, history, index, logger)
}

var DetectorModule = fx.Options(
	fx.Provide(
		ProvideDetector,
		ProvideAnalyzer,
		ProvideOpener,
		ProvideAnalysisService,
	),
)
