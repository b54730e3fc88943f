package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_analyses_total",
		Help: "Total number of video analyses, by status",
	}, []string{"status"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vision_analysis_duration_seconds",
		Help:    "Duration of the analysis pipeline, by stage",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_frames_sampled_total",
		Help: "Total number of sample positions requested across all analyses",
	})

	FramesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_frames_skipped_total",
		Help: "Total number of sampled frames dropped from reports, by reason",
	}, []string{"reason"})

	DetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_detections_total",
		Help: "Total number of detections reported",
	})

	DetectionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_detections_rejected_total",
		Help: "Total number of detector outputs dropped for not matching the detection shape",
	})

	UploadsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_uploads_rejected_total",
		Help: "Total number of uploads rejected before analysis, by reason",
	}, []string{"reason"})

	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vision_active_analyses",
		Help: "Number of analyses currently running",
	})

	PersistFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_persist_failures_total",
		Help: "Total number of best-effort persistence failures, by sink",
	}, []string{"sink"})
)
