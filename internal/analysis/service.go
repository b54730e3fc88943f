package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/clevtech/vision-backend/internal/metrics"
	"github.com/clevtech/vision-backend/internal/tracing"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const persistTimeout = 5 * time.Second

// Opener opens a video file for sampling.
type Opener func(path string) (keyframe.VideoResource, error)

type Result struct {
	ID     string
	Status Status
	Report *keyframe.Report
}

type Service struct {
	analyzer *keyframe.Analyzer
	open     Opener
	store    *Store
	history  *History
	index    SimilarityIndex
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewService wires the analyzer to its persistence sinks. history and index
// may be nil.
func NewService(analyzer *keyframe.Analyzer, open Opener, store *Store, history *History, index SimilarityIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		analyzer: analyzer,
		open:     open,
		store:    store,
		history:  history,
		index:    index,
		tracer:   tracing.Tracer("analysis"),
		logger:   logger.With("component", "analysis-service"),
	}
}

// Analyze samples the video at path and runs the detector over the sampled
// frames. A video that cannot be opened or measured yields an empty report.
// Persistence is best-effort and never fails the call.
func (s *Service) Analyze(ctx context.Context, path, filename string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.Analyze",
		trace.WithAttributes(attribute.String("video.filename", filename)),
	)
	defer span.End()

	metrics.ActiveAnalyses.Inc()
	defer metrics.ActiveAnalyses.Dec()

	start := time.Now()
	status := StatusCompleted

	report, err := s.run(ctx, path)
	if errors.Is(err, keyframe.ErrUnreadableVideo) {
		s.logger.Warn("video unreadable, reporting no frames", "filename", filename, "error", err)
		report = &keyframe.Report{Frames: []keyframe.FrameResult{}}
		status = StatusUnreadable
	} else if err != nil {
		metrics.AnalysesTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.AnalysisDuration.WithLabelValues("analyze").Observe(elapsed.Seconds())
	metrics.AnalysesTotal.WithLabelValues(string(status)).Inc()
	metrics.FramesSampledTotal.Add(float64(report.Sampled))
	metrics.DetectionsTotal.Add(float64(report.DetectionCount()))
	metrics.DetectionsRejectedTotal.Add(float64(report.Rejected))
	for reason, n := range report.SkippedBy() {
		metrics.FramesSkippedTotal.WithLabelValues(string(reason)).Add(float64(n))
	}

	id := uuid.NewString()
	span.SetAttributes(
		attribute.String("analysis.id", id),
		attribute.Int("video.frame_count", report.FrameCount),
		attribute.Int("analysis.frames", len(report.Frames)),
		attribute.Int("analysis.skipped", report.Skipped),
	)

	persistStart := time.Now()
	s.persist(ctx, id, filename, status, report, elapsed)
	metrics.AnalysisDuration.WithLabelValues("persist").Observe(time.Since(persistStart).Seconds())

	s.logger.Info("analysis completed",
		"analysis_id", id,
		"filename", filename,
		"status", status,
		"frames", len(report.Frames),
		"detections", report.DetectionCount(),
		"duration", elapsed,
	)

	return &Result{ID: id, Status: status, Report: report}, nil
}

func (s *Service) run(ctx context.Context, path string) (*keyframe.Report, error) {
	video, err := s.open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "open video"), keyframe.ErrUnreadableVideo)
	}
	return s.analyzer.Analyze(ctx, video)
}

func (s *Service) persist(ctx context.Context, id, filename string, status Status, report *keyframe.Report, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	counts := ClassCounts(report.Frames)
	record := &Analysis{
		ID:         id,
		Filename:   filename,
		Status:     status,
		FrameCount: report.FrameCount,
		Sampled:    report.Sampled,
		Reported:   len(report.Frames),
		Skipped:    report.Skipped,
		Rejected:   report.Rejected,
		Detections: report.DetectionCount(),
		Classes:    classesJSON(counts),
		DurationMs: elapsed.Milliseconds(),
	}

	// Indexed must only be true when the point exists in the index.
	if s.index != nil {
		if vec, ok := Histogram(counts, HistogramSize); ok {
			if err := s.index.Upsert(ctx, id, vec); err != nil {
				s.persistFailed("qdrant", id, err)
			} else {
				record.Indexed = true
			}
		}
	}

	if err := s.store.Create(ctx, record); err != nil {
		s.persistFailed("database", id, err)
	}

	if s.history != nil {
		if err := s.history.Save(ctx, id, report.Frames); err != nil {
			s.persistFailed("redis", id, err)
		}
	}
}

func (s *Service) persistFailed(sink, id string, err error) {
	metrics.PersistFailuresTotal.WithLabelValues(sink).Inc()
	s.logger.Error("failed to persist analysis", "sink", sink, "analysis_id", id, "error", err)
}
