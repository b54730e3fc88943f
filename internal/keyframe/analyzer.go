package keyframe

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Samples int
	Workers int
}

type Analyzer struct {
	oracle  Oracle
	samples int
	workers int
	logger  *slog.Logger
}

func NewAnalyzer(oracle Oracle, cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Analyzer{
		oracle:  oracle,
		samples: cfg.Samples,
		workers: cfg.Workers,
		logger:  logger.With("component", "keyframe-analyzer"),
	}
}

type slot struct {
	done       bool
	detections []Detection
	rejected   int
	skip       *Skip
}

// Analyze samples the video at evenly spaced positions and runs the oracle on
// each readable frame. Frames that cannot be read, converted or detected are
// skipped. The video is closed before Analyze returns.
func (a *Analyzer) Analyze(ctx context.Context, video VideoResource) (*Report, error) {
	if video == nil {
		return nil, ErrNilVideo
	}
	defer func() {
		if err := video.Close(); err != nil {
			a.logger.Debug("close video", "error", err)
		}
	}()

	if a.oracle == nil {
		return nil, ErrNilOracle
	}

	count, err := video.FrameCount()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read frame count"), ErrUnreadableVideo)
	}
	count = max(count, 0)

	indices, err := SampleIndices(count, a.samples)
	if err != nil {
		return nil, err
	}

	slots := make([]slot, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	space := a.oracle.ColorSpace()
	for pos, idx := range indices {
		if err := ctx.Err(); err != nil {
			break
		}

		frame, skip := a.readFrame(video, idx, space)
		if skip != nil {
			slots[pos].skip = skip
			continue
		}

		g.Go(func() error {
			raw, err := a.oracle.Detect(gctx, frame)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				slots[pos].skip = &Skip{Frame: idx, Reason: SkipOracle, Err: err}
				return nil
			}

			detections, rejected := Normalize(raw)
			for _, r := range rejected {
				a.logger.Debug("dropped detection", "frame", idx, "error", r)
			}
			slots[pos] = slot{done: true, detections: detections, rejected: len(rejected)}
			return nil
		})
	}

	waitErr := g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if waitErr != nil {
		return nil, waitErr
	}

	return a.collect(count, indices, slots), nil
}

func (a *Analyzer) readFrame(video VideoResource, idx int, space ColorSpace) (Frame, *Skip) {
	if err := video.Seek(idx); err != nil {
		a.logger.Debug("seek failed", "frame", idx, "error", err)
		return Frame{}, &Skip{Frame: idx, Reason: SkipSeek, Err: err}
	}

	frame, err := video.Read()
	if err != nil {
		a.logger.Debug("read failed", "frame", idx, "error", err)
		return Frame{}, &Skip{Frame: idx, Reason: SkipRead, Err: err}
	}

	converted, err := frame.Convert(space)
	if err != nil {
		a.logger.Debug("color conversion failed", "frame", idx, "error", err)
		return Frame{}, &Skip{Frame: idx, Reason: SkipConvert, Err: err}
	}
	return converted, nil
}

func (a *Analyzer) collect(count int, indices []int, slots []slot) *Report {
	report := &Report{
		Frames:     make([]FrameResult, 0, len(indices)),
		FrameCount: count,
		Sampled:    len(indices),
	}

	for pos, s := range slots {
		switch {
		case s.done:
			report.Frames = append(report.Frames, FrameResult{
				Frame:      indices[pos],
				Detections: s.detections,
			})
			report.Rejected += s.rejected
		case s.skip != nil:
			report.Skips = append(report.Skips, *s.skip)
		}
	}
	report.Skipped = len(report.Skips)

	if report.Skipped > 0 {
		a.logger.Info("frames skipped",
			"frame_count", count,
			"sampled", report.Sampled,
			"skipped", report.Skipped)
	}
	return report
}
