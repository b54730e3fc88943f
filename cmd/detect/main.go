package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/clevtech/vision-backend/internal/opencv"
	"github.com/clevtech/vision-backend/internal/yolo"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type options struct {
	model   string
	device  string
	samples int
	conf    float64
	iou     float64
	pretty  bool
	verbose bool
}

type fileResult struct {
	File         string                 `json:"file"`
	VideoResults []keyframe.FrameResult `json:"video_results"`
	Skipped      int                    `json:"skipped"`
	Error        string                 `json:"error,omitempty"`
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "detect [flags] VIDEO...",
		Short: "Run keyframe object detection on local video files",
		Long: `Samples keyframes evenly across each video, runs the YOLO model on them
and prints one JSON result per file.

Examples:
  detect --model ./models/yolo11n.onnx clip.mp4
  detect --samples 8 --device cpu --pretty a.mp4 b.mkv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&opts.model, "model", envOr("MODEL_PATH", "./models/yolo11n.onnx"), "path to the YOLO ONNX model")
	cmd.Flags().StringVar(&opts.device, "device", envOr("DETECTOR_DEVICE", opencv.DeviceAuto), "inference device: auto, cpu or cuda")
	cmd.Flags().IntVar(&opts.samples, "samples", keyframe.DefaultSamples, "number of keyframes to sample per video")
	cmd.Flags().Float64Var(&opts.conf, "conf", yolo.DefaultConfThreshold, "confidence threshold")
	cmd.Flags().Float64Var(&opts.iou, "iou", yolo.DefaultIoUThreshold, "NMS IoU threshold")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indent JSON output")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, opts *options, files []string, stdout, stderr io.Writer) error {
	if opts.samples <= 0 {
		return errors.Wrapf(keyframe.ErrInvalidSampleCount, "--samples %d", opts.samples)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	detector, err := opencv.NewDetector(opencv.Config{
		ModelPath:     opts.model,
		Device:        opts.device,
		ConfThreshold: opts.conf,
		IoUThreshold:  opts.iou,
	}, logger)
	if err != nil {
		return errors.Wrap(err, "load detector")
	}
	oracle := keyframe.Serialize(detector)
	defer oracle.Close()

	analyzer := keyframe.NewAnalyzer(oracle, keyframe.Config{Samples: opts.samples}, logger)

	enc := json.NewEncoder(stdout)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}

	failed := 0
	for _, file := range files {
		result := analyzeFile(ctx, analyzer, file)
		if result.Error != "" {
			failed++
			logger.Warn("analysis failed", "file", file, "error", result.Error)
		}
		if err := enc.Encode(result); err != nil {
			return errors.Wrap(err, "write result")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func analyzeFile(ctx context.Context, analyzer *keyframe.Analyzer, file string) fileResult {
	result := fileResult{File: file, VideoResults: []keyframe.FrameResult{}}

	video, err := opencv.OpenVideo(file)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	report, err := analyzer.Analyze(ctx, video)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.VideoResults = report.Frames
	result.Skipped = report.Skipped
	return result
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
