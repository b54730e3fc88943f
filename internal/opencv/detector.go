package opencv

import (
	"context"
	"image"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/clevtech/vision-backend/internal/yolo"
	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"

	DefaultInputSize = 640

	nvidiaDevice = "/dev/nvidia0"
)

type Config struct {
	ModelPath     string
	Device        string
	InputSize     int
	ConfThreshold float64
	IoUThreshold  float64
}

// Detector runs a YOLO ONNX model through OpenCV's DNN module. gocv.Net is
// not safe for concurrent use, so every Detect holds the detector's mutex.
type Detector struct {
	mu     sync.Mutex
	net    gocv.Net
	size   int
	device string
	opts   yolo.Options
	logger *slog.Logger
}

func NewDetector(cfg Config, logger *slog.Logger) (*Detector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrap(err, "stat model")
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultInputSize
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		net.Close()
		return nil, errors.Newf("load model %s: empty network", cfg.ModelPath)
	}

	device := ResolveDevice(cfg.Device, hasNvidiaDevice)
	switch device {
	case DeviceCUDA:
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	default:
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	d := &Detector{
		net:    net,
		size:   cfg.InputSize,
		device: device,
		opts: yolo.Options{
			ConfThreshold: cfg.ConfThreshold,
			IoUThreshold:  cfg.IoUThreshold,
		},
		logger: logger.With("component", "detector"),
	}
	d.logger.Info("model loaded", "path", cfg.ModelPath, "device", device, "input_size", cfg.InputSize)
	return d, nil
}

// ResolveDevice maps the configured device to cpu or cuda. "auto" (or empty)
// picks cuda when gpu reports a usable device.
func ResolveDevice(device string, gpu func() bool) string {
	switch strings.ToLower(strings.TrimSpace(device)) {
	case DeviceCUDA, "gpu":
		return DeviceCUDA
	case DeviceCPU:
		return DeviceCPU
	default:
		if gpu != nil && gpu() {
			return DeviceCUDA
		}
		return DeviceCPU
	}
}

func hasNvidiaDevice() bool {
	_, err := os.Stat(nvidiaDevice)
	return err == nil
}

func (d *Detector) Device() string {
	return d.device
}

func (d *Detector) ColorSpace() keyframe.ColorSpace {
	return keyframe.RGB
}

func (d *Detector) Detect(ctx context.Context, frame keyframe.Frame) ([]keyframe.RawDetection, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if frame.Space != keyframe.RGB {
		return nil, errors.Newf("detector expects rgb input, got %s", frame.Space)
	}

	img, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix)
	if err != nil {
		return nil, errors.Wrap(err, "wrap frame")
	}
	defer img.Close()

	// Input is already RGB, so no channel swap here.
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(d.size, d.size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read output tensor")
	}

	opts := d.opts
	opts.ScaleX = float64(frame.Width) / float64(d.size)
	opts.ScaleY = float64(frame.Height) / float64(d.size)
	opts.Width = float64(frame.Width)
	opts.Height = float64(frame.Height)

	return yolo.Decode(data, out.Size(), opts)
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
