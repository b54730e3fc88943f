// Package yolo turns the raw output tensor of a YOLOv8/YOLO11 ONNX export into
// detections in source-frame pixel coordinates.
package yolo

import (
	"cmp"
	"math"
	"slices"

	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/cockroachdb/errors"
)

const (
	DefaultConfThreshold = 0.25
	DefaultIoUThreshold  = 0.45
)

var ErrBadShape = errors.New("unexpected output tensor shape")

type Options struct {
	ConfThreshold float64
	IoUThreshold  float64
	// ScaleX and ScaleY map model input coordinates back to the frame.
	ScaleX float64
	ScaleY float64
	// Width and Height of the source frame; boxes are clamped to it when set.
	Width  float64
	Height float64
}

func (o Options) withDefaults() Options {
	if o.ConfThreshold <= 0 {
		o.ConfThreshold = DefaultConfThreshold
	}
	if o.IoUThreshold <= 0 {
		o.IoUThreshold = DefaultIoUThreshold
	}
	if o.ScaleX <= 0 {
		o.ScaleX = 1
	}
	if o.ScaleY <= 0 {
		o.ScaleY = 1
	}
	return o
}

type candidate struct {
	class int
	conf  float64
	box   [4]float64
	order int
}

// Decode reads a [1, 4+C, N] tensor: for each of N anchors, rows 0..3 hold
// cx, cy, w, h and rows 4.. hold per-class scores. The result is sorted by
// confidence, highest first, after class-aware non-maximum suppression.
func Decode(out []float32, shape []int, opts Options) ([]keyframe.RawDetection, error) {
	if len(shape) != 3 || shape[0] != 1 || shape[1] < 5 || shape[2] < 0 {
		return nil, errors.Wrapf(ErrBadShape, "%v", shape)
	}
	rows, anchors := shape[1], shape[2]
	if len(out) != rows*anchors {
		return nil, errors.Wrapf(ErrBadShape, "%v needs %d values, got %d", shape, rows*anchors, len(out))
	}
	opts = opts.withDefaults()

	at := func(row, anchor int) float64 {
		return float64(out[row*anchors+anchor])
	}

	var cands []candidate
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, math.Inf(-1)
		for c := 4; c < rows; c++ {
			if s := at(c, a); s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if bestScore < opts.ConfThreshold {
			continue
		}

		cx, cy, w, h := at(0, a), at(1, a), at(2, a), at(3, a)
		box := [4]float64{
			(cx - w/2) * opts.ScaleX,
			(cy - h/2) * opts.ScaleY,
			(cx + w/2) * opts.ScaleX,
			(cy + h/2) * opts.ScaleY,
		}
		clamp(&box, opts.Width, opts.Height)

		cands = append(cands, candidate{class: best, conf: min(bestScore, 1), box: box, order: a})
	}

	kept := suppress(cands, opts.IoUThreshold)

	dets := make([]keyframe.RawDetection, 0, len(kept))
	for _, k := range kept {
		dets = append(dets, keyframe.RawDetection{
			Class:      float64(k.class),
			Confidence: k.conf,
			Box:        []float64{k.box[0], k.box[1], k.box[2], k.box[3]},
		})
	}
	return dets, nil
}

func clamp(box *[4]float64, width, height float64) {
	if width > 0 {
		box[0] = math.Min(math.Max(box[0], 0), width)
		box[2] = math.Min(math.Max(box[2], 0), width)
	}
	if height > 0 {
		box[1] = math.Min(math.Max(box[1], 0), height)
		box[3] = math.Min(math.Max(box[3], 0), height)
	}
}

func suppress(cands []candidate, iouThreshold float64) []candidate {
	slices.SortStableFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(b.conf, a.conf); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		overlaps := false
		for _, k := range kept {
			if k.class == c.class && IoU(k.box, c.box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

// IoU is the intersection over union of two x1,y1,x2,y2 boxes.
func IoU(a, b [4]float64) float64 {
	ix := math.Max(0, math.Min(a[2], b[2])-math.Max(a[0], b[0]))
	iy := math.Max(0, math.Min(a[3], b[3])-math.Max(a[1], b[1]))
	inter := ix * iy
	if inter == 0 {
		return 0
	}
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(b [4]float64) float64 {
	return math.Max(0, b[2]-b[0]) * math.Max(0, b[3]-b[1])
}
