package keyframe

import (
	"context"
	"fmt"
	"math"
)

// Oracle maps a still image to detections. ColorSpace is the pixel order
// Detect expects; frames are converted before every call.
type Oracle interface {
	ColorSpace() ColorSpace
	Detect(ctx context.Context, frame Frame) ([]RawDetection, error)
}

type ShapeError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("detection %d: %s %s", e.Index, e.Field, e.Reason)
}

// Normalize converts raw oracle output into Detections, preserving emission
// order. Entries that do not fit the Detection shape are dropped and described
// in the returned errors.
func Normalize(raw []RawDetection) ([]Detection, []*ShapeError) {
	out := make([]Detection, 0, len(raw))
	var rejected []*ShapeError

	for i, r := range raw {
		if err := checkShape(i, r); err != nil {
			rejected = append(rejected, err)
			continue
		}
		d := Detection{
			Class:      int(r.Class),
			Confidence: r.Confidence,
		}
		copy(d.BBox[:], r.Box)
		out = append(out, d)
	}

	return out, rejected
}

func checkShape(i int, r RawDetection) *ShapeError {
	if math.IsNaN(r.Class) || math.IsInf(r.Class, 0) || r.Class < 0 || r.Class != math.Trunc(r.Class) || r.Class > math.MaxInt32 {
		return &ShapeError{Index: i, Field: "class", Reason: "is not a non-negative integer"}
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return &ShapeError{Index: i, Field: "confidence", Reason: "is outside [0,1]"}
	}
	if len(r.Box) != 4 {
		return &ShapeError{Index: i, Field: "bbox", Reason: fmt.Sprintf("has %d values, want 4", len(r.Box))}
	}
	for _, v := range r.Box {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ShapeError{Index: i, Field: "bbox", Reason: "contains a non-finite value"}
		}
	}
	return nil
}
