package keyframe

import "github.com/cockroachdb/errors"

const DefaultSamples = 16

var (
	ErrNilVideo           = errors.New("video resource is nil")
	ErrNilOracle          = errors.New("detection oracle is nil")
	ErrInvalidSampleCount = errors.New("sample count must be positive")
	ErrUnreadableVideo    = errors.New("video frame count unavailable")
	ErrMalformedFrame     = errors.New("malformed frame")
)

// VideoResource is a seekable, finite sequence of frames. Read must return a
// frame whose Pix buffer is owned by the caller.
type VideoResource interface {
	FrameCount() (int, error)
	Seek(index int) error
	Read() (Frame, error)
	Close() error
}

type Detection struct {
	Class      int        `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// RawDetection is what an Oracle emits before normalization.
type RawDetection struct {
	Class      float64
	Confidence float64
	Box        []float64
}

type FrameResult struct {
	Frame      int         `json:"frame"`
	Detections []Detection `json:"detections"`
}

type SkipReason string

const (
	SkipSeek    SkipReason = "seek"
	SkipRead    SkipReason = "read"
	SkipConvert SkipReason = "convert"
	SkipOracle  SkipReason = "oracle"
)

type Skip struct {
	Frame  int
	Reason SkipReason
	Err    error
}

type Report struct {
	Frames     []FrameResult
	FrameCount int
	Sampled    int
	Skipped    int
	Rejected   int
	Skips      []Skip
}

// SkippedBy counts skips per reason.
func (r *Report) SkippedBy() map[SkipReason]int {
	out := make(map[SkipReason]int, len(r.Skips))
	for _, s := range r.Skips {
		out[s.Reason]++
	}
	return out
}

// DetectionCount is the total number of detections across all frames.
func (r *Report) DetectionCount() int {
	n := 0
	for _, f := range r.Frames {
		n += len(f.Detections)
	}
	return n
}
