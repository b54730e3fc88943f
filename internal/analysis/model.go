package analysis

import (
	"math"
	"strconv"
	"time"

	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/clevtech/vision-backend/internal/shared"
)

// HistogramSize covers the 80 COCO classes YOLO models are trained on.
const HistogramSize = 80

type Status string

const (
	StatusCompleted  Status = "completed"
	StatusUnreadable Status = "unreadable"
)

type Analysis struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	Filename   string         `gorm:"not null" json:"filename"`
	Status     Status         `gorm:"not null;index" json:"status"`
	FrameCount int            `json:"frame_count"`
	Sampled    int            `json:"sampled"`
	Reported   int            `json:"reported"`
	Skipped    int            `json:"skipped"`
	Rejected   int            `json:"rejected"`
	Detections int            `json:"detections"`
	Indexed    bool           `gorm:"not null;default:false" json:"indexed"`
	Classes    shared.JSONMap `gorm:"type:text" json:"classes"`
	DurationMs int64          `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

// ClassCounts counts detections per class id.
func ClassCounts(frames []keyframe.FrameResult) map[int]int {
	counts := make(map[int]int)
	for _, f := range frames {
		for _, d := range f.Detections {
			counts[d.Class]++
		}
	}
	return counts
}

// Histogram is the L2-normalized class count vector used for similarity
// search. Classes outside [0, size) are ignored. ok is false when nothing
// was counted.
func Histogram(counts map[int]int, size int) (vec []float32, ok bool) {
	vec = make([]float32, size)
	var sum float64
	for class, n := range counts {
		if class < 0 || class >= size {
			continue
		}
		vec[class] = float32(n)
		sum += float64(n) * float64(n)
	}
	if sum == 0 {
		return vec, false
	}

	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec, true
}

func classesJSON(counts map[int]int) shared.JSONMap {
	m := make(shared.JSONMap, len(counts))
	for class, n := range counts {
		m[strconv.Itoa(class)] = n
	}
	return m
}
