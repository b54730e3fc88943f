package dto

type DetectionResponse struct {
	Class      int        `json:"class" example:"0"`
	Confidence float64    `json:"confidence" example:"0.87"`
	BBox       [4]float64 `json:"bbox"`
}

type FrameResultResponse struct {
	Frame      int                 `json:"frame" example:"42"`
	Detections []DetectionResponse `json:"detections"`
}

type DetectResponse struct {
	VideoResults []FrameResultResponse `json:"video_results"`
}

type AnalysisResponse struct {
	ID         string         `json:"id" example:"5b0c3f5e-6a43-4c39-9d0c-2d3f1d1b7a10"`
	Filename   string         `json:"filename" example:"clip.mp4"`
	Status     string         `json:"status" example:"completed"`
	FrameCount int            `json:"frame_count" example:"160"`
	Sampled    int            `json:"sampled" example:"16"`
	Reported   int            `json:"reported" example:"15"`
	Skipped    int            `json:"skipped" example:"1"`
	Rejected   int            `json:"rejected" example:"0"`
	Detections int            `json:"detections" example:"37"`
	Indexed    bool           `json:"indexed" example:"true"`
	Classes    map[string]any `json:"classes" swaggertype:"object"`
	DurationMs int64          `json:"duration_ms" example:"812"`
	CreatedAt  string         `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

type AnalysisListResponse struct {
	Analyses []AnalysisResponse `json:"analyses"`
	Total    int64              `json:"total" example:"12"`
	Limit    int                `json:"limit" example:"20"`
	Offset   int                `json:"offset" example:"0"`
}

type SimilarAnalysisResponse struct {
	Score    float32          `json:"score" example:"0.93"`
	Analysis AnalysisResponse `json:"analysis"`
}

type SimilarAnalysesResponse struct {
	ID      string                    `json:"id" example:"5b0c3f5e-6a43-4c39-9d0c-2d3f1d1b7a10"`
	Similar []SimilarAnalysisResponse `json:"similar"`
}
