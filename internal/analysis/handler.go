package analysis

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/clevtech/vision-backend/internal/dto"
	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/clevtech/vision-backend/internal/metrics"
	"github.com/clevtech/vision-backend/internal/shared"
	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
)

const (
	DefaultMaxUploadBytes = 512 << 20
	DefaultSimilarLimit   = 5
	MaxSimilarLimit       = 50
)

// AllowedExtensions lists the container formats accepted by /detect.
var AllowedExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}

type HandlerConfig struct {
	TempDir        string
	MaxUploadBytes int64
}

type Handler struct {
	service  *Service
	store    *Store
	history  *History
	index    SimilarityIndex
	tempDir  string
	maxBytes int64
	logger   *slog.Logger
}

func NewHandler(service *Service, store *Store, history *History, index SimilarityIndex, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		service:  service,
		store:    store,
		history:  history,
		index:    index,
		tempDir:  cfg.TempDir,
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger.With("handler", "analysis"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/detect", h.Detect)
	g.GET("/detect/:id", h.GetReport)
	g.GET("/analyses", h.List)
	g.GET("/analyses/:id", h.Get)
	g.GET("/analyses/:id/similar", h.Similar)
}

func toFrameResults(frames []keyframe.FrameResult) []dto.FrameResultResponse {
	out := make([]dto.FrameResultResponse, len(frames))
	for i, f := range frames {
		dets := make([]dto.DetectionResponse, len(f.Detections))
		for j, d := range f.Detections {
			dets[j] = dto.DetectionResponse{
				Class:      d.Class,
				Confidence: d.Confidence,
				BBox:       d.BBox,
			}
		}
		out[i] = dto.FrameResultResponse{Frame: f.Frame, Detections: dets}
	}
	return out
}

func toResponse(a *Analysis) dto.AnalysisResponse {
	classes := map[string]any(a.Classes)
	if classes == nil {
		classes = map[string]any{}
	}
	return dto.AnalysisResponse{
		ID:         a.ID,
		Filename:   a.Filename,
		Status:     string(a.Status),
		FrameCount: a.FrameCount,
		Sampled:    a.Sampled,
		Reported:   a.Reported,
		Skipped:    a.Skipped,
		Rejected:   a.Rejected,
		Detections: a.Detections,
		Indexed:    a.Indexed,
		Classes:    classes,
		DurationMs: a.DurationMs,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

// Detect godoc
// @Summary      Detect objects in a video
// @Description  Samples keyframes evenly across the uploaded video and runs the object detector on each
// @Tags         detect
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Video file (.mp4, .avi, .mov, .mkv, .webm)"
// @Success      200   {object}  dto.DetectResponse
// @Header       200   {string}  X-Analysis-ID  "Id of the stored analysis"
// @Failure      400   {object}  shared.APIError
// @Failure      413   {object}  shared.APIError
// @Failure      415   {object}  shared.APIError
// @Failure      500   {object}  shared.APIError
// @Router       /detect [post]
func (h *Handler) Detect(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		metrics.UploadsRejectedTotal.WithLabelValues("missing_file").Inc()
		return shared.BadRequest("missing_file", "multipart field 'file' is required")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !slices.Contains(AllowedExtensions, ext) {
		metrics.UploadsRejectedTotal.WithLabelValues("unsupported_type").Inc()
		return shared.NewAPIError("unsupported_file_type", "unsupported video format").
			WithDetails(map[string]any{"allowed": AllowedExtensions}).
			ToHTTP(http.StatusUnsupportedMediaType)
	}

	if file.Size > h.maxBytes {
		metrics.UploadsRejectedTotal.WithLabelValues("too_large").Inc()
		return shared.NewAPIError("file_too_large", "video exceeds the upload limit").
			WithDetails(map[string]any{"max_bytes": h.maxBytes}).
			ToHTTP(http.StatusRequestEntityTooLarge)
	}

	path, err := h.spool(file, ext)
	if path != "" {
		defer os.Remove(path)
	}
	if err != nil {
		h.logger.Error("failed to store upload", "error", err, "filename", file.Filename)
		return shared.InternalError("upload_failed", "failed to store upload")
	}

	result, err := h.service.Analyze(c.Request().Context(), path, file.Filename)
	if err != nil {
		h.logger.Error("analysis failed", "error", err, "filename", file.Filename)
		return shared.InternalError("analysis_failed", "failed to analyze video")
	}

	c.Response().Header().Set("X-Analysis-ID", result.ID)
	return c.JSON(http.StatusOK, dto.DetectResponse{
		VideoResults: toFrameResults(result.Report.Frames),
	})
}

// spool copies the upload to a temp file that keeps the original extension
// so the demuxer can pick the container format.
func (h *Handler) spool(file *multipart.FileHeader, ext string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer src.Close()

	if h.tempDir != "" {
		if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
			return "", errors.Wrap(err, "create temp dir")
		}
	}

	dst, err := os.CreateTemp(h.tempDir, "upload-*"+ext)
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	path := dst.Name()

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return path, errors.Wrap(err, "write temp file")
	}
	return path, errors.Wrap(dst.Close(), "close temp file")
}

// GetReport godoc
// @Summary      Get a stored detection report
// @Description  Returns the frame results of a recent analysis while it is still cached
// @Tags         detect
// @Produce      json
// @Param        id   path      string  true  "Analysis ID"
// @Success      200  {object}  dto.DetectResponse
// @Failure      404  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /detect/{id} [get]
func (h *Handler) GetReport(c echo.Context) error {
	if h.history == nil {
		return shared.ServiceUnavailable("history_unavailable", "report history is not configured")
	}

	frames, err := h.history.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("report_not_found", "report not found or expired")
	}
	if err != nil {
		h.logger.Error("failed to get report", "error", err, "id", c.Param("id"))
		return shared.InternalError("get_failed", "failed to get report")
	}

	return c.JSON(http.StatusOK, dto.DetectResponse{VideoResults: toFrameResults(frames)})
}

// List godoc
// @Summary      List analyses
// @Description  Returns analysis summaries, newest first
// @Tags         analyses
// @Produce      json
// @Param        limit   query     int  false  "Page size"  default(20)
// @Param        offset  query     int  false  "Offset"     default(0)
// @Success      200     {object}  dto.AnalysisListResponse
// @Failure      500     {object}  shared.APIError
// @Router       /analyses [get]
func (h *Handler) List(c echo.Context) error {
	limit, offset := shared.Page(c)

	records, total, err := h.store.List(c.Request().Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list analyses", "error", err)
		return shared.InternalError("list_failed", "failed to list analyses")
	}

	response := make([]dto.AnalysisResponse, len(records))
	for i, a := range records {
		response[i] = toResponse(a)
	}

	return c.JSON(http.StatusOK, dto.AnalysisListResponse{
		Analyses: response,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

func (h *Handler) lookup(c echo.Context) (*Analysis, error) {
	a, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NotFound("analysis_not_found", "analysis not found")
	}
	if err != nil {
		h.logger.Error("failed to get analysis", "error", err, "id", c.Param("id"))
		return nil, shared.InternalError("get_failed", "failed to get analysis")
	}
	return a, nil
}

// Get godoc
// @Summary      Get an analysis
// @Tags         analyses
// @Produce      json
// @Param        id   path      string  true  "Analysis ID"
// @Success      200  {object}  dto.AnalysisResponse
// @Failure      404  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /analyses/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	a, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(a))
}

// Similar godoc
// @Summary      Find similar analyses
// @Description  Ranks other analyses by cosine similarity of their detected class histograms
// @Tags         analyses
// @Produce      json
// @Param        id     path      string  true   "Analysis ID"
// @Param        limit  query     int     false  "Max results"  default(5)
// @Success      200    {object}  dto.SimilarAnalysesResponse
// @Failure      404    {object}  shared.APIError
// @Failure      500    {object}  shared.APIError
// @Failure      503    {object}  shared.APIError
// @Router       /analyses/{id}/similar [get]
func (h *Handler) Similar(c echo.Context) error {
	if h.index == nil {
		return shared.ServiceUnavailable("similarity_unavailable", "similarity search is not configured")
	}

	a, err := h.lookup(c)
	if err != nil {
		return err
	}

	limit := DefaultSimilarLimit
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = min(v, MaxSimilarLimit)
	}

	response := dto.SimilarAnalysesResponse{ID: a.ID, Similar: []dto.SimilarAnalysisResponse{}}
	if !a.Indexed {
		return c.JSON(http.StatusOK, response)
	}

	ctx := c.Request().Context()
	// one extra so the query point itself can be dropped
	matches, err := h.index.Similar(ctx, a.ID, limit+1)
	if err != nil {
		h.logger.Error("similarity query failed", "error", err, "id", a.ID)
		return shared.InternalError("similarity_failed", "failed to query similar analyses")
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	ids := make([]string, len(matches))
	scores := make(map[string]float32, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
		scores[m.ID] = m.Score
	}

	records, err := h.store.GetByIDs(ctx, ids)
	if err != nil {
		h.logger.Error("failed to load similar analyses", "error", err, "id", a.ID)
		return shared.InternalError("get_failed", "failed to load similar analyses")
	}
	for _, r := range records {
		response.Similar = append(response.Similar, dto.SimilarAnalysisResponse{
			Score:    scores[r.ID],
			Analysis: toResponse(r),
		})
	}

	return c.JSON(http.StatusOK, response)
}
