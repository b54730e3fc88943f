package document

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clevtech/vision-backend/internal/dto"
	"github.com/clevtech/vision-backend/internal/objectstore"
	"github.com/clevtech/vision-backend/internal/shared"
	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
)

type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*objectstore.ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *objectstore.ObjectInfo, error)
	Stat(ctx context.Context, key string) (*objectstore.ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}

type Handler struct {
	store   *Store
	objects ObjectStore
	logger  *slog.Logger
}

func NewHandler(store *Store, objects ObjectStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		objects: objects,
		logger:  logger.With("handler", "document"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/file", h.UploadFile)
	g.GET("/:id/file", h.DownloadFile)
	g.HEAD("/:id/file", h.FileInfo)
}

// Root godoc
// @Summary      Service greeting
// @Tags         documents
// @Produce      json
// @Success      200  {object}  dto.MessageResponse
// @Router       / [get]
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Hello, World!"})
}

func toResponse(d *Document) dto.DocumentResponse {
	resp := dto.DocumentResponse{
		ID:        d.ID,
		Name:      d.Name,
		Data:      map[string]any(d.Data),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
	if resp.Data == nil {
		resp.Data = map[string]any{}
	}
	if d.HasFile() {
		resp.File = &dto.FileResponse{
			Key:         d.FileKey,
			Name:        d.FileName,
			ContentType: d.ContentType,
			Size:        d.FileSize,
		}
	}
	return resp
}

func (h *Handler) lookup(c echo.Context) (*Document, error) {
	doc, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NotFound("document_not_found", "document not found")
	}
	if err != nil {
		h.logger.Error("failed to get document", "error", err, "id", c.Param("id"))
		return nil, shared.InternalError("get_failed", "failed to get document")
	}
	return doc, nil
}

// List godoc
// @Summary      List documents
// @Description  Returns documents, newest first
// @Tags         documents
// @Produce      json
// @Param        limit   query     int  false  "Page size"  default(20)
// @Param        offset  query     int  false  "Offset"     default(0)
// @Success      200     {object}  dto.DocumentListResponse
// @Failure      500     {object}  shared.APIError
// @Router       /documents [get]
func (h *Handler) List(c echo.Context) error {
	limit, offset := shared.Page(c)

	docs, total, err := h.store.List(c.Request().Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list documents", "error", err)
		return shared.InternalError("list_failed", "failed to list documents")
	}

	response := make([]dto.DocumentResponse, len(docs))
	for i, d := range docs {
		response[i] = toResponse(d)
	}

	return c.JSON(http.StatusOK, dto.DocumentListResponse{
		Documents: response,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// Create godoc
// @Summary      Create a document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request  body      dto.CreateDocumentRequest  true  "Document"
// @Success      201      {object}  dto.DocumentResponse
// @Failure      400      {object}  shared.APIError
// @Failure      500      {object}  shared.APIError
// @Router       /documents [post]
func (h *Handler) Create(c echo.Context) error {
	var req dto.CreateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return shared.BadRequest("name_required", "name is required")
	}

	doc := &Document{
		Name: req.Name,
		Data: shared.JSONMap(req.Data),
	}
	if err := h.store.Create(c.Request().Context(), doc); err != nil {
		h.logger.Error("failed to create document", "error", err)
		return shared.InternalError("create_failed", "failed to create document")
	}

	return c.JSON(http.StatusCreated, toResponse(doc))
}

// Get godoc
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      404  {object}  shared.APIError
// @Router       /documents/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	doc, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(doc))
}

// Update godoc
// @Summary      Update a document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Document ID"
// @Param        request  body      dto.UpdateDocumentRequest  true  "Fields to change"
// @Success      200      {object}  dto.DocumentResponse
// @Failure      400      {object}  shared.APIError
// @Failure      404      {object}  shared.APIError
// @Router       /documents/{id} [put]
func (h *Handler) Update(c echo.Context) error {
	var req dto.UpdateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	doc, err := h.lookup(c)
	if err != nil {
		return err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return shared.BadRequest("name_required", "name cannot be empty")
		}
		doc.Name = name
	}
	if req.Data != nil {
		doc.Data = shared.JSONMap(req.Data)
	}

	if err := h.store.Update(c.Request().Context(), doc); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("document_not_found", "document not found")
		}
		h.logger.Error("failed to update document", "error", err, "id", doc.ID)
		return shared.InternalError("update_failed", "failed to update document")
	}

	return c.JSON(http.StatusOK, toResponse(doc))
}

// Delete godoc
// @Summary      Delete a document
// @Description  Deletes the document and its attachment, if any
// @Tags         documents
// @Param        id   path  string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  shared.APIError
// @Router       /documents/{id} [delete]
func (h *Handler) Delete(c echo.Context) error {
	doc, err := h.lookup(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.store.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("document_not_found", "document not found")
		}
		h.logger.Error("failed to delete document", "error", err, "id", doc.ID)
		return shared.InternalError("delete_failed", "failed to delete document")
	}

	if doc.HasFile() {
		if err := h.objects.Remove(ctx, doc.FileKey); err != nil {
			h.logger.Warn("failed to remove attachment", "error", err, "key", doc.FileKey)
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// UploadFile godoc
// @Summary      Attach a file
// @Description  Stores the uploaded file in the object store and links it to the document
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      string  true  "Document ID"
// @Param        file  formData  file    true  "File"
// @Success      200   {object}  dto.DocumentResponse
// @Failure      400   {object}  shared.APIError
// @Failure      404   {object}  shared.APIError
// @Failure      500   {object}  shared.APIError
// @Router       /documents/{id}/file [put]
func (h *Handler) UploadFile(c echo.Context) error {
	doc, err := h.lookup(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return shared.BadRequest("missing_file", "file is required")
	}

	src, err := file.Open()
	if err != nil {
		return shared.BadRequest("invalid_file", "failed to read file")
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	key := ObjectKey(doc.ID, file.Filename)
	ctx := c.Request().Context()

	info, err := h.objects.Put(ctx, key, src, file.Size, contentType)
	if err != nil {
		h.logger.Error("failed to store attachment", "error", err, "key", key)
		return shared.InternalError("upload_failed", "failed to store file")
	}

	if doc.HasFile() && doc.FileKey != key {
		if err := h.objects.Remove(ctx, doc.FileKey); err != nil {
			h.logger.Warn("failed to remove previous attachment", "error", err, "key", doc.FileKey)
		}
	}

	if err := h.store.SetFile(ctx, doc.ID, key, file.Filename, info.ContentType, info.Size); err != nil {
		h.logger.Error("failed to link attachment", "error", err, "id", doc.ID)
		return shared.InternalError("upload_failed", "failed to link file")
	}

	doc.FileKey = key
	doc.FileName = file.Filename
	doc.ContentType = info.ContentType
	doc.FileSize = info.Size
	return c.JSON(http.StatusOK, toResponse(doc))
}

// DownloadFile godoc
// @Summary      Download the attachment
// @Tags         documents
// @Produce      octet-stream
// @Param        id   path  string  true  "Document ID"
// @Success      200  {file}  binary
// @Failure      404  {object}  shared.APIError
// @Router       /documents/{id}/file [get]
func (h *Handler) DownloadFile(c echo.Context) error {
	doc, err := h.lookup(c)
	if err != nil {
		return err
	}
	if !doc.HasFile() {
		return shared.NotFound("file_not_found", "document has no file")
	}

	body, info, err := h.objects.Get(c.Request().Context(), doc.FileKey)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("file_not_found", "file not found")
	}
	if err != nil {
		h.logger.Error("failed to fetch attachment", "error", err, "key", doc.FileKey)
		return shared.InternalError("download_failed", "failed to fetch file")
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(doc.FileName))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	return c.Stream(http.StatusOK, contentType, body)
}

// FileInfo godoc
// @Summary      Attachment metadata
// @Description  Returns the attachment headers without the body
// @Tags         documents
// @Param        id   path  string  true  "Document ID"
// @Success      200
// @Failure      404  {object}  shared.APIError
// @Router       /documents/{id}/file [head]
func (h *Handler) FileInfo(c echo.Context) error {
	doc, err := h.lookup(c)
	if err != nil {
		return err
	}
	if !doc.HasFile() {
		return shared.NotFound("file_not_found", "document has no file")
	}

	info, err := h.objects.Stat(c.Request().Context(), doc.FileKey)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("file_not_found", "file not found")
	}
	if err != nil {
		h.logger.Error("failed to stat attachment", "error", err, "key", doc.FileKey)
		return shared.InternalError("stat_failed", "failed to read file metadata")
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	header := c.Response().Header()
	header.Set(echo.HeaderContentType, contentType)
	header.Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(doc.FileName))
	header.Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	return c.NoContent(http.StatusOK)
}
