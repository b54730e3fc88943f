package document

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/clevtech/vision-backend/internal/dto"
	"github.com/clevtech/vision-backend/internal/objectstore"
	"github.com/clevtech/vision-backend/internal/shared"
	"github.com/labstack/echo/v4"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	removed []string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (*objectstore.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return &objectstore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, *objectstore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, nil, shared.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &objectstore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

func (m *memObjects) Stat(_ context.Context, key string) (*objectstore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &objectstore.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *memObjects) {
	objects := newMemObjects()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(setupStore(t), objects, logger), objects
}

func newTestServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.GET("/", h.Root)
	h.RegisterRoutes(e.Group("/documents"))
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createDoc(t *testing.T, e *echo.Echo, body string) dto.DocumentResponse {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/documents", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.DocumentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()
	h.RegisterRoutes(e.Group("/documents"))

	expected := map[string]bool{
		"GET /documents":           false,
		"POST /documents":          false,
		"GET /documents/:id":       false,
		"PUT /documents/:id":       false,
		"DELETE /documents/:id":    false,
		"PUT /documents/:id/file":  false,
		"GET /documents/:id/file":  false,
		"HEAD /documents/:id/file": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := expected[key]; ok {
			expected[key] = true
		}
	}
	for route, found := range expected {
		if !found {
			t.Errorf("expected route %s to be registered", route)
		}
	}
}

func TestHandler_Root(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(newTestServer(h), http.MethodGet, "/", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message":"Hello, World!"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateAndGet(t *testing.T) {
	h, _ := newTestHandler(t)
	e := newTestServer(h)

	created := createDoc(t, e, `{"name":"clip","data":{"camera":"north"}}`)
	if created.Name != "clip" || created.Data["camera"] != "north" {
		t.Errorf("unexpected response %+v", created)
	}

	rec := doJSON(e, http.MethodGet, "/documents/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got dto.DocumentResponse
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID != created.ID {
		t.Errorf("expected id %s, got %s", created.ID, got.ID)
	}
}

func TestHandler_Create_Invalid(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad json", `{`, "invalid_request"},
		{"missing name", `{"data":{}}`, "name_required"},
		{"blank name", `{"name":"   "}`, "name_required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(req, httptest.NewRecorder())

			err := h.Create(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError, got %T", err)
			}
			if httpErr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", httpErr.Code)
			}
			if apiErr := httpErr.Message.(*shared.APIError); apiErr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, apiErr.Code)
			}
		})
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/documents/doc_missing", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("doc_missing")

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", httpErr.Code)
	}
	if apiErr := httpErr.Message.(*shared.APIError); apiErr.Code != "document_not_found" {
		t.Errorf("expected document_not_found, got %s", apiErr.Code)
	}
}

func TestHandler_List(t *testing.T) {
	h, _ := newTestHandler(t)
	e := newTestServer(h)

	for _, name := range []string{"a", "b", "c"} {
		createDoc(t, e, `{"name":"`+name+`"}`)
	}

	rec := doJSON(e, http.MethodGet, "/documents?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dto.DocumentListResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Documents) != 2 || resp.Limit != 2 {
		t.Errorf("unexpected list response %+v", resp)
	}
}

func TestHandler_Update(t *testing.T) {
	h, _ := newTestHandler(t)
	e := newTestServer(h)
	created := createDoc(t, e, `{"name":"before","data":{"x":1}}`)

	rec := doJSON(e, http.MethodPut, "/documents/"+created.ID, `{"name":"after"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.DocumentResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Name != "after" {
		t.Errorf("expected name after, got %s", resp.Name)
	}
	if resp.Data["x"] != float64(1) {
		t.Errorf("data should be untouched, got %v", resp.Data)
	}

	rec = doJSON(e, http.MethodPut, "/documents/"+created.ID, `{"name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty name, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPut, "/documents/doc_missing", `{"name":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte(content))
	w.Close()

	req := httptest.NewRequest(http.MethodPut, path, body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandler_FileRoundTrip(t *testing.T) {
	h, objects := newTestHandler(t)
	e := newTestServer(h)
	created := createDoc(t, e, `{"name":"with file"}`)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/documents/"+created.ID+"/file", "notes.txt", "hello file"))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.DocumentResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.File == nil || resp.File.Key != "documents/"+created.ID+"/notes.txt" || resp.File.Size != 10 {
		t.Fatalf("unexpected file metadata %+v", resp.File)
	}
	if string(objects.objects[resp.File.Key]) != "hello file" {
		t.Error("object not stored")
	}

	rec = doJSON(e, http.MethodGet, "/documents/"+created.ID+"/file", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "hello file" {
		t.Errorf("unexpected download body %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "notes.txt") {
		t.Errorf("unexpected disposition %q", rec.Header().Get(echo.HeaderContentDisposition))
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/documents/"+created.ID+"/file", "other.txt", "second"))
	if rec.Code != http.StatusOK {
		t.Fatalf("replace: expected 200, got %d", rec.Code)
	}
	if _, ok := objects.objects["documents/"+created.ID+"/notes.txt"]; ok {
		t.Error("previous attachment should be removed")
	}

	rec = doJSON(e, http.MethodDelete, "/documents/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if len(objects.objects) != 0 {
		t.Errorf("expected attachment removed with document, left %d", len(objects.objects))
	}
}

func TestHandler_UploadFile_Missing(t *testing.T) {
	h, _ := newTestHandler(t)
	e := newTestServer(h)
	created := createDoc(t, e, `{"name":"no file"}`)

	rec := doJSON(e, http.MethodPut, "/documents/"+created.ID+"/file", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_DownloadFile_NoAttachment(t *testing.T) {
	h, _ := newTestHandler(t)
	e := newTestServer(h)
	created := createDoc(t, e, `{"name":"empty"}`)

	rec := doJSON(e, http.MethodGet, "/documents/"+created.ID+"/file", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_FileInfo(t *testing.T) {
	h, objects := newTestHandler(t)
	e := newTestServer(h)
	created := createDoc(t, e, `{"name":"with file"}`)

	rec := doJSON(e, http.MethodHead, "/documents/"+created.ID+"/file", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before upload, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/documents/"+created.ID+"/file", "notes.txt", "hello file"))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodHead, "/documents/"+created.ID+"/file", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderContentLength); got != "10" {
		t.Errorf("expected Content-Length 10, got %q", got)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "notes.txt") {
		t.Errorf("unexpected disposition %q", rec.Header().Get(echo.HeaderContentDisposition))
	}

	for key := range objects.objects {
		delete(objects.objects, key)
	}
	rec = doJSON(e, http.MethodHead, "/documents/"+created.ID+"/file", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing object, got %d", rec.Code)
	}
}
