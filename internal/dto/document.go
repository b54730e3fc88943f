package dto

type MessageResponse struct {
	Message string `json:"message" example:"Hello, World!"`
}

type CreateDocumentRequest struct {
	Name string         `json:"name" example:"inspection-42"`
	Data map[string]any `json:"data" swaggertype:"object"`
}

type UpdateDocumentRequest struct {
	Name *string        `json:"name,omitempty" example:"inspection-42"`
	Data map[string]any `json:"data,omitempty" swaggertype:"object"`
}

type FileResponse struct {
	Key         string `json:"key" example:"documents/doc_abc123/clip.mp4"`
	Name        string `json:"name" example:"clip.mp4"`
	ContentType string `json:"content_type" example:"video/mp4"`
	Size        int64  `json:"size" example:"1048576"`
}

type DocumentResponse struct {
	ID        string         `json:"id" example:"doc_abc123"`
	Name      string         `json:"name" example:"inspection-42"`
	Data      map[string]any `json:"data" swaggertype:"object"`
	File      *FileResponse  `json:"file,omitempty"`
	CreatedAt string         `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt string         `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Total     int64              `json:"total" example:"42"`
	Limit     int                `json:"limit" example:"20"`
	Offset    int                `json:"offset" example:"0"`
}
