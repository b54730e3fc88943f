package document

import (
	"path"
	"time"

	"github.com/clevtech/vision-backend/internal/shared"
)

type Document struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Data        shared.JSONMap `gorm:"type:text" json:"data"`
	FileKey     string         `json:"file_key,omitempty"`
	FileName    string         `json:"file_name,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	FileSize    int64          `json:"file_size,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (d *Document) HasFile() bool {
	return d.FileKey != ""
}

// ObjectKey is where an attachment named filename lives in the object store.
func ObjectKey(id, filename string) string {
	return "documents/" + id + "/" + path.Base("/"+filename)
}
