package document

import (
	"context"

	"github.com/clevtech/vision-backend/internal/shared"
	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Document{})
}

func (s *Store) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = shared.NewID("doc_")
	}
	return s.db.WithContext(ctx).Create(doc).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents newest first along with the total count.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Document, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Document{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []*Document
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&docs).Error
	return docs, total, err
}

func (s *Store) Update(ctx context.Context, doc *Document) error {
	result := s.db.WithContext(ctx).Model(doc).Select("name", "data", "updated_at").Updates(doc)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (s *Store) SetFile(ctx context.Context, id, key, name, contentType string, size int64) error {
	result := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(map[string]any{
		"file_key":     key,
		"file_name":    name,
		"content_type": contentType,
		"file_size":    size,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Document{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
