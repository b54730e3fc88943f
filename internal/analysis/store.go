package analysis

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
	return s.db.AutoMigrate(&Analysis{})
}

func (s *Store) Create(ctx context.Context, a *Analysis) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*Analysis, error) {
	var a Analysis
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByIDs returns the records that exist, in the order of ids.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]*Analysis, error) {
	if len(ids) == 0 {
		return []*Analysis{}, nil
	}

	var found []*Analysis
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*Analysis, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	out := make([]*Analysis, 0, len(found))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]*Analysis, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Analysis{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*Analysis
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	return records, total, err
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
