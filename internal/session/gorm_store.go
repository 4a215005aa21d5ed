package session

import (
	"context"
	"errors"
	"time"

	accessDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/access"
	"gorm.io/gorm"
)

// GormStore persists sessions in the sessions table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id string) (*Record, error) {
	var row accessDatamodel.Session
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if time.Now().After(row.ExpiresAt) {
		// expired rows are lazily reaped
		_ = s.db.WithContext(ctx).Delete(&accessDatamodel.Session{}, "id = ?", id).Error
		return nil, nil
	}

	return &Record{
		ID:        row.ID,
		UserID:    row.UserID,
		Payload:   []byte(row.Payload),
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (s *GormStore) Save(ctx context.Context, rec *Record) error {
	row := accessDatamodel.Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Payload:   string(rec.Payload),
		ExpiresAt: rec.ExpiresAt,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&accessDatamodel.Session{}, "id = ?", id).Error
}
