package postgres

import (
	"errors"

	accessDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/access"
	"github.com/frahmantamala/access-management/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(id int64) (*user.User, error) {
	var row accessDatamodel.User
	err := r.db.Preload("Roles").Preload("Permissions").First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

func (r *UserRepository) GetByEmail(email string) (*user.User, error) {
	var row accessDatamodel.User
	err := r.db.Preload("Roles").Preload("Permissions").
		Where("lower(email) = lower(?)", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

func (r *UserRepository) List() ([]*user.User, error) {
	var rows []accessDatamodel.User
	if err := r.db.Preload("Roles").Preload("Permissions").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]*user.User, 0, len(rows))
	for i := range rows {
		users = append(users, user.FromDataModel(&rows[i]))
	}
	return users, nil
}

func (r *UserRepository) Create(u *user.User) error {
	row := user.ToDataModel(u)
	if err := r.db.Create(row).Error; err != nil {
		return err
	}
	u.ID = row.ID
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *UserRepository) SetBanned(id int64, banned bool) error {
	return r.db.Model(&accessDatamodel.User{}).Where("id = ?", id).Update("is_banned", banned).Error
}
