package user

import (
	"time"

	accessDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/access"
)

type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	PasswordHash    string     `json:"-"`
	IsBanned        bool       `json:"is_banned"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	Roles           []string   `json:"roles,omitempty"`
	Permissions     []string   `json:"permissions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return !u.IsBanned
}

func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func (u *User) HasAnyPermission(permissions []string) bool {
	for _, userPerm := range u.Permissions {
		for _, requiredPerm := range permissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

func ToDataModel(u *User) *accessDatamodel.User {
	return &accessDatamodel.User{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		PasswordHash:    u.PasswordHash,
		IsBanned:        u.IsBanned,
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func FromDataModel(row *accessDatamodel.User) *User {
	u := &User{
		ID:              row.ID,
		Email:           row.Email,
		Name:            row.Name,
		PasswordHash:    row.PasswordHash,
		IsBanned:        row.IsBanned,
		EmailVerifiedAt: row.EmailVerifiedAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	for _, r := range row.Roles {
		u.Roles = append(u.Roles, r.Name)
	}
	for _, p := range row.Permissions {
		u.Permissions = append(u.Permissions, p.Name)
	}
	return u
}
