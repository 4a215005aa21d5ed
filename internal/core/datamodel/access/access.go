package access

import "time"

// User is the persistence model for accounts. Role and direct permission
// edges are many-to-many; a user's effective permission set is the union of
// both and is never stored.
type User struct {
	ID              int64      `gorm:"primaryKey"`
	Name            string     `gorm:"column:name;not null"`
	Email           string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash    string     `gorm:"column:password_hash;not null"`
	IsBanned        bool       `gorm:"column:is_banned;default:false"`
	EmailVerifiedAt *time.Time `gorm:"column:email_verified_at"`
	Roles           []Role     `gorm:"many2many:user_roles;"`
	Permissions     []Permission `gorm:"many2many:user_permissions;"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (User) TableName() string {
	return "users"
}

// Role names are unique. Roles never contain other roles.
type Role struct {
	ID          int64        `gorm:"primaryKey"`
	Name        string       `gorm:"column:name;uniqueIndex;not null"`
	Permissions []Permission `gorm:"many2many:role_permissions;"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Role) TableName() string {
	return "roles"
}

// Permission is a leaf entity. Catalog-derived names follow the
// {action}-{entity-slug} convention.
type Permission struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"column:name;uniqueIndex;not null"`
	CreatedAt time.Time
}

func (Permission) TableName() string {
	return "permissions"
}

// Session is a server-side browser session. Payload carries the JSON-encoded
// session values (CSRF token, flash messages).
type Session struct {
	ID        string `gorm:"primaryKey;column:id"`
	UserID    *int64 `gorm:"column:user_id"`
	Payload   string `gorm:"column:payload;not null"`
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Session) TableName() string {
	return "sessions"
}
