package postgres

import (
	"database/sql"
	"fmt"

	"github.com/frahmantamala/access-management/internal/auth"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(email string) (string, int64, bool, error) {
	var passwordHash string
	var userID int64
	var banned bool
	query := `SELECT id, password_hash, is_banned FROM users WHERE lower(email) = lower(?)`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&userID, &passwordHash, &banned); err != nil {
		if err == sql.ErrNoRows {
			return "", 0, false, fmt.Errorf("user not found")
		}
		return "", 0, false, err
	}
	return passwordHash, userID, banned, nil
}

// GetUserWithPermissions resolves the principal with its effective permission
// set: direct grants unioned with permissions of every assigned role.
func (r *Repository) GetUserWithPermissions(userID int64) (*auth.User, error) {
	var user auth.User

	query := `SELECT id, email, is_banned FROM users WHERE id = ?`
	row := r.db.Raw(query, userID).Row()
	if err := row.Scan(&user.ID, &user.Email, &user.Banned); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}

	roleQuery := `SELECT r.name
	             FROM roles r
	             JOIN user_roles ur ON r.id = ur.role_id
	             WHERE ur.user_id = ?`

	roleRows, err := r.db.Raw(roleQuery, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var roleName string
		if err := roleRows.Scan(&roleName); err != nil {
			return nil, err
		}
		user.Roles = append(user.Roles, roleName)
	}

	permQuery := `SELECT p.name
	             FROM permissions p
	             JOIN user_permissions up ON p.id = up.permission_id
	             WHERE up.user_id = ?
	             UNION
	             SELECT p.name
	             FROM permissions p
	             JOIN role_permissions rp ON p.id = rp.permission_id
	             JOIN user_roles ur ON rp.role_id = ur.role_id
	             WHERE ur.user_id = ?`

	rows, err := r.db.Raw(permQuery, userID, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var permName string
		if err := rows.Scan(&permName); err != nil {
			return nil, err
		}
		user.Permissions = append(user.Permissions, permName)
	}

	return &user, nil
}
