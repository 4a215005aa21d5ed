package accesscontrol

import (
	"context"
	"sort"
	"time"
)

// Baseline roles guaranteed to exist after bootstrap. RoleSuperAdmin is
// special: its permission set must equal the full catalog after any bootstrap
// or promotion.
const (
	RoleSuperAdmin = "super-admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// AllPermissionsToken in a role permission selection replaces the role's set
// with the entire catalog.
const AllPermissionsToken = "all"

func BaselineRoles() []string {
	return []string{RoleSuperAdmin, RoleAdmin, RoleUser}
}

// User is the access-control view of an account: its role names and direct
// (role-independent) permission names.
type User struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	IsBanned          bool      `json:"is_banned"`
	Roles             []string  `json:"roles"`
	DirectPermissions []string  `json:"direct_permissions"`
	CreatedAt         time.Time `json:"created_at"`
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

func (u *User) HasDirectPermission(name string) bool {
	for _, p := range u.DirectPermissions {
		if p == name {
			return true
		}
	}
	return false
}

type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (r *Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

type Permission struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserDirectory is the account store the workflow mutates role and permission
// edges through. Lookups return (nil, nil) when the user does not exist.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	AttachRole(ctx context.Context, userID, roleID int64) error
	AttachPermission(ctx context.Context, userID, permissionID int64) error
	DetachPermission(ctx context.Context, userID, permissionID int64) error
}

// RoleDirectory stores named roles and their permission sets.
// SyncPermissions is replace-set: the role ends up with exactly the given
// permissions, extraneous edges removed.
type RoleDirectory interface {
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Create(ctx context.Context, name string) (*Role, error)
	GetOrCreate(ctx context.Context, name string) (*Role, bool, error)
	SyncPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// PermissionDirectory stores the permission catalog.
type PermissionDirectory interface {
	GetByName(ctx context.Context, name string) (*Permission, error)
	List(ctx context.Context) ([]*Permission, error)
	Create(ctx context.Context, name string) (*Permission, error)
	GetOrCreate(ctx context.Context, name string) (*Permission, bool, error)
}

// TransactionRunner executes fn atomically: every directory call made with
// txCtx commits or rolls back as one unit.
type TransactionRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// AssignmentResult reports the outcome of an edge mutation. Applied is false
// for the idempotent no-op cases (already granted, nothing to revoke), which
// are warnings rather than errors.
type AssignmentResult struct {
	Applied bool   `json:"applied"`
	Message string `json:"message"`
}

// BootstrapReport summarizes a catalog bootstrap run.
type BootstrapReport struct {
	EntitiesRegistered    int    `json:"entities_registered"`
	PermissionsCreated    int    `json:"permissions_created"`
	RolesCreated          int    `json:"roles_created"`
	SuperAdminPermissions int    `json:"super_admin_permissions"`
	Warning               string `json:"warning,omitempty"`
}

// union merges permission name lists, deduplicated and sorted.
func union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, name := range list {
			seen[name] = struct{}{}
		}
	}
	merged := make([]string, 0, len(seen))
	for name := range seen {
		merged = append(merged, name)
	}
	sort.Strings(merged)
	return merged
}
