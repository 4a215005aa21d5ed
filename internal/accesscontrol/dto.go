package accesscontrol

import (
	"strings"

	"github.com/frahmantamala/access-management/internal"
)

const maxNameLength = 255

// CreateRoleArgs carries a fully-populated create-role request. The
// permission selection may contain the "all" token.
type CreateRoleArgs struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

func (a CreateRoleArgs) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeInvalidName)
	}
	if len(a.Name) > maxNameLength {
		return internal.NewValidationFieldError("name", "name is too long", internal.ErrCodeInvalidName)
	}
	return nil
}

type CreatePermissionArgs struct {
	Name string `json:"name"`
}

func (a CreatePermissionArgs) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeInvalidName)
	}
	if len(a.Name) > maxNameLength {
		return internal.NewValidationFieldError("name", "name is too long", internal.ErrCodeInvalidName)
	}
	return nil
}

// AssignArgs references a user by numeric id or email plus a role or
// permission name.
type AssignArgs struct {
	UserRef string `json:"user"`
	Name    string `json:"name"`
}

func (a AssignArgs) Validate() error {
	if strings.TrimSpace(a.UserRef) == "" {
		return internal.NewValidationFieldError("user", "user id or email is required", internal.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(a.Name) == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeInvalidName)
	}
	return nil
}

type SyncRolePermissionsArgs struct {
	RoleName    string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (a SyncRolePermissionsArgs) Validate() error {
	if strings.TrimSpace(a.RoleName) == "" {
		return internal.NewValidationFieldError("role", "role name is required", internal.ErrCodeInvalidName)
	}
	return nil
}
