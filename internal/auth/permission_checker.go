package auth

import "context"

// catalog permission names follow the {action}-{entity-slug} convention.
const (
	PermViewUser         = "view-user"
	PermCreateUser       = "create-user"
	PermUpdateUser       = "update-user"
	PermDeleteUser       = "delete-user"
	PermViewRole         = "view-role"
	PermCreateRole       = "create-role"
	PermUpdateRole       = "update-role"
	PermViewPermission   = "view-permission"
	PermCreatePermission = "create-permission"
	PermUpdatePermission = "update-permission"
)

type PermissionChecker interface {
	HasPermission(ctx context.Context, userPermissions []string, permission string) (bool, error)
	HasAnyPermission(userPermissions []string, requiredPermissions []string) bool
	CanManageUsers(userPermissions []string) bool
	CanManageRoles(userPermissions []string) bool
	CanManagePermissions(userPermissions []string) bool
}

type DefaultPermissionChecker struct{}

func NewPermissionChecker() PermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) HasPermission(ctx context.Context, userPermissions []string, permission string) (bool, error) {
	return c.HasAnyPermission(userPermissions, []string{permission}), nil
}

func (c *DefaultPermissionChecker) HasAnyPermission(userPermissions []string, requiredPermissions []string) bool {
	for _, userPerm := range userPermissions {
		for _, requiredPerm := range requiredPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

func (c *DefaultPermissionChecker) CanManageUsers(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermCreateUser, PermUpdateUser, PermDeleteUser})
}

func (c *DefaultPermissionChecker) CanManageRoles(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermCreateRole, PermUpdateRole})
}

func (c *DefaultPermissionChecker) CanManagePermissions(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermCreatePermission, PermUpdatePermission})
}
