package accesscontrol

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/events"
)

// EventPublisher receives access-change events for the audit trail. May be
// nil; publishing is best-effort and never fails a workflow.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service orchestrates the access assignment workflow over injected
// directories. Multi-step mutations (promote, permission sync) run inside a
// single transaction via tx.
type Service struct {
	users       UserDirectory
	roles       RoleDirectory
	permissions PermissionDirectory
	tx          TransactionRunner
	entities    []EntityDescriptor
	publisher   EventPublisher
	logger      *slog.Logger
}

func NewService(
	users UserDirectory,
	roles RoleDirectory,
	permissions PermissionDirectory,
	tx TransactionRunner,
	entities []EntityDescriptor,
	publisher EventPublisher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:       users,
		roles:       roles,
		permissions: permissions,
		tx:          tx,
		entities:    entities,
		publisher:   publisher,
		logger:      logger,
	}
}

// FindUser resolves a user by numeric id or email. A purely-numeric reference
// is treated as an id; emails are matched case-insensitively. An all-digit
// email therefore cannot be looked up by this path.
func (s *Service) FindUser(ctx context.Context, ref string) (*User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, internal.ErrUserNotFound
	}

	if isNumeric(ref) {
		var id int64
		if _, err := fmt.Sscanf(ref, "%d", &id); err != nil {
			return nil, internal.ErrUserNotFound
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, internal.ErrUserNotFound
		}
		return u, nil
	}

	u, err := s.users.GetByEmail(ctx, strings.ToLower(ref))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

// ListUsers returns all users with their roles and direct permissions.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx)
}

// ListRoles returns all roles with their permission names.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

// CatalogNames derives the full permission namespace from the registered
// entities without touching storage.
func (s *Service) CatalogNames() []string {
	return CatalogNames(s.entities)
}

// CreateRole rejects duplicate names before insert so the caller gets a clean
// conflict message instead of a constraint violation. A non-empty permission
// selection is applied with replace-set semantics after creation.
func (s *Service) CreateRole(ctx context.Context, args CreateRoleArgs) (*Role, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(args.Name)
	existing, err := s.roles.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, internal.NewConflictError(
			fmt.Sprintf("role %q already exists", name), internal.ErrCodeDuplicateRole)
	}

	role, err := s.roles.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role created", "role", name)

	if len(args.Permissions) > 0 {
		if err := s.AssignPermissionsToRole(ctx, SyncRolePermissionsArgs{
			RoleName:    name,
			Permissions: args.Permissions,
		}); err != nil {
			return nil, err
		}
		return s.roles.GetByName(ctx, name)
	}

	return role, nil
}

// CreatePermission mirrors CreateRole for the permission entity.
func (s *Service) CreatePermission(ctx context.Context, args CreatePermissionArgs) (*Permission, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(args.Name)
	existing, err := s.permissions.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, internal.NewConflictError(
			fmt.Sprintf("permission %q already exists", name), internal.ErrCodeDuplicatePermission)
	}

	perm, err := s.permissions.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("permission created", "permission", name)
	return perm, nil
}

// AssignRoleToUser attaches a role additively. Assigning a role the user
// already has is a warning, not an error.
func (s *Service) AssignRoleToUser(ctx context.Context, args AssignArgs) (*AssignmentResult, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	user, err := s.FindUser(ctx, args.UserRef)
	if err != nil {
		return nil, err
	}

	role, err := s.roles.GetByName(ctx, args.Name)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, internal.ErrRoleNotFound
	}

	if user.HasRole(role.Name) {
		return &AssignmentResult{
			Applied: false,
			Message: fmt.Sprintf("user %s already has role %q", user.Email, role.Name),
		}, nil
	}

	if err := s.users.AttachRole(ctx, user.ID, role.ID); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewRoleAssignedEvent(user.ID, role.Name))
	s.logger.Info("role assigned", "user_id", user.ID, "role", role.Name)
	return &AssignmentResult{
		Applied: true,
		Message: fmt.Sprintf("role %q assigned to %s", role.Name, user.Email),
	}, nil
}

// AssignPermissionToUser grants a direct permission, bypassing roles.
func (s *Service) AssignPermissionToUser(ctx context.Context, args AssignArgs) (*AssignmentResult, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	user, err := s.FindUser(ctx, args.UserRef)
	if err != nil {
		return nil, err
	}

	perm, err := s.permissions.GetByName(ctx, args.Name)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, internal.ErrPermissionNotFound
	}

	if user.HasDirectPermission(perm.Name) {
		return &AssignmentResult{
			Applied: false,
			Message: fmt.Sprintf("user %s already has permission %q", user.Email, perm.Name),
		}, nil
	}

	if err := s.users.AttachPermission(ctx, user.ID, perm.ID); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewPermissionGrantedEvent(user.ID, perm.Name))
	s.logger.Info("permission granted", "user_id", user.ID, "permission", perm.Name)
	return &AssignmentResult{
		Applied: true,
		Message: fmt.Sprintf("permission %q granted to %s", perm.Name, user.Email),
	}, nil
}

// RevokePermissionFromUser operates only on the direct permission set.
// Role-derived permissions are not revocable through this path; revoking one
// the user only holds via a role reports nothing to revoke and leaves the
// effective set unchanged.
func (s *Service) RevokePermissionFromUser(ctx context.Context, args AssignArgs) (*AssignmentResult, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	user, err := s.FindUser(ctx, args.UserRef)
	if err != nil {
		return nil, err
	}

	perm, err := s.permissions.GetByName(ctx, args.Name)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, internal.ErrPermissionNotFound
	}

	if len(user.DirectPermissions) == 0 || !user.HasDirectPermission(perm.Name) {
		return &AssignmentResult{
			Applied: false,
			Message: fmt.Sprintf("user %s holds no direct permission %q; nothing to revoke", user.Email, perm.Name),
		}, nil
	}

	if err := s.users.DetachPermission(ctx, user.ID, perm.ID); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewPermissionRevokedEvent(user.ID, perm.Name))
	s.logger.Info("permission revoked", "user_id", user.ID, "permission", perm.Name)
	return &AssignmentResult{
		Applied: true,
		Message: fmt.Sprintf("permission %q revoked from %s", perm.Name, user.Email),
	}, nil
}

// AssignPermissionsToRole replaces the role's permission set with exactly the
// selection. The "all" token swaps in the entire persisted catalog. The sync
// runs in one transaction so readers never observe a half-replaced set.
func (s *Service) AssignPermissionsToRole(ctx context.Context, args SyncRolePermissionsArgs) error {
	if err := args.Validate(); err != nil {
		return err
	}

	role, err := s.roles.GetByName(ctx, args.RoleName)
	if err != nil {
		return err
	}
	if role == nil {
		return internal.ErrRoleNotFound
	}

	var permIDs []int64
	if containsToken(args.Permissions, AllPermissionsToken) {
		all, err := s.permissions.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range all {
			permIDs = append(permIDs, p.ID)
		}
	} else {
		for _, name := range args.Permissions {
			perm, err := s.permissions.GetByName(ctx, name)
			if err != nil {
				return err
			}
			if perm == nil {
				return internal.NewNotFoundError(
					fmt.Sprintf("permission %q not found", name), internal.ErrCodePermissionNotFound)
			}
			permIDs = append(permIDs, perm.ID)
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.roles.SyncPermissions(txCtx, role.ID, permIDs)
	})
	if err != nil {
		return internal.NewTransactionError(
			fmt.Sprintf("failed to sync permissions for role %q", role.Name), err)
	}

	s.logger.Info("role permissions synced", "role", role.Name, "count", len(permIDs))
	return nil
}

// PromoteToSuperAdmin runs the three promotion steps in one transaction:
// get-or-create the super-admin role, replace its permission set with the
// complete current catalog, and attach the role to the user. Any failure
// rolls the whole operation back.
func (s *Service) PromoteToSuperAdmin(ctx context.Context, userID int64) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return internal.ErrUserNotFound
		}

		role, _, err := s.roles.GetOrCreate(txCtx, RoleSuperAdmin)
		if err != nil {
			return err
		}

		if err := s.syncRoleToFullCatalog(txCtx, role); err != nil {
			return err
		}

		if !user.HasRole(RoleSuperAdmin) {
			if err := s.users.AttachRole(txCtx, user.ID, role.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok && appErr.Type == internal.ErrorTypeNotFound {
			return err
		}
		return internal.NewTransactionError("promote to super-admin failed", err)
	}

	s.publish(ctx, events.NewUserPromotedEvent(userID, RoleSuperAdmin))
	s.logger.Info("user promoted to super-admin", "user_id", userID)
	return nil
}

// Bootstrap ensures baseline roles, derives the catalog from the registered
// entities (create-if-absent, never deletes), and re-syncs super-admin so new
// permissions flow to it without a second action. Zero registered entities is
// a warning: only the role/permission extras are created.
func (s *Service) Bootstrap(ctx context.Context) (*BootstrapReport, error) {
	report := &BootstrapReport{EntitiesRegistered: len(s.entities)}

	created, err := s.EnsureBaselineRoles(ctx)
	if err != nil {
		return nil, err
	}
	report.RolesCreated = created

	if len(s.entities) == 0 {
		report.Warning = "no entities registered; creating only role and permission extras"
		s.logger.Warn("bootstrap found no registered entities")
	}

	for _, name := range CatalogNames(s.entities) {
		_, created, err := s.permissions.GetOrCreate(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("ensure permission %q: %w", name, err)
		}
		if created {
			report.PermissionsCreated++
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		role, _, err := s.roles.GetOrCreate(txCtx, RoleSuperAdmin)
		if err != nil {
			return err
		}
		return s.syncRoleToFullCatalog(txCtx, role)
	})
	if err != nil {
		return nil, internal.NewTransactionError("super-admin permission sync failed", err)
	}

	synced, err := s.roles.GetByName(ctx, RoleSuperAdmin)
	if err == nil && synced != nil {
		report.SuperAdminPermissions = len(synced.Permissions)
	}

	s.logger.Info("bootstrap complete",
		"entities", report.EntitiesRegistered,
		"permissions_created", report.PermissionsCreated,
		"roles_created", report.RolesCreated)
	return report, nil
}

// EnsureBaselineRoles creates any missing built-in roles and returns how many
// were created. Existing roles are left untouched.
func (s *Service) EnsureBaselineRoles(ctx context.Context) (int, error) {
	created := 0
	for _, name := range BaselineRoles() {
		_, isNew, err := s.roles.GetOrCreate(ctx, name)
		if err != nil {
			return created, fmt.Errorf("ensure baseline role %q: %w", name, err)
		}
		if isNew {
			created++
		}
	}
	return created, nil
}

// PermissionsViaRoles is the union of permissions from all of the user's
// roles, deduplicated and sorted.
func (s *Service) PermissionsViaRoles(ctx context.Context, user *User) ([]string, error) {
	var lists [][]string
	for _, roleName := range user.Roles {
		role, err := s.roles.GetByName(ctx, roleName)
		if err != nil {
			return nil, err
		}
		if role == nil {
			continue
		}
		lists = append(lists, role.Permissions)
	}
	return union(lists...), nil
}

// EffectivePermissions is the union of direct and role-derived permissions.
func (s *Service) EffectivePermissions(ctx context.Context, user *User) ([]string, error) {
	viaRoles, err := s.PermissionsViaRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	return union(viaRoles, user.DirectPermissions), nil
}

func (s *Service) syncRoleToFullCatalog(ctx context.Context, role *Role) error {
	all, err := s.permissions.List(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	return s.roles.SyncPermissions(ctx, role.ID, ids)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish access event", "event_type", event.EventType(), "error", err)
	}
}

func containsToken(selection []string, token string) bool {
	for _, s := range selection {
		if strings.EqualFold(strings.TrimSpace(s), token) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
