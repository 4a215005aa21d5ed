package accesscontrol_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/accesscontrol"
)

func TestAccessControl(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AccessControl Suite")
}

// mockDirectory is a single in-memory store implementing the user, role and
// permission directories so role/permission edges stay consistent across the
// three interfaces.
type mockDirectory struct {
	nextID int64
	users  map[int64]*accesscontrol.User
	roles  map[string]*accesscontrol.Role
	perms  map[string]*accesscontrol.Permission

	attachRoleError error
	syncError       error
	listPermsError  error
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		nextID: 1,
		users:  make(map[int64]*accesscontrol.User),
		roles:  make(map[string]*accesscontrol.Role),
		perms:  make(map[string]*accesscontrol.Permission),
	}
}

func (m *mockDirectory) addUser(name, email string, roles, directPerms []string) *accesscontrol.User {
	u := &accesscontrol.User{
		ID:                m.nextID,
		Name:              name,
		Email:             email,
		Roles:             roles,
		DirectPermissions: directPerms,
	}
	m.nextID++
	m.users[u.ID] = u
	return u
}

// UserDirectory

func (m *mockDirectory) GetByID(ctx context.Context, id int64) (*accesscontrol.User, error) {
	return m.users[id], nil
}

func (m *mockDirectory) GetByEmail(ctx context.Context, email string) (*accesscontrol.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockDirectory) List(ctx context.Context) ([]*accesscontrol.User, error) {
	users := make([]*accesscontrol.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *mockDirectory) AttachRole(ctx context.Context, userID, roleID int64) error {
	if m.attachRoleError != nil {
		return m.attachRoleError
	}
	u := m.users[userID]
	for _, r := range m.roles {
		if r.ID == roleID {
			u.Roles = append(u.Roles, r.Name)
			return nil
		}
	}
	return errors.New("role not found")
}

func (m *mockDirectory) AttachPermission(ctx context.Context, userID, permissionID int64) error {
	u := m.users[userID]
	for _, p := range m.perms {
		if p.ID == permissionID {
			u.DirectPermissions = append(u.DirectPermissions, p.Name)
			return nil
		}
	}
	return errors.New("permission not found")
}

func (m *mockDirectory) DetachPermission(ctx context.Context, userID, permissionID int64) error {
	u := m.users[userID]
	for _, p := range m.perms {
		if p.ID == permissionID {
			kept := u.DirectPermissions[:0]
			for _, name := range u.DirectPermissions {
				if name != p.Name {
					kept = append(kept, name)
				}
			}
			u.DirectPermissions = kept
			return nil
		}
	}
	return errors.New("permission not found")
}

// RoleDirectory

func (m *mockDirectory) GetByNameRole(ctx context.Context, name string) (*accesscontrol.Role, error) {
	return m.roles[name], nil
}

func (m *mockDirectory) ListRoles(ctx context.Context) ([]*accesscontrol.Role, error) {
	roles := make([]*accesscontrol.Role, 0, len(m.roles))
	for _, r := range m.roles {
		roles = append(roles, r)
	}
	return roles, nil
}

func (m *mockDirectory) CreateRole(ctx context.Context, name string) (*accesscontrol.Role, error) {
	r := &accesscontrol.Role{ID: m.nextID, Name: name}
	m.nextID++
	m.roles[name] = r
	return r, nil
}

func (m *mockDirectory) GetOrCreateRole(ctx context.Context, name string) (*accesscontrol.Role, bool, error) {
	if r, ok := m.roles[name]; ok {
		return r, false, nil
	}
	r, err := m.CreateRole(ctx, name)
	return r, true, err
}

func (m *mockDirectory) SyncPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if m.syncError != nil {
		return m.syncError
	}
	var role *accesscontrol.Role
	for _, r := range m.roles {
		if r.ID == roleID {
			role = r
			break
		}
	}
	if role == nil {
		return errors.New("role not found")
	}
	names := make([]string, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		for _, p := range m.perms {
			if p.ID == id {
				names = append(names, p.Name)
			}
		}
	}
	role.Permissions = names
	return nil
}

// PermissionDirectory

func (m *mockDirectory) GetPermByName(ctx context.Context, name string) (*accesscontrol.Permission, error) {
	return m.perms[name], nil
}

func (m *mockDirectory) ListPerms(ctx context.Context) ([]*accesscontrol.Permission, error) {
	if m.listPermsError != nil {
		return nil, m.listPermsError
	}
	perms := make([]*accesscontrol.Permission, 0, len(m.perms))
	for _, p := range m.perms {
		perms = append(perms, p)
	}
	return perms, nil
}

func (m *mockDirectory) CreatePerm(ctx context.Context, name string) (*accesscontrol.Permission, error) {
	p := &accesscontrol.Permission{ID: m.nextID, Name: name}
	m.nextID++
	m.perms[name] = p
	return p, nil
}

func (m *mockDirectory) GetOrCreatePerm(ctx context.Context, name string) (*accesscontrol.Permission, bool, error) {
	if p, ok := m.perms[name]; ok {
		return p, false, nil
	}
	p, err := m.CreatePerm(ctx, name)
	return p, true, err
}

// interface adapters so one store can satisfy the three directory interfaces
// despite the overlapping method names.

type roleDirAdapter struct{ m *mockDirectory }

func (a roleDirAdapter) GetByName(ctx context.Context, name string) (*accesscontrol.Role, error) {
	return a.m.GetByNameRole(ctx, name)
}
func (a roleDirAdapter) List(ctx context.Context) ([]*accesscontrol.Role, error) {
	return a.m.ListRoles(ctx)
}
func (a roleDirAdapter) Create(ctx context.Context, name string) (*accesscontrol.Role, error) {
	return a.m.CreateRole(ctx, name)
}
func (a roleDirAdapter) GetOrCreate(ctx context.Context, name string) (*accesscontrol.Role, bool, error) {
	return a.m.GetOrCreateRole(ctx, name)
}
func (a roleDirAdapter) SyncPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return a.m.SyncPermissions(ctx, roleID, permissionIDs)
}

type permDirAdapter struct{ m *mockDirectory }

func (a permDirAdapter) GetByName(ctx context.Context, name string) (*accesscontrol.Permission, error) {
	return a.m.GetPermByName(ctx, name)
}
func (a permDirAdapter) List(ctx context.Context) ([]*accesscontrol.Permission, error) {
	return a.m.ListPerms(ctx)
}
func (a permDirAdapter) Create(ctx context.Context, name string) (*accesscontrol.Permission, error) {
	return a.m.CreatePerm(ctx, name)
}
func (a permDirAdapter) GetOrCreate(ctx context.Context, name string) (*accesscontrol.Permission, bool, error) {
	return a.m.GetOrCreatePerm(ctx, name)
}

// mockTxRunner snapshots the store before running fn and restores it when fn
// fails, mirroring a database rollback.
type mockTxRunner struct {
	dir *mockDirectory
}

func (t *mockTxRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	snapshot := t.snapshot()
	if err := fn(ctx); err != nil {
		t.restore(snapshot)
		return err
	}
	return nil
}

func (t *mockTxRunner) snapshot() *mockDirectory {
	clone := newMockDirectory()
	clone.nextID = t.dir.nextID
	for id, u := range t.dir.users {
		cu := *u
		cu.Roles = append([]string(nil), u.Roles...)
		cu.DirectPermissions = append([]string(nil), u.DirectPermissions...)
		clone.users[id] = &cu
	}
	for name, r := range t.dir.roles {
		cr := *r
		cr.Permissions = append([]string(nil), r.Permissions...)
		clone.roles[name] = &cr
	}
	for name, p := range t.dir.perms {
		cp := *p
		clone.perms[name] = &cp
	}
	return clone
}

func (t *mockTxRunner) restore(snapshot *mockDirectory) {
	t.dir.nextID = snapshot.nextID
	t.dir.users = snapshot.users
	t.dir.roles = snapshot.roles
	t.dir.perms = snapshot.perms
}

var _ = Describe("AccessControlService", func() {
	var (
		dir     *mockDirectory
		service *accesscontrol.Service
		ctx     context.Context
	)

	newService := func(entityNames ...string) *accesscontrol.Service {
		return accesscontrol.NewService(
			dir,
			roleDirAdapter{dir},
			permDirAdapter{dir},
			&mockTxRunner{dir: dir},
			accesscontrol.EntitiesFromNames(entityNames),
			nil,
			slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})),
		)
	}

	BeforeEach(func() {
		dir = newMockDirectory()
		ctx = context.Background()
		service = newService("Product", "Vehicle")
	})

	Describe("Bootstrap", func() {
		It("should create baseline roles, the full catalog and sync super-admin", func() {
			report, err := service.Bootstrap(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.EntitiesRegistered).To(Equal(2))
			// 2 entities x 4 actions + 8 role/permission extras
			Expect(report.PermissionsCreated).To(Equal(16))
			Expect(report.RolesCreated).To(Equal(3))
			Expect(report.SuperAdminPermissions).To(Equal(16))

			for _, name := range []string{"super-admin", "admin", "user"} {
				Expect(dir.roles).To(HaveKey(name))
			}
			for _, name := range []string{
				"create-product", "update-product", "view-product", "delete-product",
				"create-vehicle", "update-vehicle", "view-vehicle", "delete-vehicle",
				"create-role", "update-role", "view-role", "delete-role",
				"create-permission", "update-permission", "view-permission", "delete-permission",
			} {
				Expect(dir.perms).To(HaveKey(name))
			}

			superAdmin := dir.roles["super-admin"]
			Expect(superAdmin.Permissions).To(HaveLen(16))
		})

		It("should be idempotent across repeated runs", func() {
			first, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(first.PermissionsCreated).To(Equal(16))

			second, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(second.PermissionsCreated).To(Equal(0))
			Expect(second.RolesCreated).To(Equal(0))
			Expect(dir.perms).To(HaveLen(16))
		})

		It("should warn when no entities are registered", func() {
			service = newService()

			report, err := service.Bootstrap(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Warning).ToNot(BeEmpty())
			// only the role and permission extras
			Expect(report.PermissionsCreated).To(Equal(8))
		})

		It("should pick up manually created permissions into super-admin", func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.CreatePermission(ctx, accesscontrol.CreatePermissionArgs{Name: "export-report"})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())

			Expect(dir.roles["super-admin"].Permissions).To(ContainElement("export-report"))
			Expect(dir.roles["super-admin"].Permissions).To(HaveLen(17))
		})
	})

	Describe("FindUser", func() {
		BeforeEach(func() {
			dir.addUser("Ana", "ana@mail.com", nil, nil)
		})

		It("should resolve a numeric reference as an id", func() {
			u, err := service.FindUser(ctx, "1")
			Expect(err).ToNot(HaveOccurred())
			Expect(u.Email).To(Equal("ana@mail.com"))
		})

		It("should resolve an email case-insensitively", func() {
			u, err := service.FindUser(ctx, "ANA@Mail.Com")
			Expect(err).ToNot(HaveOccurred())
			Expect(u.ID).To(Equal(int64(1)))
		})

		It("should return not found for an unknown reference", func() {
			_, err := service.FindUser(ctx, "nobody@mail.com")
			Expect(err).To(Equal(internal.ErrUserNotFound))

			_, err = service.FindUser(ctx, "999")
			Expect(err).To(Equal(internal.ErrUserNotFound))
		})
	})

	Describe("CreateRole", func() {
		It("should reject a duplicate name and leave the existing role unchanged", func() {
			existing, err := service.CreateRole(ctx, accesscontrol.CreateRoleArgs{Name: "auditor"})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.CreateRole(ctx, accesscontrol.CreateRoleArgs{Name: "auditor"})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeConflict))
			Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicateRole))

			Expect(dir.roles["auditor"].ID).To(Equal(existing.ID))
			Expect(dir.roles["auditor"].Permissions).To(BeEmpty())
		})

		It("should apply an explicit permission selection exactly", func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())

			role, err := service.CreateRole(ctx, accesscontrol.CreateRoleArgs{
				Name:        "auditor",
				Permissions: []string{"view-product", "view-vehicle"},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(role.Permissions).To(ConsistOf("view-product", "view-vehicle"))
		})

		It("should expand the all token to the entire catalog", func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())

			role, err := service.CreateRole(ctx, accesscontrol.CreateRoleArgs{
				Name:        "operator",
				Permissions: []string{"all"},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(role.Permissions).To(HaveLen(16))
		})

		It("should reject an empty name before any mutation", func() {
			_, err := service.CreateRole(ctx, accesscontrol.CreateRoleArgs{Name: "   "})
			Expect(err).To(HaveOccurred())
			Expect(dir.roles).To(BeEmpty())
		})
	})

	Describe("CreatePermission", func() {
		It("should reject a duplicate name", func() {
			_, err := service.CreatePermission(ctx, accesscontrol.CreatePermissionArgs{Name: "view-product"})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.CreatePermission(ctx, accesscontrol.CreatePermissionArgs{Name: "view-product"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicatePermission))
		})
	})

	Describe("AssignRoleToUser", func() {
		BeforeEach(func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should attach a role by user email", func() {
			u := dir.addUser("Ana", "ana@mail.com", nil, nil)

			result, err := service.AssignRoleToUser(ctx, accesscontrol.AssignArgs{
				UserRef: "ana@mail.com",
				Name:    "admin",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Applied).To(BeTrue())
			Expect(dir.users[u.ID].Roles).To(ContainElement("admin"))
		})

		It("should warn when the user already has the role", func() {
			dir.addUser("Ana", "ana@mail.com", []string{"admin"}, nil)

			result, err := service.AssignRoleToUser(ctx, accesscontrol.AssignArgs{
				UserRef: "ana@mail.com",
				Name:    "admin",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Applied).To(BeFalse())
			Expect(result.Message).To(ContainSubstring("already has role"))
		})

		It("should fail when the role does not exist", func() {
			dir.addUser("Ana", "ana@mail.com", nil, nil)

			_, err := service.AssignRoleToUser(ctx, accesscontrol.AssignArgs{
				UserRef: "ana@mail.com",
				Name:    "ghost",
			})

			Expect(err).To(Equal(internal.ErrRoleNotFound))
		})
	})

	Describe("AssignPermissionToUser", func() {
		BeforeEach(func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should grant a direct permission", func() {
			u := dir.addUser("Ana", "ana@mail.com", nil, nil)

			result, err := service.AssignPermissionToUser(ctx, accesscontrol.AssignArgs{
				UserRef: "ana@mail.com",
				Name:    "view-product",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Applied).To(BeTrue())
			Expect(dir.users[u.ID].DirectPermissions).To(ContainElement("view-product"))
		})

		It("should warn when the permission is already held directly", func() {
			dir.addUser("Ana", "ana@mail.com", nil, []string{"view-product"})

			result, err := service.AssignPermissionToUser(ctx, accesscontrol.AssignArgs{
				UserRef: "ana@mail.com",
				Name:    "view-product",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Applied).To(BeFalse())
		})
	})

	Describe("RevokePermissionFromUser", func() {
		BeforeEach(func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should revoke a directly held permission", func() {
			u := dir.addUser("Ana", "ana@mail.com", nil, []string{"view-product"})

			result, err := service.RevokePermissionFromUser(ctx, accesscontrol.AssignArgs{
				UserRef: "ana@mail.com",
				Name:    "view-product",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Applied).To(BeTrue())
			Expect(dir.users[u.ID].DirectPermissions).ToNot(ContainElement("view-product"))
		})

		It("should not touch role-derived permissions", func() {
			err := service.AssignPermissionsToRole(ctx, accesscontrol.SyncRolePermissionsArgs{
				RoleName:    "admin",
				Permissions: []string{"view-product"},
			})
			Expect(err).ToNot(HaveOccurred())

			u := dir.addUser("Ana", "ana@mail.com", []string{"admin"}, nil)

			result, err := service.RevokePermissionFromUser(ctx, accesscontrol.AssignArgs{
				UserRef: "ana@mail.com",
				Name:    "view-product",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Applied).To(BeFalse())
			Expect(result.Message).To(ContainSubstring("nothing to revoke"))

			effective, err := service.EffectivePermissions(ctx, dir.users[u.ID])
			Expect(err).ToNot(HaveOccurred())
			Expect(effective).To(ContainElement("view-product"))
		})
	})

	Describe("AssignPermissionsToRole", func() {
		BeforeEach(func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should replace the permission set rather than merge", func() {
			err := service.AssignPermissionsToRole(ctx, accesscontrol.SyncRolePermissionsArgs{
				RoleName:    "admin",
				Permissions: []string{"view-product", "update-product"},
			})
			Expect(err).ToNot(HaveOccurred())

			err = service.AssignPermissionsToRole(ctx, accesscontrol.SyncRolePermissionsArgs{
				RoleName:    "admin",
				Permissions: []string{"view-vehicle"},
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(dir.roles["admin"].Permissions).To(ConsistOf("view-vehicle"))
		})

		It("should fail before mutation when a permission name is unknown", func() {
			err := service.AssignPermissionsToRole(ctx, accesscontrol.SyncRolePermissionsArgs{
				RoleName:    "admin",
				Permissions: []string{"no-such-permission"},
			})

			Expect(err).To(HaveOccurred())
			Expect(dir.roles["admin"].Permissions).To(BeEmpty())
		})

		It("should wrap storage failures as transaction errors", func() {
			dir.syncError = errors.New("connection reset")

			err := service.AssignPermissionsToRole(ctx, accesscontrol.SyncRolePermissionsArgs{
				RoleName:    "admin",
				Permissions: []string{"view-product"},
			})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeTransactionFailed))
		})
	})

	Describe("PromoteToSuperAdmin", func() {
		It("should create the role, sync it to the full catalog and attach it", func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
			u := dir.addUser("Ana", "ana@mail.com", nil, nil)

			err = service.PromoteToSuperAdmin(ctx, u.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(dir.users[u.ID].Roles).To(ContainElement("super-admin"))
			Expect(dir.roles["super-admin"].Permissions).To(HaveLen(len(dir.perms)))
		})

		It("should keep the super-admin set equal to the catalog after new permissions appear", func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
			u := dir.addUser("Ana", "ana@mail.com", nil, nil)

			_, err = service.CreatePermission(ctx, accesscontrol.CreatePermissionArgs{Name: "export-report"})
			Expect(err).ToNot(HaveOccurred())

			err = service.PromoteToSuperAdmin(ctx, u.ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(dir.roles["super-admin"].Permissions).To(HaveLen(17))
			Expect(dir.roles["super-admin"].Permissions).To(ContainElement("export-report"))
		})

		It("should leave no partial effect when the permission sync fails", func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())
			u := dir.addUser("Ana", "ana@mail.com", nil, nil)

			before := append([]string(nil), dir.roles["super-admin"].Permissions...)
			dir.syncError = errors.New("disk full")

			err = service.PromoteToSuperAdmin(ctx, u.ID)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeTransactionFailed))
			Expect(dir.users[u.ID].Roles).ToNot(ContainElement("super-admin"))
			Expect(dir.roles["super-admin"].Permissions).To(Equal(before))
		})

		It("should roll back a newly created role when attachment fails", func() {
			u := dir.addUser("Ana", "ana@mail.com", nil, nil)
			dir.attachRoleError = errors.New("constraint violation")

			err := service.PromoteToSuperAdmin(ctx, u.ID)

			Expect(err).To(HaveOccurred())
			Expect(dir.users[u.ID].Roles).To(BeEmpty())
			Expect(dir.roles).ToNot(HaveKey("super-admin"))
		})

		It("should surface not found for an unknown user", func() {
			err := service.PromoteToSuperAdmin(ctx, 404)
			Expect(err).To(Equal(internal.ErrUserNotFound))
		})
	})

	Describe("EffectivePermissions", func() {
		It("should union direct and role-derived permissions without duplicates", func() {
			_, err := service.Bootstrap(ctx)
			Expect(err).ToNot(HaveOccurred())

			err = service.AssignPermissionsToRole(ctx, accesscontrol.SyncRolePermissionsArgs{
				RoleName:    "admin",
				Permissions: []string{"view-product", "view-vehicle"},
			})
			Expect(err).ToNot(HaveOccurred())

			u := dir.addUser("Ana", "ana@mail.com", []string{"admin"}, []string{"view-product", "delete-product"})

			effective, err := service.EffectivePermissions(ctx, u)

			Expect(err).ToNot(HaveOccurred())
			Expect(effective).To(ConsistOf("delete-product", "view-product", "view-vehicle"))
		})
	})
})
