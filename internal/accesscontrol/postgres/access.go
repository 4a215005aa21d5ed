package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/access-management/internal/accesscontrol"
	accessDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/access"
	"gorm.io/gorm"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// TransactionManager runs workflow steps inside one gorm transaction by
// injecting the tx handle into the context; every directory built on GetDB
// picks it up.
type TransactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

func (t *TransactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey, tx)
		return fn(txCtx)
	})
}

// GetDB returns the transaction handle from ctx if one is active, otherwise
// the root connection.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

// UserDirectory implements accesscontrol.UserDirectory over the users table
// and its role/permission join tables.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) GetByID(ctx context.Context, id int64) (*accesscontrol.User, error) {
	var row accessDatamodel.User
	err := GetDB(ctx, d.db).Preload("Roles").Preload("Permissions").First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainUser(&row), nil
}

func (d *UserDirectory) GetByEmail(ctx context.Context, email string) (*accesscontrol.User, error) {
	var row accessDatamodel.User
	err := GetDB(ctx, d.db).Preload("Roles").Preload("Permissions").
		Where("lower(email) = lower(?)", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainUser(&row), nil
}

func (d *UserDirectory) List(ctx context.Context) ([]*accesscontrol.User, error) {
	var rows []accessDatamodel.User
	err := GetDB(ctx, d.db).Preload("Roles").Preload("Permissions").Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	users := make([]*accesscontrol.User, 0, len(rows))
	for i := range rows {
		users = append(users, toDomainUser(&rows[i]))
	}
	return users, nil
}

func (d *UserDirectory) AttachRole(ctx context.Context, userID, roleID int64) error {
	user := accessDatamodel.User{ID: userID}
	role := accessDatamodel.Role{ID: roleID}
	return GetDB(ctx, d.db).Model(&user).Association("Roles").Append(&role)
}

func (d *UserDirectory) AttachPermission(ctx context.Context, userID, permissionID int64) error {
	user := accessDatamodel.User{ID: userID}
	perm := accessDatamodel.Permission{ID: permissionID}
	return GetDB(ctx, d.db).Model(&user).Association("Permissions").Append(&perm)
}

func (d *UserDirectory) DetachPermission(ctx context.Context, userID, permissionID int64) error {
	user := accessDatamodel.User{ID: userID}
	perm := accessDatamodel.Permission{ID: permissionID}
	return GetDB(ctx, d.db).Model(&user).Association("Permissions").Delete(&perm)
}

// RoleDirectory implements accesscontrol.RoleDirectory. SyncPermissions uses
// association Replace so the role ends up with exactly the given set.
type RoleDirectory struct {
	db *gorm.DB
}

func NewRoleDirectory(db *gorm.DB) *RoleDirectory {
	return &RoleDirectory{db: db}
}

func (d *RoleDirectory) GetByName(ctx context.Context, name string) (*accesscontrol.Role, error) {
	var row accessDatamodel.Role
	err := GetDB(ctx, d.db).Preload("Permissions").Where("name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainRole(&row), nil
}

func (d *RoleDirectory) List(ctx context.Context) ([]*accesscontrol.Role, error) {
	var rows []accessDatamodel.Role
	err := GetDB(ctx, d.db).Preload("Permissions").Order("name ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	roles := make([]*accesscontrol.Role, 0, len(rows))
	for i := range rows {
		roles = append(roles, toDomainRole(&rows[i]))
	}
	return roles, nil
}

func (d *RoleDirectory) Create(ctx context.Context, name string) (*accesscontrol.Role, error) {
	row := accessDatamodel.Role{Name: name}
	if err := GetDB(ctx, d.db).Create(&row).Error; err != nil {
		return nil, err
	}
	return toDomainRole(&row), nil
}

func (d *RoleDirectory) GetOrCreate(ctx context.Context, name string) (*accesscontrol.Role, bool, error) {
	existing, err := d.GetByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	created, err := d.Create(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (d *RoleDirectory) SyncPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	db := GetDB(ctx, d.db)

	var role accessDatamodel.Role
	if err := db.First(&role, "id = ?", roleID).Error; err != nil {
		return err
	}

	perms := []accessDatamodel.Permission{}
	if len(permissionIDs) > 0 {
		if err := db.Where("id IN ?", permissionIDs).Find(&perms).Error; err != nil {
			return err
		}
	}

	return db.Model(&role).Association("Permissions").Replace(perms)
}

// PermissionDirectory implements accesscontrol.PermissionDirectory.
type PermissionDirectory struct {
	db *gorm.DB
}

func NewPermissionDirectory(db *gorm.DB) *PermissionDirectory {
	return &PermissionDirectory{db: db}
}

func (d *PermissionDirectory) GetByName(ctx context.Context, name string) (*accesscontrol.Permission, error) {
	var row accessDatamodel.Permission
	err := GetDB(ctx, d.db).Where("name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &accesscontrol.Permission{ID: row.ID, Name: row.Name}, nil
}

func (d *PermissionDirectory) List(ctx context.Context) ([]*accesscontrol.Permission, error) {
	var rows []accessDatamodel.Permission
	err := GetDB(ctx, d.db).Order("name ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	perms := make([]*accesscontrol.Permission, 0, len(rows))
	for _, row := range rows {
		perms = append(perms, &accesscontrol.Permission{ID: row.ID, Name: row.Name})
	}
	return perms, nil
}

func (d *PermissionDirectory) Create(ctx context.Context, name string) (*accesscontrol.Permission, error) {
	row := accessDatamodel.Permission{Name: name}
	if err := GetDB(ctx, d.db).Create(&row).Error; err != nil {
		return nil, err
	}
	return &accesscontrol.Permission{ID: row.ID, Name: row.Name}, nil
}

func (d *PermissionDirectory) GetOrCreate(ctx context.Context, name string) (*accesscontrol.Permission, bool, error) {
	existing, err := d.GetByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	created, err := d.Create(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func toDomainUser(row *accessDatamodel.User) *accesscontrol.User {
	roles := make([]string, 0, len(row.Roles))
	for _, r := range row.Roles {
		roles = append(roles, r.Name)
	}
	perms := make([]string, 0, len(row.Permissions))
	for _, p := range row.Permissions {
		perms = append(perms, p.Name)
	}
	return &accesscontrol.User{
		ID:                row.ID,
		Name:              row.Name,
		Email:             row.Email,
		IsBanned:          row.IsBanned,
		Roles:             roles,
		DirectPermissions: perms,
		CreatedAt:         row.CreatedAt,
	}
}

func toDomainRole(row *accessDatamodel.Role) *accesscontrol.Role {
	perms := make([]string, 0, len(row.Permissions))
	for _, p := range row.Permissions {
		perms = append(perms, p.Name)
	}
	return &accesscontrol.Role{
		ID:          row.ID,
		Name:        row.Name,
		Permissions: perms,
	}
}
