package postgres_test

import (
	"context"
	"errors"
	"testing"

	accessPostgres "github.com/frahmantamala/access-management/internal/accesscontrol/postgres"
	accessDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/access"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAccessPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Access Postgres Suite")
}

var _ = Describe("Access Directories", func() {
	var (
		db    *gorm.DB
		users *accessPostgres.UserDirectory
		roles *accessPostgres.RoleDirectory
		perms *accessPostgres.PermissionDirectory
		txm   *accessPostgres.TransactionManager
		ctx   context.Context
	)

	seedUser := func(name, email string) *accessDatamodel.User {
		row := &accessDatamodel.User{Name: name, Email: email, PasswordHash: "x"}
		Expect(db.Create(row).Error).NotTo(HaveOccurred())
		return row
	}

	BeforeEach(func() {
		var err error
		// Use SQLite in-memory database for testing
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&accessDatamodel.User{},
			&accessDatamodel.Role{},
			&accessDatamodel.Permission{},
		)
		Expect(err).NotTo(HaveOccurred())

		users = accessPostgres.NewUserDirectory(db)
		roles = accessPostgres.NewRoleDirectory(db)
		perms = accessPostgres.NewPermissionDirectory(db)
		txm = accessPostgres.NewTransactionManager(db)
		ctx = context.Background()
	})

	Describe("UserDirectory", func() {
		It("should load a user with role and permission names", func() {
			row := seedUser("Ana", "ana@mail.com")
			role, err := roles.Create(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			perm, err := perms.Create(ctx, "view-product")
			Expect(err).NotTo(HaveOccurred())

			Expect(users.AttachRole(ctx, row.ID, role.ID)).To(Succeed())
			Expect(users.AttachPermission(ctx, row.ID, perm.ID)).To(Succeed())

			u, err := users.GetByID(ctx, row.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Roles).To(ConsistOf("admin"))
			Expect(u.DirectPermissions).To(ConsistOf("view-product"))
		})

		It("should match emails case-insensitively", func() {
			seedUser("Ana", "Ana@Mail.com")

			u, err := users.GetByEmail(ctx, "ana@mail.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(u).NotTo(BeNil())
		})

		It("should return nil without error for a missing user", func() {
			u, err := users.GetByID(ctx, 404)
			Expect(err).NotTo(HaveOccurred())
			Expect(u).To(BeNil())
		})

		It("should detach only the named permission", func() {
			row := seedUser("Ana", "ana@mail.com")
			p1, err := perms.Create(ctx, "view-product")
			Expect(err).NotTo(HaveOccurred())
			p2, err := perms.Create(ctx, "update-product")
			Expect(err).NotTo(HaveOccurred())
			Expect(users.AttachPermission(ctx, row.ID, p1.ID)).To(Succeed())
			Expect(users.AttachPermission(ctx, row.ID, p2.ID)).To(Succeed())

			Expect(users.DetachPermission(ctx, row.ID, p1.ID)).To(Succeed())

			u, err := users.GetByID(ctx, row.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.DirectPermissions).To(ConsistOf("update-product"))
		})
	})

	Describe("RoleDirectory", func() {
		It("should report whether GetOrCreate created the role", func() {
			role, created, err := roles.GetOrCreate(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			again, created, err := roles.GetOrCreate(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(again.ID).To(Equal(role.ID))
		})

		It("should replace the permission set on sync", func() {
			role, err := roles.Create(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			p1, err := perms.Create(ctx, "view-product")
			Expect(err).NotTo(HaveOccurred())
			p2, err := perms.Create(ctx, "update-product")
			Expect(err).NotTo(HaveOccurred())
			p3, err := perms.Create(ctx, "delete-product")
			Expect(err).NotTo(HaveOccurred())

			Expect(roles.SyncPermissions(ctx, role.ID, []int64{p1.ID, p2.ID})).To(Succeed())
			Expect(roles.SyncPermissions(ctx, role.ID, []int64{p3.ID})).To(Succeed())

			synced, err := roles.GetByName(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(synced.Permissions).To(ConsistOf("delete-product"))
		})

		It("should clear the permission set when synced to empty", func() {
			role, err := roles.Create(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			p1, err := perms.Create(ctx, "view-product")
			Expect(err).NotTo(HaveOccurred())
			Expect(roles.SyncPermissions(ctx, role.ID, []int64{p1.ID})).To(Succeed())

			Expect(roles.SyncPermissions(ctx, role.ID, nil)).To(Succeed())

			synced, err := roles.GetByName(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(synced.Permissions).To(BeEmpty())
		})

		It("should enforce unique role names", func() {
			_, err := roles.Create(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())

			_, err = roles.Create(ctx, "admin")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("PermissionDirectory", func() {
		It("should list permissions ordered by name", func() {
			for _, name := range []string{"view-product", "create-product", "delete-product"} {
				_, err := perms.Create(ctx, name)
				Expect(err).NotTo(HaveOccurred())
			}

			all, err := perms.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].Name).To(Equal("create-product"))
			Expect(all[2].Name).To(Equal("view-product"))
		})

		It("should return nil without error for a missing name", func() {
			p, err := perms.GetByName(ctx, "ghost")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(BeNil())
		})
	})

	Describe("TransactionManager", func() {
		It("should commit directory writes made inside the transaction", func() {
			err := txm.RunInTx(ctx, func(txCtx context.Context) error {
				if _, err := roles.Create(txCtx, "admin"); err != nil {
					return err
				}
				_, err := perms.Create(txCtx, "view-product")
				return err
			})
			Expect(err).NotTo(HaveOccurred())

			role, err := roles.GetByName(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(role).NotTo(BeNil())
		})

		It("should roll back every write when the callback fails", func() {
			row := seedUser("Ana", "ana@mail.com")

			err := txm.RunInTx(ctx, func(txCtx context.Context) error {
				role, err := roles.Create(txCtx, "super-admin")
				if err != nil {
					return err
				}
				if err := users.AttachRole(txCtx, row.ID, role.ID); err != nil {
					return err
				}
				return errors.New("simulated failure")
			})
			Expect(err).To(MatchError("simulated failure"))

			role, err := roles.GetByName(ctx, "super-admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(role).To(BeNil())

			u, err := users.GetByID(ctx, row.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Roles).To(BeEmpty())
		})
	})
})
