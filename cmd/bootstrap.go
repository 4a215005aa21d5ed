package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/accesscontrol"
	accessPostgres "github.com/frahmantamala/access-management/internal/accesscontrol/postgres"
	"github.com/frahmantamala/access-management/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	adminEmail    string
	adminPassword string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create baseline roles and the permission catalog",
	Long: `Idempotently create the baseline roles, derive the permission catalog
from the registered entities and sync the super-admin role to the full
catalog. Optionally seed an initial super-admin account.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		gormDB, err := initGormDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		logger.Init("development")
		svc := newAccessService(cfg, gormDB, logger.LoggerWrapper())

		ctx := context.Background()
		report, err := svc.Bootstrap(ctx)
		if err != nil {
			log.Fatalf("bootstrap failed: %v", err)
		}

		fmt.Printf("entities registered:     %d\n", report.EntitiesRegistered)
		fmt.Printf("permissions created:     %d\n", report.PermissionsCreated)
		fmt.Printf("roles created:           %d\n", report.RolesCreated)
		fmt.Printf("super-admin permissions: %d\n", report.SuperAdminPermissions)
		if report.Warning != "" {
			fmt.Println("warning:", report.Warning)
		}

		if adminEmail != "" {
			if err := seedSuperAdmin(ctx, gormDB, svc, cfg, adminEmail, adminPassword); err != nil {
				log.Fatalf("failed to seed super admin: %v", err)
			}
			fmt.Println("Seeded super-admin user:", adminEmail)
		}
	},
}

func init() {
	bootstrapCmd.Flags().StringVar(&adminEmail, "admin-email", "", "seed an initial super-admin account with this email")
	bootstrapCmd.Flags().StringVar(&adminPassword, "admin-password", "password", "password for the seeded super-admin account")
}

func newAccessService(cfg *internal.Config, gormDB *gorm.DB, lg *slog.Logger) *accesscontrol.Service {
	entities := accesscontrol.DefaultEntities()
	if len(cfg.Catalog.Entities) > 0 {
		entities = accesscontrol.EntitiesFromNames(cfg.Catalog.Entities)
	}
	return accesscontrol.NewService(
		accessPostgres.NewUserDirectory(gormDB),
		accessPostgres.NewRoleDirectory(gormDB),
		accessPostgres.NewPermissionDirectory(gormDB),
		accessPostgres.NewTransactionManager(gormDB),
		entities,
		nil,
		lg,
	)
}

func seedSuperAdmin(ctx context.Context, db *gorm.DB, svc *accesscontrol.Service, cfg *internal.Config, email, password string) error {
	existing, err := svc.FindUser(ctx, email)
	if err == nil && existing != nil {
		fmt.Println("super-admin user already exists; will ensure role")
		return svc.PromoteToSuperAdmin(ctx, existing.ID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Security.BCryptCost)
	if err != nil {
		return err
	}

	if err := db.Exec("INSERT INTO users (email, name, password_hash, is_banned, created_at, updated_at) VALUES (?, ?, ?, false, now(), now())",
		email, "Super Admin", string(hash)).Error; err != nil {
		return err
	}

	created, err := svc.FindUser(ctx, email)
	if err != nil {
		return err
	}
	return svc.PromoteToSuperAdmin(ctx, created.ID)
}
