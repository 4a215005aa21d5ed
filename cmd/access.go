package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/frahmantamala/access-management/internal/accesscontrol"
	"github.com/frahmantamala/access-management/internal/user"
	userPostgres "github.com/frahmantamala/access-management/internal/user/postgres"
	"github.com/frahmantamala/access-management/pkg/logger"
	"github.com/spf13/cobra"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Manage users, roles and permissions",
	Long:  `Admin workflow over the user directory and the permission catalog.`,
}

var (
	flagUserRef              string
	flagName                 string
	flagEmail                string
	flagPassword             string
	flagPasswordConfirmation string
	flagPermissions          []string
)

// createUserInput assembles the account DTO from the shared user-creation
// flags. The confirmation must be retyped; it is never defaulted from the
// password.
func createUserInput() user.CreateUserDTO {
	return user.CreateUserDTO{
		Name:                 flagName,
		Email:                flagEmail,
		Password:             flagPassword,
		PasswordConfirmation: flagPasswordConfirmation,
	}
}

// accessDeps builds the services every subcommand shares. Exits on any
// initialization failure; subcommands are single-shot invocations.
func accessDeps() (*accesscontrol.Service, *user.Service) {
	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	gormDB, err := initGormDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	logger.Init("development")
	lg := logger.LoggerWrapper()

	accessService := newAccessService(cfg, gormDB, lg)
	userService := user.NewService(userPostgres.NewUserRepository(gormDB), nil, cfg.Security.BCryptCost, lg)
	return accessService, userService
}

func reportAssignment(result *accesscontrol.AssignmentResult) {
	if result.Applied {
		fmt.Println("done:", result.Message)
	} else {
		fmt.Println("warning:", result.Message)
	}
}

var listUsersCmd = &cobra.Command{
	Use:   "list-users",
	Short: "List users with their roles and direct permissions",
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := accessDeps()
		users, err := svc.ListUsers(context.Background())
		if err != nil {
			log.Fatalf("failed to list users: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tBANNED\tROLES\tDIRECT PERMISSIONS")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\n",
				u.ID, u.Name, u.Email, u.IsBanned,
				strings.Join(u.Roles, ","),
				strings.Join(u.DirectPermissions, ","))
		}
		w.Flush()
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user account",
	Run: func(cmd *cobra.Command, args []string) {
		_, users := accessDeps()
		u, err := users.Create(createUserInput())
		if err != nil {
			log.Fatalf("failed to create user: %v", err)
		}
		fmt.Printf("created user %d (%s)\n", u.ID, u.Email)
	},
}

var assignRoleCmd = &cobra.Command{
	Use:   "assign-role",
	Short: "Assign a role to a user",
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := accessDeps()
		result, err := svc.AssignRoleToUser(context.Background(), accesscontrol.AssignArgs{
			UserRef: flagUserRef,
			Name:    flagName,
		})
		if err != nil {
			log.Fatalf("failed to assign role: %v", err)
		}
		reportAssignment(result)
	},
}

var viewPermissionsCmd = &cobra.Command{
	Use:   "view-permissions",
	Short: "Show a user's role-derived and direct permissions",
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := accessDeps()
		ctx := context.Background()

		u, err := svc.FindUser(ctx, flagUserRef)
		if err != nil {
			log.Fatalf("failed to find user: %v", err)
		}
		viaRoles, err := svc.PermissionsViaRoles(ctx, u)
		if err != nil {
			log.Fatalf("failed to resolve role permissions: %v", err)
		}

		fmt.Printf("user %d (%s)\n", u.ID, u.Email)
		fmt.Println("via roles:")
		for _, p := range viaRoles {
			fmt.Println("  -", p)
		}
		fmt.Println("direct:")
		for _, p := range u.DirectPermissions {
			fmt.Println("  -", p)
		}
	},
}

var assignPermissionCmd = &cobra.Command{
	Use:   "assign-permission",
	Short: "Grant a direct permission to a user",
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := accessDeps()
		result, err := svc.AssignPermissionToUser(context.Background(), accesscontrol.AssignArgs{
			UserRef: flagUserRef,
			Name:    flagName,
		})
		if err != nil {
			log.Fatalf("failed to assign permission: %v", err)
		}
		reportAssignment(result)
	},
}

var revokePermissionCmd = &cobra.Command{
	Use:   "revoke-permission",
	Short: "Revoke a direct permission from a user",
	Long: `Revoke a permission the user holds directly. Permissions held only
through a role are untouched; revoke the role instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := accessDeps()
		result, err := svc.RevokePermissionFromUser(context.Background(), accesscontrol.AssignArgs{
			UserRef: flagUserRef,
			Name:    flagName,
		})
		if err != nil {
			log.Fatalf("failed to revoke permission: %v", err)
		}
		reportAssignment(result)
	},
}

var createSuperAdminCmd = &cobra.Command{
	Use:   "create-super-admin",
	Short: "Create a user and promote it to super-admin",
	Run: func(cmd *cobra.Command, args []string) {
		svc, users := accessDeps()
		u, err := users.Create(createUserInput())
		if err != nil {
			log.Fatalf("failed to create user: %v", err)
		}
		if err := svc.PromoteToSuperAdmin(context.Background(), u.ID); err != nil {
			log.Fatalf("failed to promote user: %v", err)
		}
		fmt.Printf("created super-admin %d (%s)\n", u.ID, u.Email)
	},
}

var listRolesCmd = &cobra.Command{
	Use:   "list-roles",
	Short: "List roles with their permission names",
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := accessDeps()
		roles, err := svc.ListRoles(context.Background())
		if err != nil {
			log.Fatalf("failed to list roles: %v", err)
		}
		for _, r := range roles {
			fmt.Printf("%s (%d permissions)\n", r.Name, len(r.Permissions))
			for _, p := range r.Permissions {
				fmt.Println("  -", p)
			}
		}
	},
}

var createRoleCmd = &cobra.Command{
	Use:   "create-role",
	Short: "Create a role, optionally with a permission selection",
	Long: `Create a named role. The --permissions selection accepts explicit
permission names or the single token "all" for the entire catalog.`,
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := accessDeps()
		role, err := svc.CreateRole(context.Background(), accesscontrol.CreateRoleArgs{
			Name:        flagName,
			Permissions: flagPermissions,
		})
		if err != nil {
			log.Fatalf("failed to create role: %v", err)
		}
		fmt.Printf("created role %s with %d permissions\n", role.Name, len(role.Permissions))
	},
}

var createPermissionCmd = &cobra.Command{
	Use:   "create-permission",
	Short: "Create a permission",
	Run: func(cmd *cobra.Command, args []string) {
		svc, _ := accessDeps()
		perm, err := svc.CreatePermission(context.Background(), accesscontrol.CreatePermissionArgs{
			Name: flagName,
		})
		if err != nil {
			log.Fatalf("failed to create permission: %v", err)
		}
		fmt.Printf("created permission %s\n", perm.Name)
	},
}

func init() {
	for _, c := range []*cobra.Command{assignRoleCmd, viewPermissionsCmd, assignPermissionCmd, revokePermissionCmd} {
		c.Flags().StringVar(&flagUserRef, "user", "", "user id or email")
		c.MarkFlagRequired("user")
	}
	for _, c := range []*cobra.Command{assignRoleCmd, assignPermissionCmd, revokePermissionCmd, createRoleCmd, createPermissionCmd} {
		c.Flags().StringVar(&flagName, "name", "", "role or permission name")
		c.MarkFlagRequired("name")
	}
	for _, c := range []*cobra.Command{createUserCmd, createSuperAdminCmd} {
		c.Flags().StringVar(&flagName, "name", "", "display name")
		c.Flags().StringVar(&flagEmail, "email", "", "email address")
		c.Flags().StringVar(&flagPassword, "password", "", "password")
		c.Flags().StringVar(&flagPasswordConfirmation, "password-confirmation", "", "retype the password")
		c.MarkFlagRequired("email")
		c.MarkFlagRequired("password")
		c.MarkFlagRequired("password-confirmation")
	}
	createRoleCmd.Flags().StringSliceVar(&flagPermissions, "permissions", nil, `permission names or "all"`)

	accessCmd.AddCommand(
		listUsersCmd,
		createUserCmd,
		assignRoleCmd,
		viewPermissionsCmd,
		assignPermissionCmd,
		revokePermissionCmd,
		createSuperAdminCmd,
		listRolesCmd,
		createRoleCmd,
		createPermissionCmd,
	)
}
