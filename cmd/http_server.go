package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/accesscontrol"
	accessPostgres "github.com/frahmantamala/access-management/internal/accesscontrol/postgres"
	"github.com/frahmantamala/access-management/internal/auth"
	authPostgres "github.com/frahmantamala/access-management/internal/auth/postgres"
	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/internal/session"
	"github.com/frahmantamala/access-management/internal/transport/middleware"
	"github.com/frahmantamala/access-management/internal/transport/rest"
	"github.com/frahmantamala/access-management/internal/user"
	userPostgres "github.com/frahmantamala/access-management/internal/user/postgres"
	"github.com/frahmantamala/access-management/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config        *internal.Config
	DB            *sqlx.DB
	GormDB        *gorm.DB
	Router        *chi.Mux
	AuthHandler   *auth.Handler
	UserHandler   *user.Handler
	AccessHandler *accesscontrol.Handler
	SessionGuard  *session.Guard
	Logger        *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	deps.Router.Use(middleware.RequestID)
	deps.Router.Use(middleware.LoggingMiddleware(deps.Logger))
	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.AuthHandler, deps.UserHandler, deps.AccessHandler, deps.SessionGuard, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGormDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	registerAuditSubscribers(eventBus, lg)

	// Access control workflow over the shared gorm connection.
	entities := accesscontrol.DefaultEntities()
	if len(config.Catalog.Entities) > 0 {
		entities = accesscontrol.EntitiesFromNames(config.Catalog.Entities)
	}
	accessService := accesscontrol.NewService(
		accessPostgres.NewUserDirectory(gormDB),
		accessPostgres.NewRoleDirectory(gormDB),
		accessPostgres.NewPermissionDirectory(gormDB),
		accessPostgres.NewTransactionManager(gormDB),
		entities,
		eventBus,
		lg,
	)

	userService := user.NewService(userPostgres.NewUserRepository(gormDB), eventBus, config.Security.BCryptCost, lg)

	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(gormDB), tokenGen, config.Security.BCryptCost)

	sessionManager := session.NewManager(
		session.NewGormStore(gormDB),
		"access_session",
		config.Security.SessionSecret,
		config.Security.SessionTTL,
		strings.HasPrefix(config.Server.BaseURL, "https://"),
	)
	guard := session.NewGuard(sessionManager, userService, "/login", lg)

	return &Dependencies{
		Config:        config,
		Logger:        lg,
		DB:            db,
		GormDB:        gormDB,
		Router:        chi.NewRouter(),
		AuthHandler:   auth.NewHandler(authService, sessionManager),
		UserHandler:   user.NewHandler(userService),
		AccessHandler: accesscontrol.NewHandler(accessService),
		SessionGuard:  guard,
	}, nil
}

// initDB initializes the database connection used for health checks.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGormDB opens the ORM connection the repositories share.
func initGormDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	gormDB, err := gorm.Open(gormPostgres.Open(cfg.Source), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open orm connection: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying db: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return gormDB, nil
}

// registerAuditSubscribers logs every access change so assignments are
// traceable without a dedicated audit table.
func registerAuditSubscribers(bus *events.EventBus, lg *slog.Logger) {
	auditLog := func(ctx context.Context, event events.Event) error {
		lg.Info("access change",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	}

	bus.SubscribeAll([]string{
		events.EventTypeRoleAssigned,
		events.EventTypePermissionGranted,
		events.EventTypePermissionRevoked,
		events.EventTypeUserPromoted,
		events.EventTypeUserBanned,
	}, auditLog)
}
