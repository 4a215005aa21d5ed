package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/access-management/internal/accesscontrol"
	"github.com/frahmantamala/access-management/internal/auth"
	"github.com/frahmantamala/access-management/internal/session"
	"github.com/frahmantamala/access-management/internal/transport/middleware"
	"github.com/frahmantamala/access-management/internal/transport/swagger"
	"github.com/frahmantamala/access-management/internal/user"
	"github.com/go-chi/chi"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, userHandler *user.Handler, accessHandler *accesscontrol.Handler, guard *session.Guard, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	rbac := authHandler.RBAC()

	router.Use(middleware.CORS)
	router.Use(middleware.RecoveryMiddleware(logger))

	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
				sr.Post("/refresh", authHandler.RefreshToken)
				sr.Post("/logout", authHandler.Logout)
			})
		}

		if authHandler != nil {
			// Protected routes that require authentication. The session
			// guard runs first so banned accounts are evicted before any
			// handler sees the request.
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)
				if guard != nil {
					pr.Use(guard.Middleware)
				}

				if userHandler != nil {
					pr.Get("/users/me", userHandler.GetCurrentUser)

					pr.Group(func(ur chi.Router) {
						ur.Use(rbac.RequirePermission(auth.PermViewUser))
						ur.Get("/users", userHandler.ListUsers)
					})
					pr.Group(func(ur chi.Router) {
						ur.Use(rbac.RequirePermission(auth.PermCreateUser))
						ur.Post("/users", userHandler.CreateUser)
					})
					pr.Group(func(ur chi.Router) {
						ur.Use(rbac.RequirePermission(auth.PermUpdateUser))
						ur.Patch("/users/{id}/ban", userHandler.SetBanned)
					})
				}

				if accessHandler != nil {
					pr.Route("/roles", func(rr chi.Router) {
						rr.Group(func(gr chi.Router) {
							gr.Use(rbac.RequirePermission(auth.PermViewRole))
							gr.Get("/", accessHandler.ListRoles)
						})
						rr.Group(func(gr chi.Router) {
							gr.Use(rbac.RequirePermission(auth.PermCreateRole))
							gr.Post("/", accessHandler.CreateRole)
						})
						rr.Group(func(gr chi.Router) {
							gr.Use(rbac.RequirePermission(auth.PermUpdateRole))
							gr.Put("/{name}/permissions", accessHandler.SyncRolePermissions)
						})
					})

					pr.Route("/permissions", func(pmr chi.Router) {
						pmr.Group(func(gr chi.Router) {
							gr.Use(rbac.RequirePermission(auth.PermViewPermission))
							gr.Get("/", accessHandler.ListPermissions)
						})
						pmr.Group(func(gr chi.Router) {
							gr.Use(rbac.RequirePermission(auth.PermCreatePermission))
							gr.Post("/", accessHandler.CreatePermission)
						})
					})

					// User edge mutations
					pr.Group(func(gr chi.Router) {
						gr.Use(rbac.RequirePermission(auth.PermUpdateUser))
						gr.Post("/users/{id}/roles", accessHandler.AssignRole)
						gr.Post("/users/{id}/permissions", accessHandler.AssignPermission)
						gr.Delete("/users/{id}/permissions/{name}", accessHandler.RevokePermission)
					})
					// Either audience may inspect a user's permission sets.
					pr.Group(func(gr chi.Router) {
						gr.Use(middleware.RequirePermissions(auth.PermViewUser, auth.PermViewPermission))
						gr.Get("/users/{id}/permissions", accessHandler.UserPermissions)
					})
					pr.Group(func(gr chi.Router) {
						gr.Use(middleware.RequireSuperAdmin())
						gr.Post("/users/{id}/promote", accessHandler.PromoteSuperAdmin)
					})
				}
			})
		}
	})
}
