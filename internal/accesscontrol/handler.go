package accesscontrol

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/frahmantamala/access-management/pkg/logger"
	"github.com/go-chi/chi"
)

// promoteTimeout bounds the catalog-wide sync inside a promotion.
const promoteTimeout = 30 * time.Second

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// ListRoles handles GET /roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, roles)
}

// CreateRole handles POST /roles
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var args CreateRoleArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.Service.CreateRole(r.Context(), args)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}

// SyncRolePermissions handles PUT /roles/{name}/permissions
func (h *Handler) SyncRolePermissions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	args := SyncRolePermissionsArgs{
		RoleName:    chi.URLParam(r, "name"),
		Permissions: body.Permissions,
	}
	if err := h.Service.AssignPermissionsToRole(r.Context(), args); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPermissions handles GET /permissions
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Service.permissions.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, perms)
}

// CreatePermission handles POST /permissions
func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var args CreatePermissionArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	perm, err := h.Service.CreatePermission(r.Context(), args)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, perm)
}

// AssignRole handles POST /users/{id}/roles
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	args := AssignArgs{UserRef: chi.URLParam(r, "id"), Name: body.Name}
	result, err := h.Service.AssignRoleToUser(r.Context(), args)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// AssignPermission handles POST /users/{id}/permissions
func (h *Handler) AssignPermission(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	args := AssignArgs{UserRef: chi.URLParam(r, "id"), Name: body.Name}
	result, err := h.Service.AssignPermissionToUser(r.Context(), args)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// RevokePermission handles DELETE /users/{id}/permissions/{name}
func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	args := AssignArgs{
		UserRef: chi.URLParam(r, "id"),
		Name:    chi.URLParam(r, "name"),
	}
	result, err := h.Service.RevokePermissionFromUser(r.Context(), args)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// UserPermissions handles GET /users/{id}/permissions and returns both
// the direct grants and the role-derived set.
func (h *Handler) UserPermissions(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.FindUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	viaRoles, err := h.Service.PermissionsViaRoles(r.Context(), u)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	effective, err := h.Service.EffectivePermissions(r.Context(), u)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":   u.ID,
		"direct":    u.DirectPermissions,
		"via_roles": viaRoles,
		"effective": effective,
	})
}

// PromoteSuperAdmin handles POST /users/{id}/promote
func (h *Handler) PromoteSuperAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := internal.WithTimeout(r.Context(), promoteTimeout)
	defer cancel()

	if err := h.Service.PromoteToSuperAdmin(ctx, id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.Logger.Info("user promoted to super admin",
		"user_id", id,
		"promoted_by", internal.UserIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		h.WriteError(w, appErr.StatusCode, appErr.GetDetailedMessage())
		return
	}
	h.Logger.Error("access control handler: unexpected error", "error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
