package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/frahmantamala/access-management/pkg/logger"
)

// SessionEstablisher opens and clears the server-side session watched by the
// ban guard. Satisfied by session.Manager; nil disables session handling.
type SessionEstablisher interface {
	Establish(ctx context.Context, w http.ResponseWriter, userID int64) error
	Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

type Handler struct {
	*transport.BaseHandler
	Service  *Service
	Sessions SessionEstablisher
	rbac     *RBACAuthorization
}

func NewHandler(svc *Service, sessions SessionEstablisher) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Sessions:    sessions,
		rbac:        NewRBACAuthorization(NewPermissionChecker(), lg),
	}
}

// RBAC exposes the permission-gating middleware built over this handler's
// checker.
func (h *Handler) RBAC() *RBACAuthorization {
	return h.rbac
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.Service.Authenticate(dto)
	if err != nil {
		h.Logger.Error("authentication failed", "error", err)

		switch err {
		case ErrInvalidCredentials:
			h.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		case ErrUserBanned:
			h.WriteError(w, http.StatusForbidden, "Your account has been banned. Please contact support.")
		default:
			if _, ok := err.(ValidationError); ok {
				h.WriteError(w, http.StatusBadRequest, err.Error())
			} else {
				h.WriteError(w, http.StatusInternalServerError, "internal server error")
			}
		}
		return
	}

	// Open the server-side session alongside the tokens so the ban guard
	// sees this account on every subsequent request.
	if h.Sessions != nil {
		if err := h.Sessions.Establish(r.Context(), w, tokens.UserID); err != nil {
			h.Logger.Error("failed to establish session", "user_id", tokens.UserID, "error", err)
		}
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokens, err := h.Service.RefreshTokens(dto.RefreshToken)
	if err != nil {
		h.Logger.Error("token refresh failed", "error", err)

		switch err {
		case ErrInvalidToken, ErrTokenExpired:
			h.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			h.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	if _, err := h.Service.ValidateAccessToken(token); err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if h.Sessions != nil {
		if err := h.Sessions.Clear(r.Context(), w, r); err != nil {
			h.Logger.Error("failed to clear session on logout", "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware resolves the bearer token into a User with effective
// permissions and stores it in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		uid, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil {
			h.Logger.Warn("failed to parse user id from token claims", "value", claims.UserID, "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := h.Service.GetUserWithPermissions(uid)
		if err != nil {
			h.Logger.Error("failed to resolve user for token", "user_id", uid, "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		// A valid token does not outlive a ban.
		if user.Banned {
			h.Logger.Warn("rejected banned account", "user_id", uid)
			h.WriteError(w, http.StatusForbidden, "Your account has been banned. Please contact support.")
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		ctx = internal.ContextWithUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
