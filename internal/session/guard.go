package session

import (
	"log/slog"
	"net/http"
)

// BannedMessage is shown to a user whose session was terminated by the guard.
const BannedMessage = "Your account has been banned. Please contact support."

// BanChecker reads the current ban flag for an account.
type BanChecker interface {
	IsBanned(id int64) (bool, error)
}

// Guard terminates authenticated sessions whose account has been banned. The
// check runs on every request: it catches accounts banned after the session
// was established. Unauthenticated and non-banned traffic passes through with
// no side effects.
type Guard struct {
	sessions  *Manager
	users     BanChecker
	loginPath string
	logger    *slog.Logger
}

func NewGuard(sessions *Manager, users BanChecker, loginPath string, logger *slog.Logger) *Guard {
	if loginPath == "" {
		loginPath = "/login"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		sessions:  sessions,
		users:     users,
		loginPath: loginPath,
		logger:    logger,
	}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.sessions.Load(r.Context(), r)
		if err != nil {
			g.logger.Error("session guard: failed to load session", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		userID, authenticated := sess.UserID()
		if !authenticated {
			next.ServeHTTP(w, r)
			return
		}

		banned, err := g.users.IsBanned(userID)
		if err != nil {
			g.logger.Error("session guard: ban check failed", "user_id", userID, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !banned {
			next.ServeHTTP(w, r)
			return
		}

		// Log out: destroy the session, then hand the visitor a fresh
		// anonymous session with a rotated anti-forgery token and the
		// ban notice. Nothing downstream runs.
		sess.Destroy()
		if err := g.sessions.Commit(r.Context(), w, sess); err != nil {
			g.logger.Error("session guard: failed to destroy session", "user_id", userID, "error", err)
		}

		fresh := g.sessions.newSession()
		fresh.RotateCSRFToken()
		fresh.AddFlash("error", BannedMessage)
		if err := g.sessions.Commit(r.Context(), w, fresh); err != nil {
			g.logger.Error("session guard: failed to issue replacement session", "error", err)
		}

		g.logger.Warn("session terminated for banned account", "user_id", userID)
		http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
	})
}
