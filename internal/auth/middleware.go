package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Ruokavalitys/rv-update-backend/internal/platform/httpx"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
	"github.com/Ruokavalitys/rv-update-backend/internal/users"
)

// Middleware guards routes behind bearer-token sessions.
type Middleware struct {
	logger   *slog.Logger
	sessions *shared.SessionManager
}

// NewMiddleware constructs Middleware.
func NewMiddleware(logger *slog.Logger, sessions *shared.SessionManager) Middleware {
	return Middleware{logger: logger, sessions: sessions}
}

// RequireUser admits any authenticated, active account and puts the session
// on the request context.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return m.require(next, func(sess shared.Session) bool {
		return sess.Role != users.RoleInactive
	})
}

// RequireAdmin admits only accounts with the admin role.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.require(next, func(sess shared.Session) bool {
		return sess.Role == users.RoleAdmin
	})
}

func (m Middleware) require(next http.Handler, allowed func(shared.Session) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.sessions.Load(r.Context(), r)
		if err != nil {
			if errors.Is(err, shared.ErrSessionNotFound) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or expired session token")
				return
			}
			m.logger.Error("load session", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if !allowed(sess) {
			m.logger.Warn("request rejected for role",
				slog.Int64("user_id", sess.UserID), slog.String("role", sess.Role), slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient privileges")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
	})
}
