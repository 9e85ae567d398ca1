package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"anomidate/internal/accounts"
	"anomidate/internal/auth"
	"anomidate/internal/constants"
	"anomidate/internal/db"
	"anomidate/internal/models"
	"anomidate/internal/views"
)

type contextKey string

const (
	userKey     contextKey = "user"
	operatorKey contextKey = "operator"
	clientIPKey contextKey = "clientIP"
)

func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

func currentOperator(r *http.Request) *models.Operator {
	op, _ := r.Context().Value(operatorKey).(*models.Operator)
	return op
}

func clientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok {
		return ip
	}
	return r.RemoteAddr
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func (s *Server) clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, s.ipResolver.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadUser attaches the logged in user, if any. The user row is read on every
// request so bans and suspensions end sessions immediately.
func (s *Server) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := s.sessions.Verify(c.Value, auth.SubjectUser)
		if err != nil {
			clearCookie(w, sessionCookie)
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.users.FindByID(r.Context(), claims.ID)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				slog.Error("loading session user", "component", "api", "user_id", claims.ID, "error", err)
			}
			clearCookie(w, sessionCookie)
			next.ServeHTTP(w, r)
			return
		}

		if err := accounts.CheckStanding(user, s.now()); err != nil {
			clearCookie(w, sessionCookie)
			s.setFlash(w, views.FlashError, standingMessage(err))
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loadOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(adminCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := s.sessions.Verify(c.Value, auth.SubjectOperator)
		if err != nil {
			clearCookie(w, adminCookie)
			next.ServeHTTP(w, r)
			return
		}

		op, err := s.moderation.Operator(r.Context(), claims.ID)
		if err != nil {
			clearCookie(w, adminCookie)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireVerified sends users without a verified Roblox link to the
// verification page. It must run after requireUser.
func (s *Server) requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := s.verification.IsVerified(r.Context(), currentUser(r).ID)
		if err != nil {
			s.internalErrorPage(w, r, err)
			return
		}
		if !ok {
			s.redirectWithFlash(w, r, "/profile/verify", views.FlashInfo, "Verify your Roblox account first.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentOperator(r) == nil {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) apiRequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			unauthorized(w, "Login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) apiRequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := s.verification.IsVerified(r.Context(), currentUser(r).ID)
		if err != nil {
			slog.Error("checking verification", "component", "api", "error", err)
			internalError(w)
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, constants.ErrCodeNotVerified, "Verify your Roblox account first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func standingMessage(err error) string {
	var serr *accounts.SuspendedError
	if errors.As(err, &serr) {
		return serr.Error()
	}
	if errors.Is(err, accounts.ErrBanned) {
		return "This account has been banned."
	}
	return err.Error()
}
