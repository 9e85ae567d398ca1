package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"anomidate/internal/auth"
	"anomidate/internal/models"
	"anomidate/internal/views"
)

const (
	sessionCookie = "anomidate_session"
	adminCookie   = "anomidate_admin"
	flashCookie   = "anomidate_flash"
	visitedCookie = "anomidate_visited"

	flashMaxAge   = 60
	visitedMaxAge = 365 * 24 * 60 * 60
)

func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) startSession(w http.ResponseWriter, user *models.User) {
	token, expiresAt := s.sessions.Issue(auth.SubjectUser, user.ID)
	s.setCookie(w, sessionCookie, token, int(time.Until(expiresAt).Seconds()))
}

func (s *Server) startOperatorSession(w http.ResponseWriter, op *models.Operator) {
	token, expiresAt := s.sessions.Issue(auth.SubjectOperator, op.ID)
	s.setCookie(w, adminCookie, token, int(time.Until(expiresAt).Seconds()))
}

// setFlash stores a message shown on the next rendered page. The cookie holds
// display text only, so it is encoded but not signed.
func (s *Server) setFlash(w http.ResponseWriter, kind, message string) {
	raw, err := json.Marshal(views.Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	s.setCookie(w, flashCookie, base64.RawURLEncoding.EncodeToString(raw), flashMaxAge)
}

func popFlash(w http.ResponseWriter, r *http.Request) *views.Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	clearCookie(w, flashCookie)

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f views.Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	switch f.Kind {
	case views.FlashSuccess, views.FlashError, views.FlashInfo:
	default:
		f.Kind = views.FlashInfo
	}
	return &f
}
