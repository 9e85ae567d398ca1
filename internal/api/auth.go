package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"anomidate/internal/accounts"
	"anomidate/internal/views"
)

type credentialsForm struct {
	Username string
	Email    string
}

type resetForm struct {
	Email string
}

func (s *Server) welcome(w http.ResponseWriter, r *http.Request) {
	s.setCookie(w, visitedCookie, "1", visitedMaxAge)
	s.render(w, r, http.StatusOK, "welcome", "Welcome", nil)
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", "Log in", credentialsForm{})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	form := credentialsForm{Username: username}

	user, err := s.accounts.Authenticate(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrInvalidCredentials):
			s.renderFormError(w, r, http.StatusUnauthorized, "login", "Log in", form, "Wrong username or password.")
		case errors.Is(err, accounts.ErrBanned), errors.Is(err, accounts.ErrSuspended):
			s.renderFormError(w, r, http.StatusForbidden, "login", "Log in", form, standingMessage(err))
		default:
			s.internalErrorPage(w, r, err)
		}
		return
	}

	slog.Info("user logged in", "component", "api", "user_id", user.ID, "ip", clientIP(r))
	s.startSession(w, user)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) registerPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "register", "Sign up", credentialsForm{})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	in := accounts.RegisterInput{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
	}
	form := credentialsForm{Username: in.Username, Email: in.Email}

	user, err := s.accounts.Register(r.Context(), in)
	if err != nil {
		var verr *accounts.ValidationError
		switch {
		case errors.As(err, &verr):
			s.renderFormError(w, r, http.StatusUnprocessableEntity, "register", "Sign up", form, capitalize(verr.Message)+".")
		case errors.Is(err, accounts.ErrUsernameTaken):
			s.renderFormError(w, r, http.StatusConflict, "register", "Sign up", form, "That username is already taken.")
		default:
			s.internalErrorPage(w, r, err)
		}
		return
	}

	s.startSession(w, user)
	s.redirectWithFlash(w, r, "/profile/verify", views.FlashSuccess, "Account created. Link your Roblox account to start matching.")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, sessionCookie)
	s.redirectWithFlash(w, r, "/auth/login", views.FlashInfo, "You have been logged out.")
}

func (s *Server) forgotPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot", "Forgot password", nil)
}

// forgot answers the same way whether or not the address belongs to an
// account.
func (s *Server) forgot(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))

	if err := s.accounts.RequestPasswordReset(r.Context(), email); err != nil {
		var verr *accounts.ValidationError
		if errors.As(err, &verr) {
			s.renderFormError(w, r, http.StatusUnprocessableEntity, "forgot", "Forgot password", nil, capitalize(verr.Message)+".")
			return
		}
		s.internalErrorPage(w, r, err)
		return
	}

	s.setFlash(w, views.FlashInfo, "If that address has an account, a reset code is on its way.")
	http.Redirect(w, r, "/auth/reset?email="+url.QueryEscape(email), http.StatusSeeOther)
}

func (s *Server) resetPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "reset", "Reset password", resetForm{Email: r.URL.Query().Get("email")})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	form := resetForm{Email: email}

	err := s.accounts.ResetPassword(r.Context(), email, strings.TrimSpace(r.PostFormValue("code")), r.PostFormValue("password"))
	if err != nil {
		var verr *accounts.ValidationError
		switch {
		case errors.As(err, &verr):
			s.renderFormError(w, r, http.StatusUnprocessableEntity, "reset", "Reset password", form, capitalize(verr.Message)+".")
		case errors.Is(err, accounts.ErrInvalidResetCode),
			errors.Is(err, accounts.ErrResetCodeExpired),
			errors.Is(err, accounts.ErrTooManyAttempts):
			s.renderFormError(w, r, http.StatusBadRequest, "reset", "Reset password", form, capitalize(err.Error())+".")
		default:
			s.internalErrorPage(w, r, err)
		}
		return
	}

	s.redirectWithFlash(w, r, "/auth/login", views.FlashSuccess, "Password updated. You can log in now.")
}
