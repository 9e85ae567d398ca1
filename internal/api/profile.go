package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"anomidate/internal/accounts"
	"anomidate/internal/db"
	"anomidate/internal/models"
	"anomidate/internal/verification"
	"anomidate/internal/views"
)

type profilePage struct {
	Profile      *models.User
	AvatarURL    string
	Verification *models.ExternalVerification
	IsSelf       bool
	IsMatch      bool
}

type profileEditPage struct {
	Profile *models.User
}

type verifyPage struct {
	Phrase       string
	Verification *models.ExternalVerification
	OAuthEnabled bool
	Handle       string
}

func (s *Server) ownProfile(w http.ResponseWriter, r *http.Request) {
	s.showProfile(w, r, currentUser(r), true, false)
}

// profile shows another user's profile. Only matches and the user themself
// may see it.
func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	id, ok := pathID(r, "id")
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "That profile does not exist.")
		return
	}
	if id == me.ID {
		s.showProfile(w, r, me, true, false)
		return
	}

	other, err := s.users.FindByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "That profile does not exist.")
		return
	}
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}

	mutual, err := s.matching.IsMutual(r.Context(), me.ID, other.ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}
	if !mutual {
		s.renderError(w, r, http.StatusForbidden, "You can only view the profiles of your matches.")
		return
	}

	s.showProfile(w, r, other, false, true)
}

func (s *Server) showProfile(w http.ResponseWriter, r *http.Request, u *models.User, self, match bool) {
	v, err := s.verification.Status(r.Context(), u.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		s.internalErrorPage(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "profile", u.Username, profilePage{
		Profile:      u,
		AvatarURL:    s.avatarFor(r.Context(), u),
		Verification: v,
		IsSelf:       self,
		IsMatch:      match,
	})
}

func (s *Server) editProfilePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "profile_edit", "Edit profile", profileEditPage{Profile: currentUser(r)})
}

func (s *Server) editProfile(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	in := accounts.ProfileInput{
		Gender:       r.PostFormValue("gender"),
		Bio:          r.PostFormValue("bio"),
		Playstyle:    r.PostFormValue("playstyle"),
		Servers:      r.PostFormValue("servers"),
		Timezone:     r.PostFormValue("timezone"),
		Availability: r.PostFormValue("availability"),
	}

	// The form is echoed back unsaved when it is rejected.
	echo := *me
	echo.Gender = in.Gender
	echo.Bio = in.Bio
	echo.Playstyle = in.Playstyle
	echo.ServerPreferences = accounts.ParseServers(in.Servers)
	echo.Timezone = in.Timezone
	echo.Availability = in.Availability

	if raw := strings.TrimSpace(r.PostFormValue("age")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			s.renderFormError(w, r, http.StatusUnprocessableEntity, "profile_edit", "Edit profile",
				profileEditPage{Profile: &echo}, "Age must be a whole number.")
			return
		}
		in.Age = &age
	}
	echo.Age = in.Age

	if _, err := s.accounts.UpdateProfile(r.Context(), me.ID, in); err != nil {
		var verr *accounts.ValidationError
		if errors.As(err, &verr) {
			s.renderFormError(w, r, http.StatusUnprocessableEntity, "profile_edit", "Edit profile",
				profileEditPage{Profile: &echo}, capitalize(verr.Message)+".")
			return
		}
		s.internalErrorPage(w, r, err)
		return
	}

	s.redirectWithFlash(w, r, "/profile", views.FlashSuccess, "Profile saved.")
}

func (s *Server) verifyPage(w http.ResponseWriter, r *http.Request) {
	s.renderVerify(w, r, http.StatusOK, "", nil)
}

func (s *Server) renderVerify(w http.ResponseWriter, r *http.Request, status int, handle string, flash *views.Flash) {
	v, err := s.verification.Status(r.Context(), currentUser(r).ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		s.internalErrorPage(w, r, err)
		return
	}
	if handle == "" && v != nil {
		handle = v.ExternalUsername
	}

	data := verifyPage{
		Phrase:       s.verification.Phrase(),
		Verification: v,
		OAuthEnabled: s.oauth.Enabled(),
		Handle:       handle,
	}
	if flash == nil {
		flash = popFlash(w, r)
	}
	s.renderPage(w, r, status, "verify", "Verify", data, flash)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	handle := strings.TrimSpace(r.PostFormValue("handle"))

	v, err := s.verification.Verify(r.Context(), me.ID, handle)
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, verification.ErrHandleRequired):
			msg = "Enter your Roblox username."
		case errors.Is(err, verification.ErrHandleNotFound):
			msg = "We could not find that Roblox user. Check the spelling and try again."
		case errors.Is(err, verification.ErrAlreadyLinked):
			msg = "That Roblox account is already linked to another user."
		default:
			s.internalErrorPage(w, r, err)
			return
		}
		s.renderVerify(w, r, http.StatusUnprocessableEntity, handle, &views.Flash{Kind: views.FlashError, Message: msg})
		return
	}

	if !v.Verified {
		s.renderVerify(w, r, http.StatusOK, handle, &views.Flash{
			Kind:    views.FlashError,
			Message: "The phrase was not found in that profile's About section yet.",
		})
		return
	}

	s.redirectWithFlash(w, r, "/", views.FlashSuccess, "Roblox account verified. Happy matching!")
}

func (s *Server) oauthStart(w http.ResponseWriter, r *http.Request) {
	if !s.oauth.Enabled() {
		s.renderError(w, r, http.StatusNotFound, "Roblox sign-in is not available.")
		return
	}

	state, err := s.states.Sign(currentUser(r).ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}
	target, err := s.oauth.AuthCodeURL(state)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) oauthCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oauth.Enabled() {
		s.renderError(w, r, http.StatusNotFound, "Roblox sign-in is not available.")
		return
	}

	me := currentUser(r)
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		slog.Info("oauth denied", "component", "api", "user_id", me.ID, "error", errCode)
		s.redirectWithFlash(w, r, "/profile/verify", views.FlashError, "Roblox sign-in was cancelled.")
		return
	}

	if err := s.states.Verify(q.Get("state"), me.ID); err != nil {
		slog.Warn("oauth state rejected", "component", "api", "user_id", me.ID, "error", err)
		s.redirectWithFlash(w, r, "/profile/verify", views.FlashError, "That sign-in link expired. Please try again.")
		return
	}

	identity, err := s.oauth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		slog.Error("oauth exchange failed", "component", "api", "user_id", me.ID, "error", err)
		s.redirectWithFlash(w, r, "/profile/verify", views.FlashError, "Roblox sign-in failed. Please try again.")
		return
	}

	if _, err := s.verification.CompleteOAuth(r.Context(), me.ID, identity); err != nil {
		if errors.Is(err, verification.ErrAlreadyLinked) {
			s.redirectWithFlash(w, r, "/profile/verify", views.FlashError, "That Roblox account is already linked to another user.")
			return
		}
		s.internalErrorPage(w, r, err)
		return
	}

	s.redirectWithFlash(w, r, "/", views.FlashSuccess, "Roblox account verified. Happy matching!")
}
