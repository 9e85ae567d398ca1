package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"anomidate/internal/db"
	"anomidate/internal/models"
	"anomidate/internal/moderation"
	"anomidate/internal/views"
)

const maxSuspensionDays = 365

type adminLoginPage struct {
	Username string
}

type adminDashboardPage struct {
	Stats  *moderation.Stats
	Recent []*models.ModerationEntry
}

type adminUsersPage struct {
	Page     *moderation.UserPage
	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
}

type adminUserPage struct {
	Detail    *moderation.UserDetail
	CanDelete bool
}

func (s *Server) adminLoginPage(w http.ResponseWriter, r *http.Request) {
	if currentOperator(r) != nil {
		http.Redirect(w, r, "/admin/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "admin_login", "Operator login", adminLoginPage{})
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))

	op, err := s.moderation.Login(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, moderation.ErrInvalidCredentials) {
			s.renderFormError(w, r, http.StatusUnauthorized, "admin_login", "Operator login",
				adminLoginPage{Username: username}, "Wrong username or password.")
			return
		}
		s.internalErrorPage(w, r, err)
		return
	}

	s.startOperatorSession(w, op)
	http.Redirect(w, r, "/admin/", http.StatusSeeOther)
}

func (s *Server) adminLogout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, adminCookie)
	s.redirectWithFlash(w, r, "/admin/login", views.FlashInfo, "Logged out.")
}

func (s *Server) adminDashboard(w http.ResponseWriter, r *http.Request) {
	op := currentOperator(r)

	stats, err := s.moderation.Stats(r.Context(), op)
	if err != nil {
		s.moderationError(w, r, err)
		return
	}
	recent, err := s.moderation.RecentActions(r.Context(), op)
	if err != nil {
		s.moderationError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "admin_dashboard", "Dashboard", adminDashboardPage{Stats: stats, Recent: recent})
}

func (s *Server) adminUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageNum, _ := strconv.Atoi(q.Get("page"))

	page, err := s.moderation.ListUsers(r.Context(), currentOperator(r), q.Get("q"), pageNum)
	if err != nil {
		s.moderationError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "admin_users", "Users", adminUsersPage{
		Page:     page,
		HasPrev:  page.Page > 1,
		HasNext:  page.Page < page.Pages,
		PrevPage: page.Page - 1,
		NextPage: page.Page + 1,
	})
}

func (s *Server) adminUser(w http.ResponseWriter, r *http.Request) {
	op := currentOperator(r)
	id, ok := pathID(r, "id")
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "No such user.")
		return
	}

	detail, err := s.moderation.UserDetail(r.Context(), op, id)
	if err != nil {
		s.moderationError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "admin_user", detail.User.Username, adminUserPage{
		Detail:    detail,
		CanDelete: op.Role == models.RoleAdmin,
	})
}

func (s *Server) adminBan(w http.ResponseWriter, r *http.Request) {
	s.adminUserAction(w, r, func(op *models.Operator, id int64) (string, error) {
		return "User banned.", s.moderation.Ban(r.Context(), op, id)
	})
}

func (s *Server) adminUnban(w http.ResponseWriter, r *http.Request) {
	s.adminUserAction(w, r, func(op *models.Operator, id int64) (string, error) {
		return "Ban lifted.", s.moderation.Unban(r.Context(), op, id)
	})
}

func (s *Server) adminSuspend(w http.ResponseWriter, r *http.Request) {
	s.adminUserAction(w, r, func(op *models.Operator, id int64) (string, error) {
		days, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("days")))
		if err != nil || days < 1 || days > maxSuspensionDays {
			return "", moderation.ErrInvalidSuspension
		}
		until := s.now().Add(time.Duration(days) * 24 * time.Hour)
		return fmt.Sprintf("User suspended for %d days.", days), s.moderation.Suspend(r.Context(), op, id, until)
	})
}

func (s *Server) adminUnsuspend(w http.ResponseWriter, r *http.Request) {
	s.adminUserAction(w, r, func(op *models.Operator, id int64) (string, error) {
		return "Suspension lifted.", s.moderation.Unsuspend(r.Context(), op, id)
	})
}

func (s *Server) adminUnmatch(w http.ResponseWriter, r *http.Request) {
	s.adminUserAction(w, r, func(op *models.Operator, id int64) (string, error) {
		other, err := strconv.ParseInt(r.PostFormValue("other_id"), 10, 64)
		if err != nil {
			return "", moderation.ErrSamePair
		}
		n, err := s.moderation.Unmatch(r.Context(), op, id, other)
		return fmt.Sprintf("Removed %d decisions.", n), err
	})
}

func (s *Server) adminDeleteConversation(w http.ResponseWriter, r *http.Request) {
	s.adminUserAction(w, r, func(op *models.Operator, id int64) (string, error) {
		other, err := strconv.ParseInt(r.PostFormValue("other_id"), 10, 64)
		if err != nil {
			return "", moderation.ErrSamePair
		}
		n, err := s.moderation.DeleteConversation(r.Context(), op, id, other)
		return fmt.Sprintf("Deleted %d messages.", n), err
	})
}

func (s *Server) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	op := currentOperator(r)
	id, ok := pathID(r, "id")
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "No such user.")
		return
	}

	summary, err := s.moderation.DeleteUser(r.Context(), op, id)
	if err != nil {
		s.moderationError(w, r, err)
		return
	}

	s.redirectWithFlash(w, r, "/admin/users", views.FlashSuccess, fmt.Sprintf(
		"User deleted with %d messages and %d decisions.", summary.Messages, summary.Decisions))
}

// adminUserAction runs a moderation action on the {id} user and returns to
// their detail page with the outcome.
func (s *Server) adminUserAction(w http.ResponseWriter, r *http.Request, action func(op *models.Operator, id int64) (string, error)) {
	id, ok := pathID(r, "id")
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "No such user.")
		return
	}
	back := fmt.Sprintf("/admin/users/%d", id)

	msg, err := action(currentOperator(r), id)
	switch {
	case err == nil:
		s.redirectWithFlash(w, r, back, views.FlashSuccess, msg)
	case errors.Is(err, moderation.ErrInvalidSuspension), errors.Is(err, moderation.ErrSamePair):
		s.redirectWithFlash(w, r, back, views.FlashError, capitalize(err.Error())+".")
	default:
		s.moderationError(w, r, err)
	}
}

func (s *Server) moderationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, moderation.ErrForbidden):
		s.renderError(w, r, http.StatusForbidden, "Your role does not allow this action.")
	case errors.Is(err, db.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "No such user.")
	default:
		s.internalErrorPage(w, r, err)
	}
}
