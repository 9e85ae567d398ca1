package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"anomidate/internal/db"
	"anomidate/internal/matching"
	"anomidate/internal/models"
	"anomidate/internal/views"
)

type homePage struct {
	DailyCount  int
	DailyLimit  int
	Remaining   int
	MatchCount  int
	UnreadCount int
}

type swipePage struct {
	Filters    swipeFilters
	Remaining  int
	DailyLimit int
	Exhausted  bool
	Candidate  *models.User
	AvatarURL  string
	Query      template.URL
}

// home is the landing page. First time visitors see the welcome page, then
// the visitor must log in and verify before the dashboard is shown.
func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(visitedCookie); err != nil {
		http.Redirect(w, r, "/welcome", http.StatusSeeOther)
		return
	}

	me := currentUser(r)
	if me == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	verified, err := s.verification.IsVerified(r.Context(), me.ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}
	if !verified {
		http.Redirect(w, r, "/profile/verify", http.StatusSeeOther)
		return
	}

	count, err := s.matching.GetDailyCount(r.Context(), me.ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}
	matches, err := s.matching.CountMatches(r.Context(), me.ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}
	unread, err := s.messaging.UnreadCount(r.Context(), me.ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}

	limit := s.matching.DailyLimit()
	s.render(w, r, http.StatusOK, "home", "Home", homePage{
		DailyCount:  count,
		DailyLimit:  limit,
		Remaining:   max(limit-count, 0),
		MatchCount:  matches,
		UnreadCount: unread,
	})
}

func (s *Server) swipePage(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	filters, form := parseFilters(r.URL.Query())

	count, err := s.matching.GetDailyCount(r.Context(), me.ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}

	limit := s.matching.DailyLimit()
	data := swipePage{
		Filters:    form,
		Remaining:  max(limit-count, 0),
		DailyLimit: limit,
		Exhausted:  count >= limit,
		Query:      template.URL(form.encode()),
	}

	if !data.Exhausted {
		candidate, err := s.matching.SelectCandidate(r.Context(), me.ID, filters)
		if err != nil {
			s.internalErrorPage(w, r, err)
			return
		}
		data.Candidate = candidate
		if candidate != nil {
			data.AvatarURL = s.avatarFor(r.Context(), candidate)
		}
	}

	s.render(w, r, http.StatusOK, "swipe", "Swipe", data)
}

// decide records a like or pass from the swipe card and returns to the next
// card with the same filters.
func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	targetID, ok := pathID(r, "id")
	action := models.Action(chi.URLParam(r, "action"))
	if !ok || !action.Valid() {
		s.renderError(w, r, http.StatusNotFound, "That page does not exist.")
		return
	}

	_, form := parseFilters(r.URL.Query())
	back := "/swipe"
	if q := form.encode(); q != "" {
		back += "?" + q
	}

	result, err := s.matching.RecordDecision(r.Context(), me.ID, targetID, action)
	if err != nil {
		switch {
		case errors.Is(err, matching.ErrQuotaExceeded):
			s.redirectWithFlash(w, r, back, views.FlashInfo, "You have used all your swipes for today.")
		case errors.Is(err, matching.ErrSelfDecision):
			s.renderError(w, r, http.StatusBadRequest, "You cannot swipe on yourself.")
		case errors.Is(err, db.ErrNotFound):
			s.renderError(w, r, http.StatusNotFound, "That user no longer exists.")
		default:
			s.internalErrorPage(w, r, err)
		}
		return
	}

	if result.NewMatch {
		s.redirectWithFlash(w, r, back, views.FlashSuccess, fmt.Sprintf("It's a match with %s!", result.Target.Username))
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) matchesPage(w http.ResponseWriter, r *http.Request) {
	matches, err := s.matching.ListMutualMatches(r.Context(), currentUser(r).ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "matches", "Matches", s.matchViews(r.Context(), matches))
}
