package api

import (
	"errors"
	"fmt"
	"net/http"

	"anomidate/internal/db"
	"anomidate/internal/messaging"
	"anomidate/internal/models"
	"anomidate/internal/views"
)

type conversationPage struct {
	Other    *models.User
	Messages []messageView
}

// matchedCounterpart loads the user named by the {id} path parameter and
// checks the current user is matched with them. It renders the error page
// and returns nil otherwise.
func (s *Server) matchedCounterpart(w http.ResponseWriter, r *http.Request) *models.User {
	me := currentUser(r)
	id, ok := pathID(r, "id")
	if !ok || id == me.ID {
		s.renderError(w, r, http.StatusNotFound, "That conversation does not exist.")
		return nil
	}

	other, err := s.users.FindByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "That conversation does not exist.")
		return nil
	}
	if err != nil {
		s.internalErrorPage(w, r, err)
		return nil
	}

	mutual, err := s.matching.IsMutual(r.Context(), me.ID, other.ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return nil
	}
	if !mutual {
		s.renderError(w, r, http.StatusForbidden, "You can only message your matches.")
		return nil
	}
	return other
}

func (s *Server) conversationPage(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	other := s.matchedCounterpart(w, r)
	if other == nil {
		return
	}

	msgs, err := s.messaging.GetConversation(r.Context(), me.ID, other.ID)
	if err != nil {
		s.internalErrorPage(w, r, err)
		return
	}
	if err := s.messaging.MarkRead(r.Context(), me.ID, other.ID); err != nil {
		s.internalErrorPage(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "messages", other.Username, conversationPage{
		Other:    other,
		Messages: messageViews(me.ID, msgs),
	})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	other := s.matchedCounterpart(w, r)
	if other == nil {
		return
	}

	back := fmt.Sprintf("/messages/%d", other.ID)

	_, err := s.messaging.SendMessage(r.Context(), me.ID, other.ID, r.PostFormValue("content"))
	if err != nil {
		switch {
		case errors.Is(err, messaging.ErrMessageTooLong):
			s.redirectWithFlash(w, r, back, views.FlashError,
				fmt.Sprintf("Messages can be at most %d characters.", messaging.MaxMessageLength))
		case errors.Is(err, messaging.ErrNotMatched):
			s.renderError(w, r, http.StatusForbidden, "You can only message your matches.")
		default:
			s.internalErrorPage(w, r, err)
		}
		return
	}

	http.Redirect(w, r, back, http.StatusSeeOther)
}
