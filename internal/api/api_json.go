package api

import (
	"errors"
	"log/slog"
	"net/http"

	"anomidate/internal/constants"
	"anomidate/internal/db"
	"anomidate/internal/matching"
	"anomidate/internal/messaging"
	"anomidate/internal/models"
)

type MeResponse struct {
	User         PublicUser                   `json:"user"`
	Email        string                       `json:"email,omitempty"`
	Verification *models.ExternalVerification `json:"verification"`
	DailyCount   int                          `json:"dailyCount"`
	DailyLimit   int                          `json:"dailyLimit"`
	UnreadCount  int                          `json:"unreadCount"`
}

type CandidateResponse struct {
	Candidate *PublicUser `json:"candidate"`
	Remaining int         `json:"remaining"`
}

type swipeRequest struct {
	TargetID int64  `json:"target_id" validate:"required,gt=0"`
	Action   string `json:"action" validate:"required,oneof=like pass"`
}

type SwipeResponse struct {
	Count     int  `json:"count"`
	Remaining int  `json:"remaining"`
	Mutual    bool `json:"mutual"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// GET /api/me
func (s *Server) apiMe(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	ctx := r.Context()

	v, err := s.verification.Status(ctx, me.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		s.apiInternalError(w, r, err)
		return
	}
	count, err := s.matching.GetDailyCount(ctx, me.ID)
	if err != nil {
		s.apiInternalError(w, r, err)
		return
	}
	unread, err := s.messaging.UnreadCount(ctx, me.ID)
	if err != nil {
		s.apiInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		User:         s.publicUser(ctx, me),
		Email:        me.GetEmail(),
		Verification: v,
		DailyCount:   count,
		DailyLimit:   s.matching.DailyLimit(),
		UnreadCount:  unread,
	})
}

// GET /api/swipe/next
func (s *Server) apiNextCandidate(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	filters, _ := parseFilters(r.URL.Query())

	count, err := s.matching.GetDailyCount(r.Context(), me.ID)
	if err != nil {
		s.apiInternalError(w, r, err)
		return
	}

	resp := CandidateResponse{Remaining: max(s.matching.DailyLimit()-count, 0)}
	candidate, err := s.matching.SelectCandidate(r.Context(), me.ID, filters)
	if err != nil {
		s.apiInternalError(w, r, err)
		return
	}
	if candidate != nil {
		pub := s.publicUser(r.Context(), candidate)
		resp.Candidate = &pub
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/swipe
func (s *Server) apiDecide(w http.ResponseWriter, r *http.Request) {
	var req swipeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := s.matching.RecordDecision(r.Context(), currentUser(r).ID, req.TargetID, models.Action(req.Action))
	if err != nil {
		switch {
		case errors.Is(err, matching.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeQuotaExceeded, "Daily swipe limit reached")
		case errors.Is(err, matching.ErrSelfDecision):
			writeError(w, http.StatusBadRequest, constants.ErrCodeSelfAction, "Cannot swipe on yourself")
		case errors.Is(err, matching.ErrInvalidAction):
			badRequest(w, "action must be like or pass")
		case errors.Is(err, db.ErrNotFound):
			notFound(w, "User not found")
		default:
			s.apiInternalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, SwipeResponse{
		Count:     result.Count,
		Remaining: result.Remaining,
		Mutual:    result.Mutual,
	})
}

// GET /api/matches
func (s *Server) apiMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.matching.ListMutualMatches(r.Context(), currentUser(r).ID)
	if err != nil {
		s.apiInternalError(w, r, err)
		return
	}

	out := make([]PublicUser, 0, len(matches))
	for _, u := range matches {
		out = append(out, s.publicUser(r.Context(), u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out})
}

// GET /api/messages/{id}
func (s *Server) apiConversation(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	other, ok := pathID(r, "id")
	if !ok {
		notFound(w, "User not found")
		return
	}

	msgs, err := s.messaging.GetConversation(r.Context(), me.ID, other)
	if err != nil {
		s.apiInternalError(w, r, err)
		return
	}
	if err := s.messaging.MarkRead(r.Context(), me.ID, other); err != nil {
		s.apiInternalError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// POST /api/messages/{id}
func (s *Server) apiSendMessage(w http.ResponseWriter, r *http.Request) {
	other, ok := pathID(r, "id")
	if !ok {
		notFound(w, "User not found")
		return
	}

	var req sendMessageRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	msg, err := s.messaging.SendMessage(r.Context(), currentUser(r).ID, other, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, messaging.ErrNotMatched):
			writeError(w, http.StatusForbidden, constants.ErrCodeNotMatched, "You can only message your matches")
		case errors.Is(err, messaging.ErrMessageTooLong):
			writeError(w, http.StatusBadRequest, constants.ErrCodeMessageTooLong, err.Error())
		case errors.Is(err, messaging.ErrSelfConversation):
			writeError(w, http.StatusBadRequest, constants.ErrCodeSelfAction, "Cannot message yourself")
		default:
			s.apiInternalError(w, r, err)
		}
		return
	}
	if msg == nil {
		badRequest(w, "content is empty")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) apiInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("api request failed", "component", "api", "path", r.URL.Path, "request_id", requestID(r), "error", err)
	internalError(w)
}
