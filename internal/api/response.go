package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"anomidate/internal/constants"
	"anomidate/internal/views"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("writing json response", "component", "api", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, constants.ErrCodeUnauthorized, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, constants.ErrCodeNotFound, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "An internal error occurred")
}

type errorPage struct {
	Status  int
	Message string
}

// renderError shows the error page for HTML routes.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error", http.StatusText(status), errorPage{Status: status, Message: message})
}

func (s *Server) internalErrorPage(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "component", "api", "path", r.URL.Path, "request_id", requestID(r), "error", err)
	s.renderError(w, r, http.StatusInternalServerError, "Something went wrong on our side. Please try again.")
}

// render fills the shared page fields from the request and renders name.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	s.renderPage(w, r, status, name, title, data, popFlash(w, r))
}

// renderFormError re-renders a form page with message as an error flash.
func (s *Server) renderFormError(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, message string) {
	s.renderPage(w, r, status, name, title, data, &views.Flash{Kind: views.FlashError, Message: message})
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, flash *views.Flash) {
	page := &views.Page{
		Title:    title,
		User:     currentUser(r),
		Operator: currentOperator(r),
		Flash:    flash,
		Data:     data,
	}
	if page.User != nil {
		if n, err := s.messaging.UnreadCount(r.Context(), page.User.ID); err == nil {
			page.UnreadCount = n
		}
	}
	s.views.Render(w, status, name, page)
}

// redirectWithFlash stores a one-shot message and redirects with 303.
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	s.setFlash(w, kind, message)
	http.Redirect(w, r, to, http.StatusSeeOther)
}
