package api

import "net/http"

type ServerInfoResponse struct {
	Name             string `json:"name"`
	DailySwipeLimit  int    `json:"dailySwipeLimit"`
	OAuthEnabled     bool   `json:"oauthEnabled"`
	VerificationText string `json:"verificationPhrase"`
}

// GET /api/server/info
func (s *Server) serverInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServerInfoResponse{
		Name:             s.config.Server.Name,
		DailySwipeLimit:  s.matching.DailyLimit(),
		OAuthEnabled:     s.oauth.Enabled(),
		VerificationText: s.verification.Phrase(),
	})
}
