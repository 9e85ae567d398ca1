package api

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"anomidate/internal/constants"
	"anomidate/internal/ws"
)

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts same-host pages, loopback dev servers and the
// configured origins. Requests without an Origin header are not from a
// browser and are allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if ip := net.ParseIP(u.Hostname()); ip != nil && ip.IsLoopback() {
		return true
	}
	if strings.EqualFold(u.Hostname(), "localhost") {
		return true
	}

	for _, allowed := range s.config.Server.AllowedOrigins {
		if originMatchesAllowed(origin, allowed) {
			return true
		}
	}
	return false
}

func originMatchesAllowed(origin, allowed string) bool {
	if prefix, ok := strings.CutSuffix(allowed, "*"); ok {
		return strings.HasPrefix(origin, prefix)
	}
	return strings.EqualFold(origin, allowed)
}

// serveWS upgrades a logged in, verified session and registers it with the
// hub for MESSAGE_CREATE and MATCH_CREATE dispatches.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	if me == nil {
		unauthorized(w, "Login required")
		return
	}

	verified, err := s.verification.IsVerified(r.Context(), me.ID)
	if err != nil {
		s.apiInternalError(w, r, err)
		return
	}
	if !verified {
		writeError(w, http.StatusForbidden, constants.ErrCodeNotVerified, "Verify your Roblox account first")
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "component", "api", "user_id", me.ID, "error", err)
		return
	}

	client := ws.NewClient(s.hub, conn, me.ID)
	if err := client.Register(); err != nil {
		slog.Error("websocket registration failed", "component", "api", "user_id", me.ID, "error", err)
		conn.Close()
		return
	}

	client.SendHello()

	go client.WritePump()
	go client.ReadPump()
}
