package api

import (
	"context"
	"strconv"
	"time"

	"anomidate/internal/models"
)

// PublicUser is what other users may see of a profile.
type PublicUser struct {
	ID                int64    `json:"id"`
	Username          string   `json:"username"`
	Age               *int     `json:"age,omitempty"`
	Gender            string   `json:"gender"`
	Bio               string   `json:"bio"`
	Playstyle         string   `json:"playstyle"`
	ServerPreferences []string `json:"serverPreferences"`
	Timezone          string   `json:"timezone"`
	Availability      string   `json:"availability"`
	AvatarURL         string   `json:"avatarUrl,omitempty"`
}

type matchView struct {
	User      *models.User
	AvatarURL string
}

func externalID(u *models.User) (int64, bool) {
	if u == nil || u.ExternalID == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(*u.ExternalID, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// avatarFor returns the user's Roblox headshot or "" for unlinked accounts.
func (s *Server) avatarFor(ctx context.Context, u *models.User) string {
	id, ok := externalID(u)
	if !ok || s.avatars == nil {
		return ""
	}
	return s.avatars.AvatarURL(ctx, id)
}

func (s *Server) publicUser(ctx context.Context, u *models.User) PublicUser {
	servers := u.ServerPreferences
	if servers == nil {
		servers = []string{}
	}
	return PublicUser{
		ID:                u.ID,
		Username:          u.Username,
		Age:               u.Age,
		Gender:            u.Gender,
		Bio:               u.Bio,
		Playstyle:         u.Playstyle,
		ServerPreferences: servers,
		Timezone:          u.Timezone,
		Availability:      u.Availability,
		AvatarURL:         s.avatarFor(ctx, u),
	}
}

func (s *Server) matchViews(ctx context.Context, users []*models.User) []matchView {
	out := make([]matchView, 0, len(users))
	for _, u := range users {
		out = append(out, matchView{User: u, AvatarURL: s.avatarFor(ctx, u)})
	}
	return out
}

type messageView struct {
	Mine    bool
	Content string
	SentAt  time.Time
}

func messageViews(viewerID int64, msgs []*models.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView{
			Mine:    m.SenderID == viewerID,
			Content: m.Content,
			SentAt:  m.SentAt,
		})
	}
	return out
}
