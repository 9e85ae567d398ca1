package models

import (
	"strings"
	"time"
)

type User struct {
	ID                int64      `json:"id"`
	ExternalID        *string    `json:"externalId,omitempty"`
	Username          string     `json:"username"`
	Email             *string    `json:"email,omitempty"`
	PasswordHash      string     `json:"-"`
	Age               *int       `json:"age,omitempty"`
	Gender            string     `json:"gender"`
	Bio               string     `json:"bio"`
	Playstyle         string     `json:"playstyle"`
	ServerPreferences []string   `json:"serverPreferences"`
	Timezone          string     `json:"timezone"`
	Availability      string     `json:"availability"`
	Banned            bool       `json:"banned"`
	SuspendedUntil    *time.Time `json:"suspendedUntil,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// AgeOrZero is the age used for range filtering; a missing age counts as 0.
func (u *User) AgeOrZero() int {
	if u.Age == nil {
		return 0
	}
	return *u.Age
}

func (u *User) GetEmail() string {
	if u.Email != nil {
		return *u.Email
	}
	return ""
}

func (u *User) IsSuspended(now time.Time) bool {
	return u.SuspendedUntil != nil && u.SuspendedUntil.After(now)
}

// ServersString renders server preferences the way the profile form accepts them.
func (u *User) ServersString() string {
	return strings.Join(u.ServerPreferences, ", ")
}

type Profile struct {
	Age               *int
	Gender            string
	Bio               string
	Playstyle         string
	ServerPreferences []string
	Timezone          string
	Availability      string
}

type ExternalVerification struct {
	ID               int64      `json:"-"`
	UserID           int64      `json:"userId"`
	ExternalUsername string     `json:"externalUsername"`
	ExternalUserID   int64      `json:"externalUserId"`
	Verified         bool       `json:"verified"`
	Method           string     `json:"method"`
	VerifiedAt       *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt        time.Time  `json:"-"`
	UpdatedAt        time.Time  `json:"-"`
}

const (
	VerificationMethodPhrase = "phrase"
	VerificationMethodOAuth  = "oauth"
)

type PasswordReset struct {
	ID        int64
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	Attempts  int
	CreatedAt time.Time
}
