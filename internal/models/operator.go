package models

import "time"

type Role string

const (
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleModerator || r == RoleAdmin
}

type Operator struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

type ModerationEntry struct {
	ID           int64
	OperatorID   int64
	OperatorName string
	Action       string
	TargetUserID *int64
	Detail       string
	CreatedAt    time.Time
}
